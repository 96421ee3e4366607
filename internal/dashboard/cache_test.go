package dashboard

import (
	"errors"
	"testing"

	"github.com/smileynet/wopt/internal/tier"
)

var errTest = errors.New("test failure")

func TestCache_GetSetInvalidate(t *testing.T) {
	// Given: an empty cache
	c := NewCache()
	if _, ok := c.Get(tier.Regular, "valby"); ok {
		t.Fatal("empty cache should miss")
	}

	// When: a list is stored
	c.Set(tier.List{Kind: tier.Regular, Mode: "valby", Entries: []tier.Entry{{Weapon: "X"}}})

	// Then: it is returned for the same kind and mode only
	l, ok := c.Get(tier.Regular, "valby")
	if !ok || len(l.Entries) != 1 {
		t.Errorf("Get = %+v, %v", l, ok)
	}
	if _, ok := c.Get(tier.Sniper, "valby"); ok {
		t.Error("different kind should miss")
	}

	// When: invalidated
	c.Invalidate()

	// Then: it misses
	if _, ok := c.Get(tier.Regular, "valby"); ok {
		t.Error("Invalidate should clear entries")
	}
}
