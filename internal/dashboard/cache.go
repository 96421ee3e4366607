package dashboard

import "github.com/smileynet/wopt/internal/tier"

// Cache stores computed tier lists keyed by list kind and mode.
// It is not safe for concurrent use; callers must confine access to a
// single goroutine (the Bubble Tea update loop).
type Cache struct {
	entries map[tierKey]tier.List
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[tierKey]tier.List)}
}

// Get returns the cached list for kind and mode.
func (c *Cache) Get(kind tier.Kind, mode string) (tier.List, bool) {
	l, ok := c.entries[tierKey{kind, mode}]
	return l, ok
}

// Set stores a list, replacing any existing entry.
func (c *Cache) Set(l tier.List) {
	c.entries[tierKey{l.Kind, l.Mode}] = l
}

// Invalidate clears all cached lists. Called whenever the snapshot changes.
func (c *Cache) Invalidate() {
	c.entries = make(map[tierKey]tier.List)
}
