package tier

import (
	"fmt"

	"github.com/smileynet/wopt/internal/weapon"
)

// Kind identifies a tier list.
type Kind string

const (
	Regular Kind = "regular"
	Sniper  Kind = "sniper"
)

// ListHitChance is the hit chance every tier list is computed at.
const ListHitChance = "1"

// Modes returns the configuration-key modes a list can be viewed in.
// Regular weapons are keyed noValby/valby; snipers none/valby/enzo.
func (k Kind) Modes() []string {
	if k == Sniper {
		return []string{weapon.ModeNone, string(weapon.BuffValby), string(weapon.BuffEnzo)}
	}
	return []string{"noValby", string(weapon.BuffValby)}
}

// Title returns the display name of the list.
func (k Kind) Title() string {
	if k == Sniper {
		return "Sniper Rifles"
	}
	return "Weapons"
}

// ParseKind parses "regular" or "sniper".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Regular, Sniper:
		return Kind(s), nil
	}
	return "", fmt.Errorf("tier: unknown list %q", s)
}

// List is a computed tier list.
type List struct {
	Kind    Kind
	Mode    string
	Entries []Entry
}

// Build computes the tier list of kind in mode from the snapshot.
func Build(data weapon.DataMap, classes weapon.Classes, kind Kind, mode string) List {
	include := func(name string) bool { return !classes.IsSniper(name) }
	if kind == Sniper {
		include = classes.IsSniper
	}
	grades := Classify(Select(data, ListHitChance, mode, include))
	return List{Kind: kind, Mode: mode, Entries: Rank(grades)}
}

// Buffs returns the buff flags that reproduce this list's mode in the optimizer.
func (l List) Buffs() weapon.Buffs {
	b, err := weapon.ParseBuff(l.Mode)
	if err != nil {
		return weapon.Buffs{}
	}
	return b
}
