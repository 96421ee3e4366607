package weapon

import (
	"fmt"
	"strconv"
	"strings"
)

// HitChances are the weak-point hit chances offered by the optimizer.
var HitChances = []float64{0, 0.25, 0.33, 0.5, 0.67, 0.75, 1}

// Buff names a character buff the optimizer can model.
type Buff string

const (
	BuffValby Buff = "valby"
	BuffGley  Buff = "gley"
	BuffEnzo  Buff = "enzo"
)

// ModeNone is the configuration-key mode for "no buff".
const ModeNone = "none"

// Buffs holds the buff toggles. At most one is set when built through Toggle.
type Buffs struct {
	Valby bool `json:"valby"`
	Gley  bool `json:"gley"`
	Enzo  bool `json:"enzo"`
}

// Toggle flips b. Enabling a buff clears every other buff.
func (bs Buffs) Toggle(b Buff) Buffs {
	if bs.Has(b) {
		return bs.set(b, false)
	}
	return Buffs{}.set(b, true)
}

// Has reports whether b is enabled.
func (bs Buffs) Has(b Buff) bool {
	switch b {
	case BuffValby:
		return bs.Valby
	case BuffGley:
		return bs.Gley
	case BuffEnzo:
		return bs.Enzo
	}
	return false
}

func (bs Buffs) set(b Buff, on bool) Buffs {
	switch b {
	case BuffValby:
		bs.Valby = on
	case BuffGley:
		bs.Gley = on
	case BuffEnzo:
		bs.Enzo = on
	}
	return bs
}

// Mode returns the configuration-key mode: the enabled buff's name or "none".
func (bs Buffs) Mode() string {
	switch {
	case bs.Valby:
		return string(BuffValby)
	case bs.Gley:
		return string(BuffGley)
	case bs.Enzo:
		return string(BuffEnzo)
	}
	return ModeNone
}

// String renders the enabled buff for display.
func (bs Buffs) String() string {
	return bs.Mode()
}

// ParseBuff parses a buff name. "" and "none" yield no buff.
func ParseBuff(s string) (Buffs, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", ModeNone:
		return Buffs{}, nil
	case string(BuffValby):
		return Buffs{Valby: true}, nil
	case string(BuffGley):
		return Buffs{Gley: true}, nil
	case string(BuffEnzo):
		return Buffs{Enzo: true}, nil
	}
	return Buffs{}, fmt.Errorf("weapon: unknown buff %q", s)
}

// FormatHitChance renders a hit chance the way configuration keys spell it ("1", "0.25").
func FormatHitChance(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

// HitChanceIndex returns the index of h in HitChances, or -1.
func HitChanceIndex(h float64) int {
	for i, c := range HitChances {
		if c == h {
			return i
		}
	}
	return -1
}

// ConfigKey composes a configuration key such as "1_valby" or "0.5_none".
func ConfigKey(hitChance float64, buffs Buffs) string {
	return FormatHitChance(hitChance) + "_" + buffs.Mode()
}

// SplitConfigKey splits a backend configuration key at its first underscore
// into hit chance and mode. The key itself is never rewritten.
func SplitConfigKey(key string) (hit, mode string, ok bool) {
	hit, mode, ok = strings.Cut(key, "_")
	if !ok || hit == "" || mode == "" {
		return "", "", false
	}
	return hit, mode, true
}
