package dashboard

import (
	"fmt"
	"strings"

	"github.com/smileynet/wopt/internal/weapon"
)

// togglesState holds the optimizer configuration: hit chance and buffs.
type togglesState struct {
	hitIdx int
	buffs  weapon.Buffs
}

// newTogglesState starts at hit chance 1 with no buffs.
func newTogglesState() togglesState {
	return togglesState{hitIdx: len(weapon.HitChances) - 1}
}

// HitChance returns the selected hit chance.
func (ts togglesState) HitChance() float64 {
	return weapon.HitChances[ts.hitIdx]
}

// setHitChance selects h if it is one of the fixed choices.
func (ts togglesState) setHitChance(h float64) togglesState {
	if i := weapon.HitChanceIndex(h); i >= 0 {
		ts.hitIdx = i
	}
	return ts
}

// stepHit moves the hit-chance selector by delta, clamped to the choices.
func (ts togglesState) stepHit(delta int) togglesState {
	ts.hitIdx = min(max(ts.hitIdx+delta, 0), len(weapon.HitChances)-1)
	return ts
}

// toggle flips b; enabling a buff clears the others.
func (ts togglesState) toggle(b weapon.Buff) togglesState {
	ts.buffs = ts.buffs.Toggle(b)
	return ts
}

// Request builds the optimize request for name.
func (ts togglesState) Request(name string) weapon.Request {
	return weapon.NewRequest(name, ts.HitChance(), ts.buffs)
}

// View renders the hit-chance selector and buff toggles.
func (ts togglesState) View() string {
	var b strings.Builder
	b.WriteString("Hit chance ")
	for i, h := range weapon.HitChances {
		label := weapon.FormatHitChance(h)
		if i == ts.hitIdx {
			b.WriteString(activeToggle.Render("[" + label + "]"))
		} else {
			b.WriteString(" " + label + " ")
		}
	}
	b.WriteString("\nBuffs      ")
	for _, buff := range []weapon.Buff{weapon.BuffValby, weapon.BuffGley, weapon.BuffEnzo} {
		mark := "[ ]"
		if ts.buffs.Has(buff) {
			mark = "[x]"
		}
		item := fmt.Sprintf("%s %s  ", mark, buffLabel(buff))
		if ts.buffs.Has(buff) {
			item = activeToggle.Render(item)
		}
		b.WriteString(item)
	}
	return b.String()
}

// buffLabel capitalizes a buff name; its first letter is the toggle key.
func buffLabel(b weapon.Buff) string {
	s := string(b)
	return strings.ToUpper(s[:1]) + s[1:]
}
