package dashboard

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/wopt/internal/tier"
	"github.com/smileynet/wopt/internal/weapon"
)

// tierKinds is the tab order of the tier lists.
var tierKinds = []tier.Kind{tier.Regular, tier.Sniper}

// tierState tracks the tier-list tabs, mode switch and entry cursor.
type tierState struct {
	kindIdx    int
	modeIdx    map[tier.Kind]int
	cursor     int
	refreshing bool
	err        error
}

func newTierState() tierState {
	return tierState{modeIdx: map[tier.Kind]int{}}
}

// Kind returns the active list.
func (ts tierState) Kind() tier.Kind {
	return tierKinds[ts.kindIdx]
}

// Mode returns the active list's mode.
func (ts tierState) Mode() string {
	modes := ts.Kind().Modes()
	return modes[ts.modeIdx[ts.Kind()]%len(modes)]
}

// nextTab switches to the next list and resets the cursor.
func (ts tierState) nextTab() tierState {
	ts.kindIdx = (ts.kindIdx + 1) % len(tierKinds)
	ts.cursor = 0
	return ts
}

// nextMode cycles the active list's mode. The mode map is copied so value
// receivers never share it.
func (ts tierState) nextMode() tierState {
	modes := make(map[tier.Kind]int, len(ts.modeIdx))
	for k, v := range ts.modeIdx {
		modes[k] = v
	}
	k := ts.Kind()
	modes[k] = (modes[k] + 1) % len(k.Modes())
	ts.modeIdx = modes
	ts.cursor = 0
	return ts
}

// Update handles navigation keys for list l. It returns a command emitting
// OpenWeaponMsg when enter picks an entry.
func (ts tierState) Update(msg tea.KeyMsg, l tier.List) (tierState, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if n := len(l.Entries); n > 0 {
			ts.cursor = (ts.cursor - 1 + n) % n
		}
	case "down", "j":
		if n := len(l.Entries); n > 0 {
			ts.cursor = (ts.cursor + 1) % n
		}
	case "tab":
		ts = ts.nextTab()
	case "m":
		ts = ts.nextMode()
	case "enter":
		if ts.cursor >= 0 && ts.cursor < len(l.Entries) {
			open := OpenWeaponMsg{
				Weapon:    l.Entries[ts.cursor].Weapon,
				HitChance: 1,
				Buffs:     l.Buffs(),
			}
			return ts, func() tea.Msg { return open }
		}
	}
	return ts, nil
}

// View renders tabs, mode line and the tier groups of l.
func (ts tierState) View(l tier.List, loaded bool, width, height int, spinnerView string) string {
	var b strings.Builder

	for i, k := range tierKinds {
		if i > 0 {
			b.WriteString("  ")
		}
		if i == ts.kindIdx {
			b.WriteString(activeTab.Render(k.Title()))
		} else {
			b.WriteString(inactiveTab.Render(k.Title()))
		}
	}
	b.WriteString("\n")

	modes := ts.Kind().Modes()
	b.WriteString("Mode: ")
	for i, mode := range modes {
		if i > 0 {
			b.WriteString(" · ")
		}
		if mode == ts.Mode() {
			b.WriteString(activeToggle.Render(mode))
		} else {
			b.WriteString(mutedText.Render(mode))
		}
	}
	b.WriteString("\n\n")
	height -= 3

	switch {
	case ts.refreshing:
		fmt.Fprintf(&b, "%s Recomputing weapon data...", spinnerView)
		return b.String()
	case !loaded && ts.err == nil:
		fmt.Fprintf(&b, "%s Loading weapon data...", spinnerView)
		return b.String()
	case ts.err != nil:
		fmt.Fprintf(&b, "Error: %s\n\nPress r to retry", ts.err)
		return b.String()
	case len(l.Entries) == 0:
		b.WriteString("No weapon data for this list. Press R to recompute")
		return b.String()
	}

	lines := tierLines(l, ts.cursor, width)
	lo, hi := visibleRange(cursorLine(l, ts.cursor), len(lines), height)
	b.WriteString(strings.Join(lines[lo:hi], "\n"))
	return b.String()
}

// tierLines renders one heading line per non-empty tier followed by its
// entries in rank order.
func tierLines(l tier.List, cursor, width int) []string {
	groups := tier.Group(l.Entries)
	var lines []string
	idx := 0
	for _, t := range tier.Order {
		entries := groups[t]
		if len(entries) == 0 {
			continue
		}
		lines = append(lines, TierBadge(t))
		for _, e := range entries {
			prefix := "  "
			if idx == cursor {
				prefix = CursorMarker
			}
			name := truncate(e.Weapon, width-24)
			lines = append(lines, fmt.Sprintf("%s%-*s %12d  z=%+.2f", prefix, max(width-24, 8), name, e.DPS, e.Z))
			idx++
		}
	}
	return lines
}

// cursorLine maps an entry index to its line in tierLines output.
func cursorLine(l tier.List, cursor int) int {
	groups := tier.Group(l.Entries)
	line, idx := 0, 0
	for _, t := range tier.Order {
		entries := groups[t]
		if len(entries) == 0 {
			continue
		}
		line++
		for range entries {
			if idx == cursor {
				return line
			}
			line++
			idx++
		}
	}
	return 0
}

// buildList returns the memoized tier list for the active tab and mode,
// computing it from data on a miss.
func buildList(c *Cache, data weapon.DataMap, classes weapon.Classes, kind tier.Kind, mode string) tier.List {
	if l, ok := c.Get(kind, mode); ok {
		return l
	}
	l := tier.Build(data, classes, kind, mode)
	c.Set(l)
	return l
}
