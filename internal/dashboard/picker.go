package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/wopt/internal/weapon"
)

// CursorMarker is the prefix shown on the highlighted row.
const CursorMarker = "▸ "

// pickerState manages the weapon list, search filter, cursor and the
// loading/error states of the optimizer's left pane.
type pickerState struct {
	all       []weapon.Weapon
	visible   []weapon.Weapon
	cursor    int
	selected  string
	filter    textinput.Model
	filtering bool
	loading   bool
	err       error
}

// newPickerState returns a pickerState in the loading state.
func newPickerState() pickerState {
	ti := textinput.New()
	ti.Placeholder = "search weapons"
	ti.Prompt = "/ "
	ti.CharLimit = 64
	return pickerState{filter: ti, loading: true}
}

// applyWeapons replaces the catalog, keeping the current filter.
func (ps pickerState) applyWeapons(names []string, err error) pickerState {
	ps.loading = false
	if err != nil {
		ps.err = err
		ps.all = nil
		ps.visible = nil
		return ps
	}
	ps.err = nil
	ps.all = weapon.FromNames(names)
	return ps.refilter()
}

// refilter recomputes the visible list from the filter text and resets the cursor.
func (ps pickerState) refilter() pickerState {
	ps.visible = weapon.Filter(ps.all, ps.filter.Value())
	ps.cursor = 0
	return ps
}

// Update processes key messages for the picker. It returns selected=true
// when enter picked a weapon.
func (ps pickerState) Update(msg tea.KeyMsg) (pickerState, bool, tea.Cmd) {
	if ps.loading || ps.err != nil {
		return ps, false, nil
	}

	if ps.filtering {
		switch msg.String() {
		case "esc":
			ps.filtering = false
			ps.filter.Blur()
			return ps, false, nil
		case "enter":
			ps.filtering = false
			ps.filter.Blur()
			return ps, false, nil
		case "up", "down":
			// fall through to cursor movement
		default:
			var cmd tea.Cmd
			before := ps.filter.Value()
			ps.filter, cmd = ps.filter.Update(msg)
			if ps.filter.Value() != before {
				ps = ps.refilter()
			}
			return ps, false, cmd
		}
	}

	switch msg.String() {
	case "up", "k":
		ps = ps.move(-1)
	case "down", "j":
		ps = ps.move(1)
	case "/":
		ps.filtering = true
		return ps, false, ps.filter.Focus()
	case "esc":
		if ps.filter.Value() != "" {
			ps.filter.SetValue("")
			ps = ps.refilter()
		}
	case "enter":
		if name := ps.Highlighted(); name != "" {
			ps.selected = name
			return ps, true, nil
		}
	}
	return ps, false, nil
}

// move shifts the cursor by delta, wrapping at both ends.
func (ps pickerState) move(delta int) pickerState {
	n := len(ps.visible)
	if n == 0 {
		return ps
	}
	ps.cursor = (ps.cursor + delta + n) % n
	return ps
}

// Highlighted returns the weapon under the cursor, or "".
func (ps pickerState) Highlighted() string {
	if ps.cursor < 0 || ps.cursor >= len(ps.visible) {
		return ""
	}
	return ps.visible[ps.cursor].Name
}

// Selected returns the chosen weapon, or "".
func (ps pickerState) Selected() string {
	return ps.selected
}

// selectName chooses name directly, clearing the filter so it is visible.
// Unknown names are ignored.
func (ps pickerState) selectName(name string) (pickerState, bool) {
	ps.filter.SetValue("")
	ps = ps.refilter()
	for i, w := range ps.visible {
		if w.Name == name {
			ps.cursor = i
			ps.selected = name
			return ps, true
		}
	}
	return ps, false
}

// View renders the picker for the given dimensions.
// spinnerView is the current spinner frame.
func (ps pickerState) View(width, height int, spinnerView string) string {
	if ps.loading {
		return fmt.Sprintf("%s Loading weapons...", spinnerView)
	}
	if ps.err != nil {
		return fmt.Sprintf("Error: %s\n\nPress r to retry", ps.err)
	}

	var b strings.Builder
	if ps.filtering || ps.filter.Value() != "" {
		b.WriteString(ps.filter.View())
		b.WriteString("\n")
		height--
	}

	if len(ps.visible) == 0 {
		if len(ps.all) == 0 {
			b.WriteString("No weapons available. Press r to reload")
		} else {
			b.WriteString(mutedText.Render("No weapons match"))
		}
		return b.String()
	}

	lo, hi := visibleRange(ps.cursor, len(ps.visible), height)
	for i := lo; i < hi; i++ {
		if i > lo {
			b.WriteByte('\n')
		}
		w := ps.visible[i]
		prefix := "  "
		if i == ps.cursor {
			prefix = CursorMarker
		}
		name := truncate(w.Name, width-len(prefix)-2)
		if w.Name == ps.selected {
			name = selectedText.Render(name)
		}
		b.WriteString(prefix + name)
	}
	return b.String()
}

// visibleRange returns the [lo, hi) window of n rows that fits height and
// keeps cursor in view.
func visibleRange(cursor, n, height int) (int, int) {
	if height < 1 {
		height = 1
	}
	if n <= height {
		return 0, n
	}
	lo := max(cursor-height/2, 0)
	hi := lo + height
	if hi > n {
		hi = n
		lo = n - height
	}
	return lo, hi
}

// truncate shortens s to width runes, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
