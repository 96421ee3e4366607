package dashboard

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/smileynet/wopt/internal/tier"
)

// MinLeftWidth is the minimum character width for the left pane.
const MinLeftWidth = 28

// Tier badge colors. S=red, A=orange, B=yellow, C=green, D=blue, F=gray.
var tierColors = map[tier.Tier]lipgloss.AdaptiveColor{
	tier.S: {Light: "1", Dark: "9"},
	tier.A: {Light: "208", Dark: "208"},
	tier.B: {Light: "3", Dark: "11"},
	tier.C: {Light: "2", Dark: "10"},
	tier.D: {Light: "4", Dark: "12"},
	tier.F: {Light: "240", Dark: "245"},
}

var (
	mutedText    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
	selectedText = lipgloss.NewStyle().Bold(true)
	headingText  = lipgloss.NewStyle().Bold(true).Underline(true)
	dpsText      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "2", Dark: "10"})
	activeToggle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})
	activeTab    = lipgloss.NewStyle().Bold(true).Underline(true)
	inactiveTab  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
)

// TierBadge returns a styled tier heading like "S", "C".
func TierBadge(t tier.Tier) string {
	c, ok := tierColors[t]
	if !ok {
		c = lipgloss.AdaptiveColor{Light: "240", Dark: "245"}
	}
	return lipgloss.NewStyle().Bold(true).Foreground(c).Render(string(t))
}

// FocusedBorder returns a lipgloss style with an accent-colored rounded border.
func FocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})
}

// UnfocusedBorder returns a lipgloss style with a dim rounded border.
func UnfocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "240", Dark: "240"})
}

// PaneWidths calculates the left and right pane widths from a total width.
// Left pane gets 1/3 (minimum MinLeftWidth), right pane gets the rest.
func PaneWidths(totalWidth int) (left, right int) {
	if totalWidth <= 0 {
		return 0, 0
	}
	left = max(totalWidth/3, MinLeftWidth)
	right = max(totalWidth-left, 0)
	return left, right
}
