package dashboard

import "github.com/charmbracelet/bubbles/help"

// HelpBindings returns the help.KeyMap for the given mode,
// providing context-aware help bar content.
func HelpBindings(mode Mode, filtering bool) help.KeyMap {
	switch {
	case mode == ModeTiers:
		return TierKeyMap()
	case filtering:
		return FilterKeyMap()
	default:
		return OptimizeKeyMap()
	}
}
