package dashboard

import "github.com/charmbracelet/bubbles/key"

// optimizeKeys holds key bindings for optimize mode.
type optimizeKeys struct {
	Up       key.Binding
	Down     key.Binding
	Select   key.Binding
	Filter   key.Binding
	Hit      key.Binding
	Valby    key.Binding
	Gley     key.Binding
	Enzo     key.Binding
	Optimize key.Binding
	Tab      key.Binding
	Tiers    key.Binding
	Retry    key.Binding
	Quit     key.Binding
}

// ShortHelp returns the optimize mode bindings for the help bar.
func (k optimizeKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Filter, k.Hit, k.Valby, k.Gley, k.Enzo, k.Optimize, k.Tiers, k.Quit}
}

// FullHelp returns the optimize mode bindings grouped for expanded help.
func (k optimizeKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Filter},
		{k.Hit, k.Valby, k.Gley, k.Enzo, k.Optimize},
		{k.Tab, k.Tiers, k.Retry, k.Quit},
	}
}

// filterKeys holds key bindings while the search box has focus.
type filterKeys struct {
	Done   key.Binding
	Cancel key.Binding
}

// ShortHelp returns the filter bindings for the help bar.
func (k filterKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Done, k.Cancel}
}

// FullHelp returns the filter bindings grouped for expanded help.
func (k filterKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Done, k.Cancel}}
}

// tierKeys holds key bindings for tier-list mode.
type tierKeys struct {
	Up        key.Binding
	Down      key.Binding
	Open      key.Binding
	Tab       key.Binding
	Mode      key.Binding
	Recompute key.Binding
	Optimizer key.Binding
	Quit      key.Binding
}

// ShortHelp returns the tier mode bindings for the help bar.
func (k tierKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Open, k.Tab, k.Mode, k.Recompute, k.Optimizer, k.Quit}
}

// FullHelp returns the tier mode bindings grouped for expanded help.
func (k tierKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open},
		{k.Tab, k.Mode, k.Recompute},
		{k.Optimizer, k.Quit},
	}
}

// OptimizeKeyMap returns the key bindings for optimize mode.
func OptimizeKeyMap() optimizeKeys {
	return optimizeKeys{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Hit: key.NewBinding(
			key.WithKeys("left", "h", "right", "l"),
			key.WithHelp("←/→", "hit chance"),
		),
		Valby: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "valby"),
		),
		Gley: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "gley"),
		),
		Enzo: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "enzo"),
		),
		Optimize: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "optimize"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		Tiers: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "tier lists"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "retry"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// FilterKeyMap returns the key bindings while searching.
func FilterKeyMap() filterKeys {
	return filterKeys{
		Done: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "done"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "stop searching"),
		),
	}
}

// TierKeyMap returns the key bindings for tier-list mode.
func TierKeyMap() tierKeys {
	return tierKeys{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "optimize weapon"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next list"),
		),
		Mode: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mode"),
		),
		Recompute: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "recompute"),
		),
		Optimizer: key.NewBinding(
			key.WithKeys("t", "esc"),
			key.WithHelp("t", "optimizer"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
