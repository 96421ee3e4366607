// Package dashboard implements the interactive optimizer TUI: a weapon
// picker with configuration toggles and a results pane, plus tier-list
// views over the backend snapshot. Separate from internal/tui which
// handles the prefetch progress display.
package dashboard

import (
	"context"

	"github.com/smileynet/wopt/internal/tier"
	"github.com/smileynet/wopt/internal/weapon"
)

// Mode represents the current dashboard view mode.
type Mode int

const (
	ModeOptimize Mode = iota // Weapon picker and configuration with results pane.
	ModeTiers                // Tier list with list tabs and mode switch.
)

// Focus represents which pane has keyboard focus.
type Focus int

const (
	PaneLeft  Focus = iota // Left pane (picker or tier entries) has focus.
	PaneRight              // Right pane (results viewport) has focus.
)

// --- Consumer-side interfaces ---

// Backend is the data source the dashboard reads from. The cached client
// satisfies it.
type Backend interface {
	Weapons(ctx context.Context) ([]string, error)
	WeaponData(ctx context.Context, force bool) (weapon.DataMap, error)
	Optimize(ctx context.Context, req weapon.Request) (weapon.Result, error)
	Refresh(ctx context.Context, target string) (weapon.DataMap, error)
}

// ReadyFunc blocks until the backend accepts requests.
type ReadyFunc func(ctx context.Context) error

// Preselect is the initial optimizer state, taken from deep-link flags.
type Preselect struct {
	Weapon    string
	HitChance float64
	Buffs     weapon.Buffs
}

// --- tea.Msg types ---

// ReadyMsg carries the result of the readiness wait.
type ReadyMsg struct {
	Err error
}

// CatalogMsg carries the weapon catalog and snapshot loaded at startup.
type CatalogMsg struct {
	Weapons []string
	Data    weapon.DataMap
	Err     error
}

// ResultMsg carries the answer to an optimize request. Seq identifies the
// request so superseded answers can be dropped.
type ResultMsg struct {
	Seq     int
	Request weapon.Request
	Result  weapon.Result
	Err     error
}

// SnapshotMsg carries a refreshed weapon-data snapshot.
type SnapshotMsg struct {
	Data weapon.DataMap
	Err  error
}

// OpenWeaponMsg asks the optimizer to open a weapon with a configuration,
// as selected from a tier list.
type OpenWeaponMsg struct {
	Weapon    string
	HitChance float64
	Buffs     weapon.Buffs
}

// tierKey identifies a memoized tier list.
type tierKey struct {
	Kind tier.Kind
	Mode string
}
