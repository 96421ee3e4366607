// Package weapon defines the optimizer's data model: weapons, optimization
// requests and results, and the backend's weapon-data snapshot.
package weapon

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// PlaceholderImage is shown for weapons the backend has no artwork for.
const PlaceholderImage = "https://via.placeholder.com/40"

// Weapon is a selectable weapon in the catalog.
type Weapon struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// FromNames builds catalog entries for a list of weapon names.
func FromNames(names []string) []Weapon {
	weapons := make([]Weapon, len(names))
	for i, n := range names {
		weapons[i] = Weapon{Name: n, Image: PlaceholderImage}
	}
	return weapons
}

// Roll is a weapon stat variant chosen by the optimizer.
type Roll struct {
	RollType string  `json:"roll_type"`
	Value    float64 `json:"value"`
}

// Effect is a single stat effect granted by a module.
type Effect struct {
	EffectType string  `json:"effect_type"`
	Value      float64 `json:"value"`
}

// Module is an equippable modifier.
type Module struct {
	Name       string   `json:"name"`
	ModuleType string   `json:"module_type"`
	Effects    []Effect `json:"effects"`
}

// ModuleContribution pairs a module with its share of the weapon's DPS.
// On the wire it is a two-element array: [module, contribution].
type ModuleContribution struct {
	Module       Module
	Contribution float64
}

// MarshalJSON encodes the pair as [module, contribution].
func (mc ModuleContribution) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{mc.Module, mc.Contribution})
}

// UnmarshalJSON accepts [module, contribution] or a bare module object.
func (mc *ModuleContribution) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		mc.Contribution = 0
		return json.Unmarshal(data, &mc.Module)
	}

	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("weapon: module contribution: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("weapon: module contribution: want 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &mc.Module); err != nil {
		return fmt.Errorf("weapon: module contribution module: %w", err)
	}
	if err := json.Unmarshal(pair[1], &mc.Contribution); err != nil {
		return fmt.Errorf("weapon: module contribution value: %w", err)
	}
	return nil
}

// Result is the optimizer's answer for one weapon configuration.
type Result struct {
	Weapon      string               `json:"weapon,omitempty"`
	Valby       bool                 `json:"valby,omitempty"`
	Gley        bool                 `json:"gley,omitempty"`
	Enzo        bool                 `json:"enzo,omitempty"`
	MaxDPS      float64              `json:"max_dps"`
	BestRolls   []Roll               `json:"best_rolls"`
	BestModules []ModuleContribution `json:"best_modules"`
}

// ErrNoResult indicates the optimizer returned nothing usable.
var ErrNoResult = errors.New("weapon: no optimization result")

// Validate reports ErrNoResult for an empty payload.
func (r Result) Validate() error {
	if r.MaxDPS == 0 && len(r.BestRolls) == 0 && len(r.BestModules) == 0 {
		return ErrNoResult
	}
	return nil
}

// ModulesByContribution returns the best modules ordered by contribution,
// largest first. Ties keep the optimizer's order.
func (r Result) ModulesByContribution() []ModuleContribution {
	out := append([]ModuleContribution(nil), r.BestModules...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Contribution > out[j].Contribution
	})
	return out
}

// Data maps a configuration key (e.g. "1_valby") to a result.
type Data map[string]Result

// DataMap is the backend's weapon-data snapshot: weapon name to per-configuration results.
type DataMap map[string]Data

// Names returns the weapon names in the snapshot, sorted.
func (d DataMap) Names() []string {
	names := make([]string, 0, len(d))
	for n := range d {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the result stored for weapon under the exact configuration key.
func (d DataMap) Lookup(name, key string) (Result, bool) {
	data, ok := d[name]
	if !ok {
		return Result{}, false
	}
	r, ok := data[key]
	return r, ok
}

// Request is the body of POST /optimize.
type Request struct {
	Weapon    string  `json:"weapon"`
	HitChance float64 `json:"weak_point_hit_chance"`
	Valby     bool    `json:"valby"`
	Gley      bool    `json:"gley,omitempty"`
	Enzo      bool    `json:"enzo,omitempty"`
}

// NewRequest builds a request for weapon at hitChance with buffs applied.
func NewRequest(name string, hitChance float64, buffs Buffs) Request {
	return Request{
		Weapon:    name,
		HitChance: hitChance,
		Valby:     buffs.Valby,
		Gley:      buffs.Gley,
		Enzo:      buffs.Enzo,
	}
}

// Buffs returns the buff flags carried by the request.
func (r Request) Buffs() Buffs {
	return Buffs{Valby: r.Valby, Gley: r.Gley, Enzo: r.Enzo}
}

// Key returns the result-cache key for the request: weapon name plus its configuration key.
func (r Request) Key() string {
	return r.Weapon + "_" + ConfigKey(r.HitChance, r.Buffs())
}
