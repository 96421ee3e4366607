// Package tier grades weapons into S..F tiers by the z-score of their DPS.
package tier

import (
	"math"
	"sort"

	"github.com/smileynet/wopt/internal/weapon"
)

// Tier is a letter grade.
type Tier string

const (
	S Tier = "S"
	A Tier = "A"
	B Tier = "B"
	C Tier = "C"
	D Tier = "D"
	F Tier = "F"
)

// Order lists tiers best first.
var Order = []Tier{S, A, B, C, D, F}

// rank returns the position of t in Order.
func (t Tier) rank() int {
	for i, o := range Order {
		if o == t {
			return i
		}
	}
	return len(Order)
}

// Grade is a weapon's tier with its floored DPS and z-score.
type Grade struct {
	Tier Tier    `json:"tier"`
	DPS  int64   `json:"dps"`
	Z    float64 `json:"z"`
}

// ForZ maps a z-score to a tier: z>2 S, z>1 A, z>0 B, z>-1 C, z>-2 D, else F.
func ForZ(z float64) Tier {
	switch {
	case z > 2:
		return S
	case z > 1:
		return A
	case z > 0:
		return B
	case z > -1:
		return C
	case z > -2:
		return D
	default:
		return F
	}
}

// Classify grades every weapon against the population mean and standard
// deviation of the input. Empty input yields an empty map. When every value
// is equal the deviation is zero and all weapons get z = 0 (tier C).
// Non-finite values are skipped.
func Classify(dps map[string]float64) map[string]Grade {
	grades := make(map[string]Grade, len(dps))

	var sum float64
	var n int
	for _, v := range dps {
		if !finite(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return grades
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range dps {
		if !finite(v) {
			continue
		}
		sq += (v - mean) * (v - mean)
	}
	stddev := math.Sqrt(sq / float64(n))

	for name, v := range dps {
		if !finite(v) {
			continue
		}
		var z float64
		if stddev > 0 {
			z = (v - mean) / stddev
		}
		grades[name] = Grade{Tier: ForZ(z), DPS: int64(math.Floor(v)), Z: z}
	}
	return grades
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Entry is one ranked weapon.
type Entry struct {
	Weapon string
	Grade
}

// Rank orders grades by tier, then DPS descending, then name.
func Rank(grades map[string]Grade) []Entry {
	entries := make([]Entry, 0, len(grades))
	for name, g := range grades {
		entries = append(entries, Entry{Weapon: name, Grade: g})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Tier != b.Tier {
			return a.Tier.rank() < b.Tier.rank()
		}
		if a.DPS != b.DPS {
			return a.DPS > b.DPS
		}
		return a.Weapon < b.Weapon
	})
	return entries
}

// Group splits ranked entries by tier, preserving rank order within a tier.
func Group(entries []Entry) map[Tier][]Entry {
	groups := make(map[Tier][]Entry, len(Order))
	for _, e := range entries {
		groups[e.Tier] = append(groups[e.Tier], e)
	}
	return groups
}

// Select extracts weapon DPS from the snapshot for the configuration whose
// key splits into (hit, mode). include filters weapon names; nil keeps all.
func Select(data weapon.DataMap, hit, mode string, include func(string) bool) map[string]float64 {
	out := make(map[string]float64)
	for name, configs := range data {
		if include != nil && !include(name) {
			continue
		}
		for key, r := range configs {
			h, m, ok := weapon.SplitConfigKey(key)
			if ok && h == hit && m == mode {
				out[name] = r.MaxDPS
				break
			}
		}
	}
	return out
}
