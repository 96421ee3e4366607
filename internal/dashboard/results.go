package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smileynet/wopt/internal/weapon"
)

// resultsState tracks the latest optimize request and its answer.
type resultsState struct {
	seq     int
	request weapon.Request
	result  *weapon.Result
	loading bool
	err     error
}

// start records a new request and returns its sequence number. Any answer
// for an earlier sequence number is superseded.
func (rs resultsState) start(req weapon.Request) resultsState {
	rs.seq++
	rs.request = req
	rs.loading = true
	rs.err = nil
	rs.result = nil
	return rs
}

// apply records msg if it answers the latest request. Stale answers are
// dropped and reported as not applied.
func (rs resultsState) apply(msg ResultMsg) (resultsState, bool) {
	if msg.Seq != rs.seq {
		return rs, false
	}
	rs.loading = false
	if msg.Err != nil {
		rs.err = msg.Err
		rs.result = nil
		return rs, true
	}
	r := msg.Result
	rs.result = &r
	rs.err = nil
	return rs, true
}

// View renders the results pane content.
func (rs resultsState) View(spinnerView string) string {
	switch {
	case rs.loading:
		return fmt.Sprintf("%s Optimizing %s...", spinnerView, rs.request.Weapon)
	case rs.err != nil:
		if errors.Is(rs.err, weapon.ErrNoResult) {
			return fmt.Sprintf("No result for %s with this configuration.\n\nPress r to retry", rs.request.Weapon)
		}
		return fmt.Sprintf("Error: %s\n\nPress r to retry", rs.err)
	case rs.result == nil:
		return mutedText.Render("Select a weapon and press o to optimize")
	}
	return renderResult(rs.request, *rs.result)
}

// renderResult formats a result: DPS with two decimals, rolls as
// "type: value", and modules by contribution, largest first.
func renderResult(req weapon.Request, r weapon.Result) string {
	var b strings.Builder

	name := r.Weapon
	if name == "" {
		name = req.Weapon
	}
	fmt.Fprintf(&b, "%s\n", headingText.Render(name))
	fmt.Fprintf(&b, "%s\n\n", mutedText.Render(fmt.Sprintf("hit chance %s, buff %s",
		weapon.FormatHitChance(req.HitChance), req.Buffs())))

	fmt.Fprintf(&b, "Max DPS: %s\n", dpsText.Render(fmt.Sprintf("%.2f", r.MaxDPS)))

	b.WriteString("\nBest rolls\n")
	if len(r.BestRolls) == 0 {
		b.WriteString(mutedText.Render("  none") + "\n")
	}
	for _, roll := range r.BestRolls {
		fmt.Fprintf(&b, "  %s: %g\n", roll.RollType, roll.Value)
	}

	b.WriteString("\nBest modules\n")
	modules := r.ModulesByContribution()
	if len(modules) == 0 {
		b.WriteString(mutedText.Render("  none") + "\n")
	}
	for _, mc := range modules {
		fmt.Fprintf(&b, "  %s %s %s\n",
			mc.Module.Name,
			mutedText.Render("("+mc.Module.ModuleType+")"),
			fmt.Sprintf("%.2f", mc.Contribution))
		for _, e := range mc.Module.Effects {
			fmt.Fprintf(&b, "      %s %g\n", e.EffectType, e.Value)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
