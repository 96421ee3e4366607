package dashboard

import (
	"errors"
	"strings"
	"testing"

	"github.com/smileynet/wopt/internal/weapon"
)

func TestResults_StartSupersedesEarlierRequest(t *testing.T) {
	// Given: two requests issued back to back
	var rs resultsState
	first := weapon.NewRequest("Belief", 1, weapon.Buffs{})
	second := weapon.NewRequest("Belief", 1, weapon.Buffs{Valby: true})
	rs = rs.start(first)
	firstSeq := rs.seq
	rs = rs.start(second)

	// When: the first answer arrives late
	rs, applied := rs.apply(ResultMsg{Seq: firstSeq, Request: first, Result: sampleResult("Belief")})

	// Then: it is dropped and the pane keeps loading
	if applied {
		t.Error("superseded result should not be applied")
	}
	if !rs.loading || rs.result != nil {
		t.Error("pane should still wait for the latest request")
	}

	// When: the latest answer arrives
	rs, applied = rs.apply(ResultMsg{Seq: rs.seq, Request: second, Result: sampleResult("Belief")})

	// Then: it is shown
	if !applied || rs.loading || rs.result == nil {
		t.Errorf("latest result should apply: applied=%v loading=%v", applied, rs.loading)
	}
}

func TestResults_ErrorAndRetryText(t *testing.T) {
	var rs resultsState
	rs = rs.start(weapon.NewRequest("Belief", 1, weapon.Buffs{}))
	rs, _ = rs.apply(ResultMsg{Seq: rs.seq, Err: errors.New("api: POST /optimize: status 500")})

	plain := stripANSI(rs.View(""))

	if !strings.Contains(plain, "Error: api: POST /optimize: status 500") || !strings.Contains(plain, "Press r to retry") {
		t.Errorf("error view = %q", plain)
	}
}

func TestResults_NoResultMessage(t *testing.T) {
	var rs resultsState
	rs = rs.start(weapon.NewRequest("Belief", 1, weapon.Buffs{}))
	rs, _ = rs.apply(ResultMsg{Seq: rs.seq, Err: weapon.ErrNoResult})

	if !containsPlainText(rs.View(""), "No result for Belief") {
		t.Errorf("view = %q", rs.View(""))
	}
}

func TestResults_EmptyAndLoadingStates(t *testing.T) {
	var rs resultsState
	if !containsPlainText(rs.View(""), "press o to optimize") {
		t.Error("empty pane should prompt for a selection")
	}

	rs = rs.start(weapon.NewRequest("Belief", 1, weapon.Buffs{}))
	if !containsPlainText(rs.View("*"), "* Optimizing Belief...") {
		t.Errorf("loading view = %q", rs.View("*"))
	}
}

func TestRenderResult(t *testing.T) {
	req := weapon.NewRequest("Belief", 0.5, weapon.Buffs{Gley: true})

	plain := stripANSI(renderResult(req, sampleResult("Belief")))

	for _, want := range []string{
		"Belief",
		"hit chance 0.5, buff gley",
		"Max DPS: 12345.68",
		"crit_rate: 0.15",
	} {
		if !strings.Contains(plain, want) {
			t.Errorf("render missing %q:\n%s", want, plain)
		}
	}

	big := strings.Index(plain, "Big")
	small := strings.Index(plain, "Small")
	if big < 0 || small < 0 || big > small {
		t.Errorf("modules should be sorted by contribution descending:\n%s", plain)
	}
}

func TestRenderResult_EmptyLists(t *testing.T) {
	plain := stripANSI(renderResult(weapon.NewRequest("X", 1, weapon.Buffs{}), weapon.Result{MaxDPS: 1}))

	if strings.Count(plain, "  none") != 2 {
		t.Errorf("empty rolls and modules should both say none:\n%s", plain)
	}
}
