package dashboard

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/wopt/internal/weapon"
)

// containsText is a test alias for strings.Contains.
func containsText(s, sub string) bool {
	return strings.Contains(s, sub)
}

// stripANSI removes ANSI escape sequences from a string.
func stripANSI(s string) string {
	var out []byte
	i := 0
	for i < len(s) {
		if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 'A' || s[j] > 'Z') && (s[j] < 'a' || s[j] > 'z') {
				j++
			}
			if j < len(s) {
				j++
			}
			i = j
		} else {
			out = append(out, s[i])
			i++
		}
	}
	return string(out)
}

// containsPlainText checks if s contains sub after stripping ANSI escapes.
func containsPlainText(s, sub string) bool {
	return strings.Contains(stripANSI(s), sub)
}

// execBatch executes a tea.Cmd, handling both single commands and batch
// commands. It returns all resulting messages. Spinner ticks are skipped
// to avoid infinite recursion.
func execBatch(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var msgs []tea.Msg
		for _, c := range batch {
			if c != nil {
				result := c()
				// Skip spinner ticks to avoid recursion.
				if _, isTick := result.(spinner.TickMsg); !isTick {
					msgs = append(msgs, result)
				}
			}
		}
		return msgs
	}
	return []tea.Msg{msg}
}

// --- Key helpers ---

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func keyType(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

// --- Fake backend ---

// fakeBackend implements Backend for tests.
type fakeBackend struct {
	mu         sync.Mutex
	names      []string
	namesErr   error
	data       weapon.DataMap
	dataErr    error
	optErr     error
	refreshErr error
	optCalls   []weapon.Request
	forced     int
	refreshed  []string
}

func (f *fakeBackend) Weapons(context.Context) ([]string, error) {
	return f.names, f.namesErr
}

func (f *fakeBackend) WeaponData(_ context.Context, force bool) (weapon.DataMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if force {
		f.forced++
	}
	return f.data, f.dataErr
}

func (f *fakeBackend) Optimize(_ context.Context, req weapon.Request) (weapon.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optCalls = append(f.optCalls, req)
	if f.optErr != nil {
		return weapon.Result{}, f.optErr
	}
	return sampleResult(req.Weapon), nil
}

func (f *fakeBackend) Refresh(_ context.Context, target string) (weapon.DataMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, target)
	return f.data, f.refreshErr
}

func sampleNames() []string {
	return []string{"MysteryEye", "Belief", "BATTERY", "Thunderbolt"}
}

func sampleData() weapon.DataMap {
	entry := func(dps float64) weapon.Data {
		return weapon.Data{
			"1_valby":   {MaxDPS: dps * 2},
			"1_noValby": {MaxDPS: dps},
			"1_none":    {MaxDPS: dps},
			"1_enzo":    {MaxDPS: dps * 3},
		}
	}
	return weapon.DataMap{
		"MysteryEye":  entry(300),
		"BATTERY":     entry(200),
		"Thunderbolt": entry(100),
		"Belief":      entry(5000),
	}
}

func sampleClasses() weapon.Classes {
	return weapon.NewClasses([]string{"Belief"})
}

func sampleResult(name string) weapon.Result {
	return weapon.Result{
		Weapon: name,
		MaxDPS: 12345.678,
		BestRolls: []weapon.Roll{
			{RollType: "crit_rate", Value: 0.15},
		},
		BestModules: []weapon.ModuleContribution{
			{Module: weapon.Module{Name: "Small", ModuleType: "general"}, Contribution: 10},
			{Module: weapon.Module{Name: "Big", ModuleType: "special"}, Contribution: 90},
		},
	}
}

// loadedModel returns a sized model with the sample catalog applied.
func loadedModel(t *testing.T, b Backend, opts ...Option) Model {
	t.Helper()
	opts = append([]Option{WithClasses(sampleClasses())}, opts...)
	m := NewModel(b, opts...)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	next, _ = next.(Model).Update(CatalogMsg{Weapons: sampleNames(), Data: sampleData()})
	return next.(Model)
}

// send applies msg and returns the typed model.
func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// findMsg returns the first message of type T produced by cmd.
func findMsg[T tea.Msg](t *testing.T, cmd tea.Cmd) (T, bool) {
	t.Helper()
	for _, msg := range execBatch(t, cmd) {
		if v, ok := msg.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}
