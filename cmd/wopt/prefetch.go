package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/smileynet/wopt/internal/prefetch"
	"github.com/smileynet/wopt/internal/state"
	"github.com/smileynet/wopt/internal/tui"
	"github.com/smileynet/wopt/internal/weapon"
)

// PrefetchCmd runs the optimizer over a plan of configurations so later
// lookups are served from the cache.
type PrefetchCmd struct {
	ID          string    `help:"Run ID. Rerunning an unfinished ID resumes it." default:"default"`
	Weapons     []string  `help:"Weapons to prefetch. Defaults to every weapon." sep:","`
	HitChance   []float64 `help:"Hit chances to prefetch." default:"1" sep:","`
	Buff        []string  `help:"Buff modes to prefetch (none, valby, gley, enzo)." default:"none,valby" sep:","`
	FailureMode string    `help:"On a failed job: abort or continue. Defaults to the config."`
	Fresh       bool      `help:"Discard saved progress for this ID first."`
	List        bool      `help:"List saved runs and exit."`
	NoTUI       bool      `help:"Force plain text output even if stdout is a TTY."`
}

// jobRunner abstracts prefetch.Runner for testing.
type jobRunner interface {
	Run(ctx context.Context, id string, jobs []prefetch.Job) error
}

// runStore is the part of the state store the prefetch command uses directly.
type runStore interface {
	Load(id string) (prefetch.State, bool, error)
	Remove(id string) error
	IDs() ([]string, error)
}

// Run builds real dependencies and executes the prefetch plan.
func (c *PrefetchCmd) Run(g *Globals) error {
	useTUI := !c.NoTUI && !c.List && tui.IsTTY(os.Stdout)
	var logTo io.Writer = os.Stderr
	if useTUI {
		logTo = nil
	}
	a, err := g.open(logTo)
	if err != nil {
		return fmt.Errorf("prefetch: %w", err)
	}
	defer a.close()

	store := state.NewFileStore(a.cfg.Prefetch.StateDir)
	if c.List {
		return c.list(os.Stdout, store)
	}

	mode, err := c.failureMode(a.cfg.Prefetch.FailureMode)
	if err != nil {
		return err
	}

	ctx, stop := interruptible()
	defer stop()

	jobs, err := c.plan(ctx, a.client)
	if err != nil {
		return err
	}

	// The cancel func is passed to the TUI so q aborts the run gracefully.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	bridge := tui.NewBridge()
	display := tui.NewDisplay(tui.DisplayOptions{
		Writer:     os.Stdout,
		ForcePlain: !useTUI,
		Jobs:       jobNames(jobs),
		CancelFunc: cancel,
	})

	runner := prefetch.NewRunner(a.client, store, prefetch.Config{
		FailureMode:    mode,
		CircuitBreaker: a.cfg.Prefetch.CircuitBreaker,
	}, newBridgeCallback(bridge, len(jobs)), prefetch.WithLogger(a.logger))

	return c.run(runCtx, runner, store, display, bridge, jobs)
}

// failureMode returns the flag's failure mode, or configured when unset.
func (c *PrefetchCmd) failureMode(configured string) (string, error) {
	switch c.FailureMode {
	case "":
		return configured, nil
	case prefetch.FailAbort, prefetch.FailContinue:
		return c.FailureMode, nil
	}
	return "", fmt.Errorf("prefetch: failure mode must be %q or %q, got %q", prefetch.FailAbort, prefetch.FailContinue, c.FailureMode)
}

// plan expands the flags into jobs, fetching the weapon list when none is given.
func (c *PrefetchCmd) plan(ctx context.Context, l weaponLister) ([]prefetch.Job, error) {
	for _, h := range c.HitChance {
		if weapon.HitChanceIndex(h) < 0 {
			return nil, fmt.Errorf("prefetch: %w", errHitChance(h))
		}
	}
	buffSets := make([]weapon.Buffs, 0, len(c.Buff))
	for _, s := range c.Buff {
		b, err := weapon.ParseBuff(s)
		if err != nil {
			return nil, fmt.Errorf("prefetch: %w", err)
		}
		buffSets = append(buffSets, b)
	}

	names := c.Weapons
	if len(names) == 0 {
		var err error
		if names, err = l.Weapons(ctx); err != nil {
			return nil, fmt.Errorf("prefetch: listing weapons: %w", err)
		}
	}

	jobs := prefetch.Plan(names, c.HitChance, buffSets)
	if len(jobs) == 0 {
		return nil, fmt.Errorf("prefetch: %w", prefetch.ErrNoJobs)
	}
	return jobs, nil
}

// run executes the plan with display lifecycle management, enabling testable wiring.
func (c *PrefetchCmd) run(ctx context.Context, r jobRunner, store runStore, display tui.Display, bridge *tui.Bridge, jobs []prefetch.Job) error {
	if c.Fresh {
		if err := store.Remove(c.ID); err != nil {
			return fmt.Errorf("prefetch: %w", err)
		}
	}

	displayDone := make(chan error, 1)
	go func() {
		displayDone <- display.Run(context.Background(), bridge.Events())
	}()

	runErr := r.Run(ctx, c.ID, jobs)

	if runErr != nil {
		bridge.Error(runErr)
	} else {
		bridge.Done()
	}

	// Wait for display to finish (so it releases the terminal).
	<-displayDone

	if runErr != nil {
		return fmt.Errorf("prefetch: %w", runErr)
	}
	return nil
}

// list prints every saved run with its progress.
func (c *PrefetchCmd) list(w io.Writer, store runStore) error {
	ids, err := store.IDs()
	if err != nil {
		return fmt.Errorf("prefetch: %w", err)
	}
	if len(ids) == 0 {
		_, _ = fmt.Fprintln(w, "No saved runs")
		return nil
	}
	for _, id := range ids {
		st, ok, err := store.Load(id)
		if err != nil {
			_, _ = fmt.Fprintf(w, "%-16s unreadable: %s\n", id, err)
			continue
		}
		if !ok {
			continue
		}
		completed, failed := st.Counts()
		_, _ = fmt.Fprintf(w, "%-16s %-11s %d/%d done, %d failed  started %s\n",
			id, st.Status, completed, len(st.Jobs), failed, st.StartedAt.Format(time.RFC3339))
	}
	return nil
}

// jobName is the display label of a job, e.g. "Belief 1 enzo".
func jobName(j prefetch.Job) string {
	return fmt.Sprintf("%s %s %s", j.Weapon, weapon.FormatHitChance(j.HitChance), j.Buffs.Mode())
}

func jobNames(jobs []prefetch.Job) []string {
	names := make([]string, len(jobs))
	for i, j := range jobs {
		names[i] = jobName(j)
	}
	return names
}

// bridgeCallback converts runner lifecycle events to tui status updates
// and sends them through the bridge.
type bridgeCallback struct {
	bridge *tui.Bridge
	total  int
	now    func() time.Time

	mu      sync.Mutex
	started map[int]time.Time
}

var _ prefetch.Callback = (*bridgeCallback)(nil)

func newBridgeCallback(bridge *tui.Bridge, total int) *bridgeCallback {
	return &bridgeCallback{bridge: bridge, total: total, now: time.Now, started: make(map[int]time.Time)}
}

func (c *bridgeCallback) progress(i int) string {
	return fmt.Sprintf("%d/%d", i+1, c.total)
}

func (c *bridgeCallback) elapsed(i int) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	start, ok := c.started[i]
	if !ok {
		return 0
	}
	delete(c.started, i)
	return c.now().Sub(start)
}

func (c *bridgeCallback) OnRunStart(id string, jobs []prefetch.JobResult) {
	resumed := 0
	for i, j := range jobs {
		if j.Status != prefetch.JobCompleted {
			continue
		}
		resumed++
		c.bridge.Send(tui.StatusUpdateMsg{
			Index:    i,
			Job:      jobName(j.Job),
			Status:   tui.StatusSkipped,
			Progress: c.progress(i),
			Summary:  "done in an earlier run",
		})
	}
	if resumed > 0 {
		c.bridge.Output(fmt.Sprintf("Resuming run %s: %d of %d jobs already done", id, resumed, len(jobs)))
	}
}

func (c *bridgeCallback) OnJobStart(i int, job prefetch.Job) {
	c.mu.Lock()
	c.started[i] = c.now()
	c.mu.Unlock()
	c.bridge.Send(tui.StatusUpdateMsg{
		Index:    i,
		Job:      jobName(job),
		Status:   tui.StatusRunning,
		Progress: c.progress(i),
	})
}

func (c *bridgeCallback) OnJobComplete(i int, r prefetch.JobResult) {
	c.bridge.Send(tui.StatusUpdateMsg{
		Index:    i,
		Job:      jobName(r.Job),
		Status:   tui.StatusDone,
		Progress: c.progress(i),
		Duration: c.elapsed(i),
		Summary:  fmt.Sprintf("max DPS %.2f", r.MaxDPS),
	})
}

func (c *bridgeCallback) OnJobFail(i int, job prefetch.Job, err error) {
	c.bridge.Send(tui.StatusUpdateMsg{
		Index:    i,
		Job:      jobName(job),
		Status:   tui.StatusFailed,
		Progress: c.progress(i),
		Duration: c.elapsed(i),
		Feedback: err.Error(),
	})
}

func (c *bridgeCallback) OnRunComplete(s prefetch.State) {
	completed, failed := s.Counts()
	msg := fmt.Sprintf("Run %s %s: %d done, %d failed", s.ID, s.Status, completed, failed)
	if s.Status == prefetch.RunInterrupted || s.Status == prefetch.RunFailed {
		msg += fmt.Sprintf(". Rerun with --id %s to resume", s.ID)
	}
	c.bridge.Output(msg)
}
