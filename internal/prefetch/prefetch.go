// Package prefetch warms the result cache for a plan of weapon configurations,
// persisting progress so an interrupted run resumes where it stopped.
package prefetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smileynet/wopt/internal/weapon"
)

// Sentinel errors for caller-checkable conditions.
var (
	ErrCircuitBroken = errors.New("prefetch: circuit breaker tripped")
	ErrNoJobs        = errors.New("prefetch: no jobs planned")
	ErrInterrupted   = errors.New("prefetch: interrupted")
)

// Optimizer fetches (and caches) one optimization result.
type Optimizer interface {
	Optimize(ctx context.Context, req weapon.Request) (weapon.Result, error)
}

// StateStore persists run state between invocations.
type StateStore interface {
	Save(state State) error
	Load(id string) (State, bool, error)
	Remove(id string) error
}

// Callback receives run lifecycle events for display.
type Callback interface {
	OnRunStart(id string, jobs []JobResult)
	OnJobStart(index int, job Job)
	OnJobComplete(index int, result JobResult)
	OnJobFail(index int, job Job, err error)
	OnRunComplete(state State)
}

// RunStatus represents the state of a run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// JobStatus represents the state of one job within a run.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Failure modes.
const (
	FailAbort    = "abort"
	FailContinue = "continue"
)

// Config holds run settings.
type Config struct {
	FailureMode    string // "abort" | "continue"
	CircuitBreaker int    // Max consecutive failures before stopping; 0 disables.
}

// Job is one configuration to optimize.
type Job struct {
	Weapon    string       `json:"weapon"`
	HitChance float64      `json:"hit_chance"`
	Buffs     weapon.Buffs `json:"buffs"`
}

// Request returns the optimization request for the job.
func (j Job) Request() weapon.Request {
	return weapon.NewRequest(j.Weapon, j.HitChance, j.Buffs)
}

// Key identifies the job; it equals the result-cache key.
func (j Job) Key() string {
	return j.Request().Key()
}

// JobResult records the outcome of a single job.
type JobResult struct {
	Job    Job       `json:"job"`
	Status JobStatus `json:"status"`
	MaxDPS float64   `json:"max_dps,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// State holds the complete run state for persistence.
type State struct {
	ID             string      `json:"id"`
	Jobs           []JobResult `json:"jobs"`
	CurrentJobIdx  int         `json:"current_job_idx"`
	ConsecFailures int         `json:"consecutive_failures"`
	StartedAt      time.Time   `json:"started_at"`
	FinishedAt     time.Time   `json:"finished_at,omitzero"`
	Status         RunStatus   `json:"status"`
}

// Counts returns how many jobs completed and failed.
func (s State) Counts() (completed, failed int) {
	for _, j := range s.Jobs {
		switch j.Status {
		case JobCompleted:
			completed++
		case JobFailed:
			failed++
		}
	}
	return completed, failed
}

// Plan returns every combination of weapon, hit chance and buff set, in
// that nesting order. Repeated combinations appear once.
func Plan(weapons []string, hitChances []float64, buffSets []weapon.Buffs) []Job {
	jobs := make([]Job, 0, len(weapons)*len(hitChances)*len(buffSets))
	seen := make(map[string]bool, cap(jobs))
	for _, w := range weapons {
		for _, h := range hitChances {
			for _, b := range buffSets {
				j := Job{Weapon: w, HitChance: h, Buffs: b}
				if seen[j.Key()] {
					continue
				}
				seen[j.Key()] = true
				jobs = append(jobs, j)
			}
		}
	}
	return jobs
}

// Runner executes a prefetch plan sequentially with circuit breaking and
// state persistence.
type Runner struct {
	optimizer Optimizer
	store     StateStore
	config    Config
	callback  Callback
	logger    *slog.Logger
	now       func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger that reports state persistence failures.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner with the given dependencies.
func NewRunner(optimizer Optimizer, store StateStore, config Config, callback Callback, opts ...RunnerOption) *Runner {
	r := &Runner{
		optimizer: optimizer,
		store:     store,
		config:    config,
		callback:  callback,
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// save persists state. A failed write does not stop the run, but the run
// can then only resume from the last state that was written.
func (r *Runner) save(state State) {
	if err := r.store.Save(state); err != nil {
		r.logger.Warn("saving prefetch state", "run", state.ID, "job", state.CurrentJobIdx, "err", err)
	}
}

// Run executes jobs under run id. A saved, unfinished run with the same id
// and plan is resumed; completed jobs are not repeated.
func (r *Runner) Run(ctx context.Context, id string, jobs []Job) error {
	if len(jobs) == 0 {
		return ErrNoJobs
	}

	state := r.initOrResumeState(id, jobs)
	state.Status = RunRunning
	r.callback.OnRunStart(id, state.Jobs)

	for i := state.CurrentJobIdx; i < len(state.Jobs); i++ {
		job := &state.Jobs[i]
		if job.Status == JobCompleted {
			continue
		}

		if err := ctx.Err(); err != nil {
			return r.interrupt(&state, i, err)
		}

		if r.config.CircuitBreaker > 0 && state.ConsecFailures >= r.config.CircuitBreaker {
			state.Status = RunFailed
			state.CurrentJobIdx = i
			r.save(state)
			r.callback.OnRunComplete(state)
			return ErrCircuitBroken
		}

		r.callback.OnJobStart(i, job.Job)
		job.Status = JobRunning

		res, err := r.optimizer.Optimize(ctx, job.Job.Request())
		if err != nil {
			if ctx.Err() != nil {
				job.Status = JobPending
				return r.interrupt(&state, i, ctx.Err())
			}

			job.Status = JobFailed
			job.Error = err.Error()
			state.ConsecFailures++
			r.callback.OnJobFail(i, job.Job, err)

			if r.config.FailureMode == FailAbort {
				state.Status = RunFailed
				state.CurrentJobIdx = i
				r.save(state)
				r.callback.OnRunComplete(state)
				return fmt.Errorf("prefetch: job %s failed: %w", job.Job.Key(), err)
			}
			state.CurrentJobIdx = i + 1
			r.save(state)
			continue
		}

		job.Status = JobCompleted
		job.MaxDPS = res.MaxDPS
		job.Error = ""
		state.ConsecFailures = 0
		r.callback.OnJobComplete(i, *job)

		state.CurrentJobIdx = i + 1
		r.save(state)
	}

	state.Status = RunCompleted
	state.FinishedAt = r.now()
	r.save(state)
	r.callback.OnRunComplete(state)
	return nil
}

// interrupt records a cancelled run so it can be resumed from job i.
func (r *Runner) interrupt(state *State, i int, cause error) error {
	state.Status = RunInterrupted
	state.CurrentJobIdx = i
	r.save(*state)
	r.callback.OnRunComplete(*state)
	return fmt.Errorf("%w: %w", ErrInterrupted, cause)
}

// initOrResumeState loads existing state or creates a new one. Saved state
// is reused only when it is unfinished and was built from the same plan.
// Failed jobs of a resumed run are retried.
func (r *Runner) initOrResumeState(id string, jobs []Job) State {
	existing, found, err := r.store.Load(id)
	if err != nil {
		r.logger.Warn("loading prefetch state, starting fresh", "run", id, "err", err)
	}
	if err == nil && found && existing.Status != RunCompleted && samePlan(existing.Jobs, jobs) {
		existing.ConsecFailures = 0
		existing.CurrentJobIdx = 0
		for i := range existing.Jobs {
			if existing.Jobs[i].Status != JobCompleted {
				existing.Jobs[i].Status = JobPending
				existing.Jobs[i].Error = ""
			}
		}
		return existing
	}

	results := make([]JobResult, len(jobs))
	for i, j := range jobs {
		results[i] = JobResult{Job: j, Status: JobPending}
	}
	return State{
		ID:        id,
		Jobs:      results,
		StartedAt: r.now(),
		Status:    RunRunning,
	}
}

func samePlan(saved []JobResult, jobs []Job) bool {
	if len(saved) != len(jobs) {
		return false
	}
	for i := range jobs {
		if saved[i].Job.Key() != jobs[i].Key() {
			return false
		}
	}
	return true
}
