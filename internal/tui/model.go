package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// JobStatus represents the current state of a job in the TUI.
// Values mirror prefetch.JobStatus closely enough for direct bridging via
// StatusUpdateMsg, keeping the tui package decoupled from prefetch.
type JobStatus string

const (
	StatusPending JobStatus = "pending"
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusFailed  JobStatus = "failed"
	StatusSkipped JobStatus = "skipped"
)

// JobState tracks the display state of a single job.
type JobState struct {
	Name     string
	Status   JobStatus
	Duration time.Duration
	Summary  string
}

// minVisible is the smallest number of job rows rendered regardless of height.
const minVisible = 5

// Model is the Bubble Tea model for prefetch progress display.
type Model struct {
	jobs       []JobState
	spinner    spinner.Model
	currentIdx int
	done       bool
	err        error
	aborting   bool
	cancelFunc context.CancelFunc
	width      int
	height     int
	startTime  time.Time
	now        func() time.Time
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithCancelFunc sets the function called on the first q/ctrl+c press.
// A second press forces the program to quit.
func WithCancelFunc(fn context.CancelFunc) ModelOption {
	return func(m *Model) { m.cancelFunc = fn }
}

// StatusUpdateMsg bridges prefetch job updates to the display.
type StatusUpdateMsg struct {
	Index    int // Position in the plan.
	Job      string
	Status   JobStatus
	Progress string // "i/n"
	Duration time.Duration
	Summary  string
	Feedback string // Error text for failed jobs.
}

// OutputMsg carries a free-form line, such as a warning, for the TUI footer.
type OutputMsg struct {
	Text string
}

// RunDoneMsg signals that the run completed.
type RunDoneMsg struct{}

// RunErrorMsg signals that the run failed with an error.
type RunErrorMsg struct {
	Err error
}

func (StatusUpdateMsg) isDisplayEvent() {}
func (OutputMsg) isDisplayEvent()       {}
func (RunDoneMsg) isDisplayEvent()      {}
func (RunErrorMsg) isDisplayEvent()     {}

// NewModel creates a Model initialized with the given job names.
func NewModel(jobNames []string, opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	jobs := make([]JobState, len(jobNames))
	for i, name := range jobNames {
		jobs[i] = JobState{Name: name, Status: StatusPending}
	}

	m := Model{
		jobs:      jobs,
		spinner:   s,
		startTime: time.Now(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// jobIndex locates the row for msg: by Index when it names that job,
// otherwise the first row with the same name. -1 when none matches.
func (m Model) jobIndex(msg StatusUpdateMsg) int {
	if msg.Index >= 0 && msg.Index < len(m.jobs) && m.jobs[msg.Index].Name == msg.Job {
		return msg.Index
	}
	for i := range m.jobs {
		if m.jobs[i].Name == msg.Job {
			return i
		}
	}
	return -1
}

// Init starts the spinner tick.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StatusUpdateMsg:
		i := m.jobIndex(msg)
		if i < 0 {
			return m, nil
		}
		m.jobs[i].Status = msg.Status
		if msg.Duration > 0 {
			m.jobs[i].Duration = msg.Duration
		}
		switch {
		case msg.Status == StatusFailed && msg.Feedback != "":
			m.jobs[i].Summary = msg.Feedback
		case msg.Summary != "":
			m.jobs[i].Summary = msg.Summary
		}
		if msg.Status == StatusRunning {
			m.currentIdx = i
		}
		return m, nil

	case OutputMsg:
		return m, tea.Println(msg.Text)

	case RunDoneMsg:
		m.done = true
		m.aborting = false
		return m, tea.Quit

	case RunErrorMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.done {
				return m, nil
			}
			if m.cancelFunc == nil || m.aborting {
				m.done = true
				return m, tea.Quit
			}
			m.aborting = true
			m.cancelFunc()
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

var (
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// View renders a window of job rows around the current job plus a footer.
func (m Model) View() string {
	var b strings.Builder

	completed, failed := m.counts()
	fmt.Fprintf(&b, "%s\n\n", headerStyle.Render(
		fmt.Sprintf("Prefetching %d configurations (%d done, %d failed)", len(m.jobs), completed, failed)))

	lo, hi := m.window()
	if lo > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  ... %d earlier", lo)) + "\n")
	}
	for _, job := range m.jobs[lo:hi] {
		indicator := statusIndicator(job.Status, m.spinner.View())
		line := fmt.Sprintf("  %s %s", indicator, job.Name)
		if job.Duration > 0 {
			line += fmt.Sprintf(" %.1fs", job.Duration.Seconds())
		}
		if job.Summary != "" {
			line += mutedStyle.Render("  " + job.Summary)
		}
		b.WriteString(line + "\n")
	}
	if hi < len(m.jobs) {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  ... %d more", len(m.jobs)-hi)) + "\n")
	}

	if m.aborting {
		b.WriteString("\n  Aborting... (press q again to force quit)\n")
	}

	if m.done {
		if m.err != nil {
			fmt.Fprintf(&b, "\n  %s\n", failStyle.Render("Error: "+m.err.Error()))
		}
		fmt.Fprintf(&b, "\n  %d done, %d failed in %.1fs\n",
			completed, failed, m.now().Sub(m.startTime).Seconds())
	}

	return b.String()
}

// window returns the [lo, hi) slice of jobs that fits the terminal height,
// keeping the current job visible.
func (m Model) window() (int, int) {
	visible := len(m.jobs)
	if m.height > 0 {
		visible = max(m.height-8, minVisible)
	}
	if visible >= len(m.jobs) {
		return 0, len(m.jobs)
	}
	lo := max(m.currentIdx-visible/2, 0)
	hi := lo + visible
	if hi > len(m.jobs) {
		hi = len(m.jobs)
		lo = hi - visible
	}
	return lo, hi
}

func (m Model) counts() (completed, failed int) {
	for _, j := range m.jobs {
		switch j.Status {
		case StatusDone, StatusSkipped:
			completed++
		case StatusFailed:
			failed++
		}
	}
	return completed, failed
}

// statusIndicator returns the Unicode indicator for a job status.
func statusIndicator(status JobStatus, spinnerView string) string {
	switch status {
	case StatusPending:
		return "○"
	case StatusRunning:
		return spinnerView
	case StatusDone:
		return doneStyle.Render("✓")
	case StatusFailed:
		return failStyle.Render("✗")
	case StatusSkipped:
		return "–"
	default:
		return "?"
	}
}
