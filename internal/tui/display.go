package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// DisplayEvent is an event sent to a Display via the update channel.
// Implemented by StatusUpdateMsg, OutputMsg, RunDoneMsg, and RunErrorMsg.
type DisplayEvent interface {
	isDisplayEvent()
}

// Verify at compile time that message types implement DisplayEvent.
var (
	_ DisplayEvent = StatusUpdateMsg{}
	_ DisplayEvent = RunDoneMsg{}
	_ DisplayEvent = RunErrorMsg{}
	_ DisplayEvent = OutputMsg{}
)

// Display renders job status updates.
type Display interface {
	Run(ctx context.Context, events <-chan DisplayEvent) error
}

// DisplayOptions configures display creation.
type DisplayOptions struct {
	Writer     io.Writer          // Output destination (default: os.Stdout).
	ForcePlain bool               // Force plain text even if TTY.
	Jobs       []string           // Job names for TUI initialization.
	CancelFunc context.CancelFunc // Called by TUI on abort keypress (ignored by PlainDisplay).
}

// NewDisplay returns a TUI display when the writer is a TTY, or a plain text
// display otherwise. ForcePlain overrides TTY detection.
func NewDisplay(opts DisplayOptions) Display {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	if opts.ForcePlain || !IsTTY(opts.Writer) {
		return &PlainDisplay{w: opts.Writer, now: time.Now}
	}

	return &TUIDisplay{jobs: opts.Jobs, w: opts.Writer, cancelFunc: opts.CancelFunc}
}

// IsTTY reports whether w is connected to a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Bridge manages the channel between a status producer and a Display consumer.
type Bridge struct {
	ch chan DisplayEvent
}

// NewBridge creates a Bridge with a buffered event channel.
func NewBridge() *Bridge {
	return &Bridge{ch: make(chan DisplayEvent, 16)}
}

// Events returns the read-only channel for Display.Run() to consume.
func (b *Bridge) Events() <-chan DisplayEvent {
	return b.ch
}

// Send delivers a StatusUpdateMsg to the display.
// It blocks if the channel buffer (16) is full.
func (b *Bridge) Send(msg StatusUpdateMsg) {
	b.ch <- msg
}

// Output delivers a free-form line to the display.
func (b *Bridge) Output(text string) {
	b.ch <- OutputMsg{Text: text}
}

// Done signals successful completion and closes the channel.
func (b *Bridge) Done() {
	b.ch <- RunDoneMsg{}
	close(b.ch)
}

// Error signals failure and closes the channel.
func (b *Bridge) Error(err error) {
	b.ch <- RunErrorMsg{Err: err}
	close(b.ch)
}

// PlainDisplay renders status updates as timestamped text lines.
type PlainDisplay struct {
	w   io.Writer
	now func() time.Time
}

// Run loops over events, printing each status update as a text line.
// Returns the run error if the run failed, or context error if cancelled.
func (d *PlainDisplay) Run(ctx context.Context, events <-chan DisplayEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch msg := ev.(type) {
			case StatusUpdateMsg:
				d.renderUpdate(msg)
			case OutputMsg:
				_, _ = fmt.Fprintln(d.w, msg.Text)
			case RunDoneMsg:
				return nil
			case RunErrorMsg:
				return msg.Err
			}
		}
	}
}

func (d *PlainDisplay) renderUpdate(su StatusUpdateMsg) {
	now := time.Now
	if d.now != nil {
		now = d.now
	}
	ts := now().Format("15:04:05")
	dur := ""
	if su.Duration > 0 {
		dur = fmt.Sprintf(" %.1fs", su.Duration.Seconds())
	}
	_, _ = fmt.Fprintf(d.w, "[%s] [%s] %s %s%s\n", ts, su.Progress, su.Job, su.Status, dur)

	if su.Status == StatusRunning {
		return
	}

	if su.Summary != "" {
		_, _ = fmt.Fprintf(d.w, "         %s\n", su.Summary)
	}
	if su.Feedback != "" && su.Status == StatusFailed {
		_, _ = fmt.Fprintf(d.w, "         error: %s\n", su.Feedback)
	}
}

// TUIDisplay renders status updates using a Bubble Tea terminal UI.
// Falls back to PlainDisplay if the TUI program fails to start.
type TUIDisplay struct {
	jobs       []string
	w          io.Writer
	cancelFunc context.CancelFunc
}

// Run starts the Bubble Tea program and feeds events from the channel.
// If the TUI fails to initialize, it falls back to plain text output.
func (d *TUIDisplay) Run(ctx context.Context, events <-chan DisplayEvent) error {
	var opts []ModelOption
	if d.cancelFunc != nil {
		opts = append(opts, WithCancelFunc(d.cancelFunc))
	}
	model := NewModel(d.jobs, opts...)
	p := tea.NewProgram(model, tea.WithOutput(d.w))

	// Forward events through an intermediate channel so we can stop
	// the goroutine cleanly on TUI failure before falling back.
	fwd := make(chan DisplayEvent, 16)
	stop := make(chan struct{})

	go func() {
		defer close(fwd)
		for ev := range events {
			select {
			case fwd <- ev:
			case <-stop:
				return
			}
		}
	}()

	go func() {
		for ev := range fwd {
			p.Send(ev)
		}
	}()

	final, err := p.Run()
	if err != nil {
		close(stop)
		plain := &PlainDisplay{w: d.w, now: time.Now}
		return plain.Run(ctx, events)
	}
	if m, ok := final.(Model); ok && m.err != nil {
		return m.err
	}
	return nil
}
