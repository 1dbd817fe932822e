// Package linear provides a synchronous, line-buffered renderer for CI logs.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/petal/internal/core/domain"
	"go.trai.ch/petal/internal/core/ports"
	"go.trai.ch/petal/internal/ui/output"
	"go.trai.ch/petal/internal/ui/style"
)

var _ ports.Renderer = (*Renderer)(nil)

// Renderer implements ports.Renderer with chronological, step-prefixed logs.
// Step output goes to stdout; lifecycle messages and the summary go to stderr.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	output *termenv.Output
	styles *lipgloss.Renderer

	mu    sync.Mutex
	steps map[string]*stepState // spanID -> step state
}

type stepState struct {
	name      string
	startTime time.Time
	partial   bytes.Buffer
}

// NewRenderer creates a Renderer. Nil writers default to the process streams.
func NewRenderer(stdout, stderr io.Writer, profile termenv.Profile) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	styles := lipgloss.NewRenderer(stderr)
	styles.SetColorProfile(profile)

	return &Renderer{
		stdout: stdout,
		stderr: stderr,
		output: output.NewWithProfile(stderr, profile),
		styles: styles,
		steps:  make(map[string]*stepState),
	}
}

// Start is a no-op for linear renderer (synchronous).
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop flushes partial lines of steps that never completed.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, st := range r.steps {
		r.flushPartialLocked(st)
	}
	return nil
}

// Wait is a no-op for linear renderer (synchronous).
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit prints the planned steps.
func (r *Renderer) OnPlanEmit(steps []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.stderr, "Running %d step(s): %s\n", len(steps), strings.Join(steps, ", "))
}

// OnStepStart prints a step start message.
func (r *Renderer) OnStepStart(spanID, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.steps[spanID] = &stepState{name: name, startTime: startTime}
	_, _ = fmt.Fprintf(r.stderr, "%s Starting...\n", r.prefix(name))
}

// OnStepLog prints complete lines with the step prefix and holds back a trailing partial line.
func (r *Renderer) OnStepLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.steps[spanID]
	if !ok {
		return
	}

	st.partial.Write(data)
	for {
		idx := bytes.IndexByte(st.partial.Bytes(), '\n')
		if idx < 0 {
			break
		}
		r.printLineLocked(st.name, st.partial.Next(idx+1))
	}
}

// OnStepComplete flushes the step's output and prints its outcome.
func (r *Renderer) OnStepComplete(spanID string, endTime time.Time, status domain.StepStatus, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.steps[spanID]
	if !ok {
		return
	}
	r.flushPartialLocked(st)
	delete(r.steps, spanID)

	duration := formatDuration(endTime.Sub(st.startTime))
	prefix := r.prefix(st.name)

	switch status {
	case domain.StepFailed:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Failed after %s: %v\n", prefix, r.icon(status), duration, err)
	case domain.StepTolerated:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Failed after %s (tolerated): %v\n", prefix, r.icon(status), duration, err)
	default:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Completed in %s\n", prefix, r.icon(status), duration)
	}
}

// OnRunComplete prints one line per step followed by the run verdict.
func (r *Renderer) OnRunComplete(report *domain.RunReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	header := r.styles.NewStyle().Bold(true).Foreground(style.Iris).Render("Summary")
	_, _ = fmt.Fprintf(r.stderr, "\n%s\n", header)

	for i := range report.Steps {
		res := &report.Steps[i]
		line := fmt.Sprintf("  %s %s", r.icon(res.Status), res.Name)
		if res.Branch != "" {
			line += fmt.Sprintf(" (%s)", res.Branch)
		}
		if res.Status != domain.StepSkipped {
			line += " " + r.output.String(formatDuration(res.Duration)).Faint().String()
		}
		_, _ = fmt.Fprintln(r.stderr, line)
	}

	counts := fmt.Sprintf("%d passed, %d tolerated, %d failed, %d skipped",
		report.Count(domain.StepPassed), report.Count(domain.StepTolerated),
		report.Count(domain.StepFailed), report.Count(domain.StepSkipped))

	if report.Status == domain.RunSucceeded {
		verdict := r.styles.NewStyle().Foreground(style.Green).Render("Run succeeded")
		_, _ = fmt.Fprintf(r.stderr, "\n%s in %s (%s)\n", verdict, formatDuration(report.Duration()), counts)
		return
	}

	verdict := r.styles.NewStyle().Foreground(style.Red).Render("Run failed")
	if report.FailedStep != "" {
		verdict += " at " + report.FailedStep
	}
	_, _ = fmt.Fprintf(r.stderr, "\n%s after %s (%s)\n", verdict, formatDuration(report.Duration()), counts)
}

func (r *Renderer) prefix(name string) string {
	return r.output.String("[" + name + "]").Faint().String()
}

func (r *Renderer) icon(status domain.StepStatus) string {
	switch status {
	case domain.StepPassed:
		return r.output.String(style.Check).Foreground(termenv.ANSIGreen).String()
	case domain.StepFailed:
		return r.output.String(style.Cross).Foreground(termenv.ANSIRed).String()
	case domain.StepTolerated:
		return r.output.String(style.Warning).Foreground(termenv.ANSIYellow).String()
	default:
		return r.output.String(style.Skip).Faint().String()
	}
}

// flushPartialLocked must be called with r.mu held.
func (r *Renderer) flushPartialLocked(st *stepState) {
	if st.partial.Len() == 0 {
		return
	}
	r.printLineLocked(st.name, st.partial.Bytes())
	st.partial.Reset()
}

// printLineLocked must be called with r.mu held.
func (r *Renderer) printLineLocked(name string, line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return
	}
	_, _ = fmt.Fprintf(r.stdout, "[%s] %s\n", name, line)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
