package linear_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/sebdah/goldie/v2"
	"go.trai.ch/petal/internal/adapters/linear"
	"go.trai.ch/petal/internal/core/domain"
	"go.trai.ch/zerr"
)

func newRenderer() (*linear.Renderer, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	return linear.NewRenderer(&stdout, &stderr, termenv.Ascii), &stdout, &stderr
}

func TestRenderer_StepLifecycle(t *testing.T) {
	r, stdout, stderr := newRenderer()

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	r.OnPlanEmit([]string{"Checkout", "Test"})
	if !strings.Contains(stderr.String(), "Running 2 step(s): Checkout, Test") {
		t.Errorf("Expected plan message in stderr, got: %s", stderr.String())
	}

	start := time.Now()
	r.OnStepStart("span1", "Test", start)
	if !strings.Contains(stderr.String(), "[Test] Starting...") {
		t.Errorf("Expected step start message, got: %s", stderr.String())
	}

	r.OnStepLog("span1", []byte("collected 3 items\n"))
	r.OnStepLog("span1", []byte("3 passed\n"))

	want := "[Test] collected 3 items\n[Test] 3 passed\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}

	r.OnStepComplete("span1", start.Add(1500*time.Millisecond), domain.StepPassed, nil)
	if !strings.Contains(stderr.String(), "[Test] ✓ Completed in 1.5s") {
		t.Errorf("Expected completion message, got: %s", stderr.String())
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := r.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestRenderer_PartialLines(t *testing.T) {
	r, stdout, _ := newRenderer()

	start := time.Now()
	r.OnStepStart("span1", "Install", start)

	r.OnStepLog("span1", []byte("Obtaining"))
	if strings.Contains(stdout.String(), "Obtaining") {
		t.Errorf("Partial line should not be printed immediately")
	}

	r.OnStepLog("span1", []byte(" file:///src\r\nDone"))
	if !strings.Contains(stdout.String(), "[Install] Obtaining file:///src\n") {
		t.Errorf("Expected complete line with carriage return trimmed, got: %q", stdout.String())
	}

	r.OnStepComplete("span1", start.Add(time.Millisecond), domain.StepPassed, nil)
	if !strings.Contains(stdout.String(), "[Install] Done\n") {
		t.Errorf("Expected partial line flushed on completion, got: %q", stdout.String())
	}
}

func TestRenderer_StepFailed(t *testing.T) {
	r, _, stderr := newRenderer()

	start := time.Now()
	r.OnStepStart("span1", "Lint (strict)", start)
	r.OnStepComplete("span1", start.Add(50*time.Millisecond), domain.StepFailed, zerr.New("command failed"))

	if !strings.Contains(stderr.String(), "[Lint (strict)] ✗ Failed after 50ms: command failed") {
		t.Errorf("Expected failure message, got: %s", stderr.String())
	}
}

func TestRenderer_StepTolerated(t *testing.T) {
	r, _, stderr := newRenderer()

	start := time.Now()
	r.OnStepStart("span1", "Restore cache", start)
	r.OnStepComplete("span1", start, domain.StepTolerated, zerr.New("archive truncated"))

	if !strings.Contains(stderr.String(), "! Failed after 0s (tolerated): archive truncated") {
		t.Errorf("Expected tolerated message, got: %s", stderr.String())
	}
}

func TestRenderer_UnknownSpanIgnored(t *testing.T) {
	r, stdout, stderr := newRenderer()

	r.OnStepLog("missing", []byte("line\n"))
	r.OnStepComplete("missing", time.Now(), domain.StepPassed, nil)

	if stdout.Len() != 0 || stderr.Len() != 0 {
		t.Errorf("Expected no output for unknown span, got stdout=%q stderr=%q", stdout.String(), stderr.String())
	}
}

func TestRenderer_StopFlushesPendingOutput(t *testing.T) {
	r, stdout, _ := newRenderer()

	r.OnStepStart("span1", "Test", time.Now())
	r.OnStepLog("span1", []byte("interrupted"))
	_ = r.Stop()

	if !strings.Contains(stdout.String(), "[Test] interrupted") {
		t.Errorf("Expected pending output on stop, got: %q", stdout.String())
	}
}

func TestRenderer_RunSummary(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := &domain.RunReport{
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Minute),
		Status:     domain.RunFailed,
		FailedStep: "Test",
		Steps: []domain.StepResult{
			{Name: "Checkout", Status: domain.StepPassed, Duration: time.Second},
			{Name: "Restore cache", Status: domain.StepTolerated},
			{Name: "Materialize environment", Status: domain.StepPassed, Branch: domain.BranchAbsent},
			{Name: "Test", Status: domain.StepFailed},
			{Name: "Upload", Status: domain.StepSkipped},
		},
	}

	r, _, stderr := newRenderer()
	r.OnRunComplete(report)

	g := goldie.New(t)
	g.Assert(t, "summary_failed", stderr.Bytes())
}

func TestRenderer_RunSummarySucceeded(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := &domain.RunReport{
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Status:     domain.RunSucceeded,
		Steps:      []domain.StepResult{{Name: "Test", Status: domain.StepPassed}},
	}

	r, _, stderr := newRenderer()
	r.OnRunComplete(report)

	g := goldie.New(t)
	g.Assert(t, "summary_succeeded", stderr.Bytes())
}
