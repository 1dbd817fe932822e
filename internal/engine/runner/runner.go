// Package runner executes pipeline steps in order and records the outcome.
package runner

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.trai.ch/petal/internal/core/domain"
	"go.trai.ch/petal/internal/core/ports"
	"go.trai.ch/zerr"
)

// Options describe one run of a pipeline.
type Options struct {
	// Workspace is the directory steps run in. Relative paths resolve against it.
	Workspace string
	// Event is the trigger the run reacts to.
	Event domain.Event
	// NoCache skips both cache restore and cache save.
	NoCache bool
	// OS and Arch are GOOS and GOARCH values; empty means the host.
	OS   string
	Arch string
	// RunID identifies the report; empty generates a UUID.
	RunID string
	// HomeDir expands "~" in cache and branch paths.
	HomeDir string
}

// Runner executes pipelines one step at a time.
type Runner struct {
	executor    ports.Executor
	scm         ports.SourceControl
	provisioner ports.Provisioner
	cache       ports.CacheStore
	hasher      ports.Hasher
	prober      ports.PathProber
	tracer      ports.Tracer
	logger      ports.Logger
	clock       clockwork.Clock
}

// NewRunner creates a new Runner with the given dependencies.
func NewRunner(
	executor ports.Executor,
	scm ports.SourceControl,
	provisioner ports.Provisioner,
	cache ports.CacheStore,
	hasher ports.Hasher,
	prober ports.PathProber,
	tracer ports.Tracer,
	logger ports.Logger,
) *Runner {
	return &Runner{
		executor:    executor,
		scm:         scm,
		provisioner: provisioner,
		cache:       cache,
		hasher:      hasher,
		prober:      prober,
		tracer:      tracer,
		logger:      logger,
		clock:       clockwork.NewRealClock(),
	}
}

// WithClock sets the clock used for report timestamps and durations.
func (r *Runner) WithClock(c clockwork.Clock) *Runner {
	r.clock = c
	return r
}

// WithTracer replaces the tracer, typically with one bound to a renderer.
func (r *Runner) WithTracer(t ports.Tracer) *Runner {
	r.tracer = t
	return r
}

// WithCache replaces the cache store, e.g. when --cache-dir points elsewhere.
func (r *Runner) WithCache(c ports.CacheStore) *Runner {
	r.cache = c
	return r
}

// Run executes every step of p in order. The first fatal failure ends the run
// and the remaining steps are reported as skipped. The report is returned even
// when the run fails; the error describes the failing step.
func (r *Runner) Run(ctx context.Context, p *domain.Pipeline, opts Options) (*domain.RunReport, error) {
	opts = r.normalize(opts)

	report := &domain.RunReport{
		ID:        opts.RunID,
		Pipeline:  p.Name,
		Event:     opts.Event,
		Workspace: opts.Workspace,
		StartedAt: r.clock.Now(),
		Steps:     make([]domain.StepResult, 0, len(p.Steps)),
	}

	ctx, span := r.tracer.Start(ctx, p.Name)
	defer span.End()
	r.tracer.EmitPlan(ctx, p.StepNames())

	state := newRunState(r, p, opts, report)

	var runErr error
	for i := range p.Steps {
		step := &p.Steps[i]
		name := step.DisplayName(i)

		if runErr != nil {
			report.Steps = append(report.Steps, domain.StepResult{
				Index: i, ID: step.ID, Name: name, Status: domain.StepSkipped,
			})
			continue
		}

		if err := ctx.Err(); err != nil {
			runErr = zerr.Wrap(err, "run interrupted")
			report.Steps = append(report.Steps, domain.StepResult{
				Index: i, ID: step.ID, Name: name, Status: domain.StepSkipped,
			})
			continue
		}

		res, err := state.execute(ctx, i, step)
		report.Steps = append(report.Steps, res)
		if err != nil && res.Status == domain.StepFailed {
			report.FailedStep = name
			runErr = zerr.With(zerr.Wrap(err, domain.ErrStepFailed.Error()), "step", name)
		}
	}

	if runErr == nil {
		report.Status = domain.RunSucceeded
		state.saveCaches(ctx)
	} else {
		report.Status = domain.RunFailed
		span.RecordError(runErr)
	}

	report.FinishedAt = r.clock.Now()
	return report, runErr
}

// CacheKey is a cache step's resolved key material.
type CacheKey struct {
	Step string
	Spec domain.CacheSpec
}

// CacheKeys resolves the cache specs of every cache step without running anything.
// Expressions reading step outputs resolve to empty strings.
func (r *Runner) CacheKeys(p *domain.Pipeline, opts Options) ([]CacheKey, error) {
	opts = r.normalize(opts)
	state := newRunState(r, p, opts, &domain.RunReport{})
	for i := range p.Steps {
		if p.Steps[i].ID != "" {
			state.outputs[p.Steps[i].ID] = map[string]string{}
		}
	}

	var keys []CacheKey
	for i := range p.Steps {
		step := &p.Steps[i]
		if step.Uses != domain.ActionCache {
			continue
		}
		spec, err := state.cacheSpec(step)
		if err != nil {
			return nil, zerr.With(err, "step", step.DisplayName(i))
		}
		keys = append(keys, CacheKey{Step: step.DisplayName(i), Spec: spec})
	}
	return keys, nil
}

func (r *Runner) normalize(opts Options) Options {
	if opts.OS == "" {
		opts.OS = runtime.GOOS
	}
	if opts.Arch == "" {
		opts.Arch = runtime.GOARCH
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if abs, err := filepath.Abs(opts.Workspace); err == nil {
		opts.Workspace = abs
	}
	return opts
}

// exitCode extracts the process exit status carried by err, if any.
func exitCode(err error) int {
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 0
}

// envMap parses "KEY=VALUE" entries.
func envMap(entries []string) map[string]string {
	m := make(map[string]string, len(entries))
	for _, e := range entries {
		if k, v, ok := strings.Cut(e, "="); ok {
			m[k] = v
		}
	}
	return m
}
