// Package app implements the application layer for petal.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/petal/internal/adapters/cache"     //nolint:depguard // Wired in app layer
	"go.trai.ch/petal/internal/adapters/detector"  //nolint:depguard // Wired in app layer
	"go.trai.ch/petal/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/petal/internal/adapters/watcher"   //nolint:depguard // Wired in app layer
	"go.trai.ch/petal/internal/core/domain"
	"go.trai.ch/petal/internal/core/ports"
	"go.trai.ch/petal/internal/engine/runner"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// RendererFactory builds a renderer once the output streams are known.
type RendererFactory interface {
	Renderer(stdout, stderr io.Writer, color bool) ports.Renderer
}

// App represents the main application logic.
type App struct {
	loader    ports.ConfigLoader
	runner    *runner.Runner
	scm       ports.SourceControl
	cache     ports.CacheStore
	runs      ports.RunStore
	renderers RendererFactory
	watchers  watcher.Factory
	logger    ports.Logger

	stdout io.Writer
	stderr io.Writer
	window time.Duration
	color  bool
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	r *runner.Runner,
	scm ports.SourceControl,
	cacheStore ports.CacheStore,
	runs ports.RunStore,
	renderers RendererFactory,
	watchers watcher.Factory,
	log ports.Logger,
) *App {
	return &App{
		loader:    loader,
		runner:    r,
		scm:       scm,
		cache:     cacheStore,
		runs:      runs,
		renderers: renderers,
		watchers:  watchers,
		logger:    log,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		window:    watcher.DefaultDebounceWindow,
	}
}

// WithOutput redirects renderer and report output.
// This is primarily used for testing.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	return a
}

// Configure applies the global output flags.
// logFormat is "pretty" or "json"; color is "auto", "always" or "never".
func (a *App) Configure(logFormat, color string) error {
	switch logFormat {
	case "", "pretty", "json":
		if l, ok := a.logger.(interface{ SetJSON(enable bool) }); ok {
			l.SetJSON(logFormat == "json")
		}
	default:
		return zerr.With(zerr.New("invalid log format, expected 'pretty' or 'json'"), "value", logFormat)
	}

	mode, err := detector.ParseColorMode(color)
	if err != nil {
		return err
	}
	a.color = detector.UseColor(mode, os.Stderr)
	return nil
}

// WithDebounce sets the quiet period watch mode waits for before re-running.
func (a *App) WithDebounce(window time.Duration) *App {
	a.window = window
	return a
}

// Options select the pipeline and workspace a command operates on.
type Options struct {
	// Pipeline is the pipeline file; empty discovers petal.yaml or uses the built-in default.
	Pipeline string
	// Workspace is the project directory; empty means the current directory.
	Workspace string
	// CacheDir overrides the cache store location.
	CacheDir string
}

// RunOptions configuration for the Run method.
type RunOptions struct {
	Options
	// Event is "push" or "pull_request".
	Event string
	// Branch overrides branch detection.
	Branch  string
	NoCache bool
}

// Run executes the pipeline for the event. An event the pipeline does not
// trigger on is not an error and runs nothing.
//
//nolint:cyclop // orchestration function
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	// 1. Load the pipeline
	workspace, err := resolveWorkspace(opts.Workspace)
	if err != nil {
		return err
	}
	p, err := a.loader.Load(workspace, opts.Pipeline)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	// 2. Match the trigger
	event, err := a.event(ctx, workspace, opts)
	if err != nil {
		return err
	}
	if !p.On.Matches(event) {
		a.logger.Info(fmt.Sprintf("pipeline %q does not trigger on %s to %s, nothing to run",
			p.Name, event.Kind, event.Branch))
		return nil
	}

	// 3. Initialize renderer and telemetry
	renderer := a.renderers.Renderer(a.stdout, a.stderr, a.color)
	provider := telemetry.NewProvider(renderer)
	defer func() {
		_ = provider.Shutdown(context.WithoutCancel(ctx))
	}()
	tracer := telemetry.NewOTelTracer(provider.Tracer(telemetry.InstrumentationName)).WithRenderer(renderer)

	run := a.runner.WithTracer(tracer)
	if opts.CacheDir != "" {
		run = run.WithCache(cache.NewStore(opts.CacheDir))
	}

	home, _ := os.UserHomeDir()
	runOpts := runner.Options{
		Workspace: workspace,
		Event:     event,
		NoCache:   opts.NoCache,
		HomeDir:   home,
	}

	// 4. Run renderer and runner concurrently
	var (
		report *domain.RunReport
		runErr error
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := renderer.Start(gctx); err != nil {
			return err
		}
		return renderer.Wait()
	})

	g.Go(func() error {
		defer func() {
			_ = renderer.Stop()
		}()
		report, runErr = run.Run(ctx, p, runOpts)
		if report != nil {
			renderer.OnRunComplete(report)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	// 5. Record the run
	if report != nil {
		if err := a.runs.Save(workspace, report); err != nil {
			a.logger.Warn(fmt.Sprintf("failed to record run %s: %v", report.ID, err))
		}
	}

	if runErr != nil {
		return errors.Join(domain.ErrRunFailed, runErr)
	}
	return nil
}

func (a *App) event(ctx context.Context, workspace string, opts RunOptions) (domain.Event, error) {
	kind, err := domain.ParseEventKind(opts.Event)
	if err != nil {
		return domain.Event{}, err
	}

	branch := opts.Branch
	if branch == "" {
		branch, err = a.scm.CurrentBranch(ctx, workspace)
		if err != nil {
			return domain.Event{}, err
		}
		if branch == "" {
			a.logger.Warn("HEAD is detached and no CI branch variable is set, matching triggers against an empty branch")
		}
	}
	return domain.Event{Kind: kind, Branch: branch}, nil
}

// Key prints the cache keys the pipeline would use without running it.
func (a *App) Key(_ context.Context, opts Options) error {
	workspace, err := resolveWorkspace(opts.Workspace)
	if err != nil {
		return err
	}
	p, err := a.loader.Load(workspace, opts.Pipeline)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	home, _ := os.UserHomeDir()
	keys, err := a.runner.CacheKeys(p, runner.Options{Workspace: workspace, HomeDir: home})
	if err != nil {
		return err
	}

	if len(keys) == 0 {
		_, _ = fmt.Fprintln(a.stdout, "pipeline has no cache steps")
		return nil
	}
	for _, k := range keys {
		_, _ = fmt.Fprintf(a.stdout, "%s\n  key:          %s\n  restore-keys: %s\n  path:         %s\n",
			k.Step, k.Spec.Key, strings.Join(k.Spec.RestoreKeys, ", "), k.Spec.Path)
	}
	return nil
}

// Validate loads the pipeline and reports whether it is well formed.
func (a *App) Validate(_ context.Context, opts Options) error {
	workspace, err := resolveWorkspace(opts.Workspace)
	if err != nil {
		return err
	}
	p, err := a.loader.Load(workspace, opts.Pipeline)
	if err != nil {
		return err
	}

	source := p.Source
	if source == "" {
		source = "built-in pipeline"
	}
	a.logger.Info(fmt.Sprintf("%s: pipeline %q is valid (%d steps)", source, p.Name, len(p.Steps)))
	return nil
}

// Status prints the summary of the most recent run in the workspace.
func (a *App) Status(_ context.Context, opts Options) error {
	workspace, err := resolveWorkspace(opts.Workspace)
	if err != nil {
		return err
	}
	report, err := a.runs.Latest(workspace)
	if err != nil {
		return err
	}
	if report == nil {
		return zerr.With(domain.ErrNoRuns, "workspace", workspace)
	}

	_, _ = fmt.Fprintf(a.stdout, "Run %s of %q (%s on %s)\n", report.ID, report.Pipeline, report.Event.Kind, report.Event.Branch)
	if report.Revision.Commit != "" {
		_, _ = fmt.Fprintf(a.stdout, "Commit %s\n", report.Revision.Commit)
	}
	if !report.StartedAt.IsZero() {
		_, _ = fmt.Fprintf(a.stdout, "Started %s\n", report.StartedAt.Format("2006-01-02 15:04:05"))
	}
	a.renderers.Renderer(a.stdout, a.stderr, a.color).OnRunComplete(report)
	return nil
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	Options
	Cache bool
	Runs  bool
}

// Clean removes cache entries and recorded runs based on the provided options.
func (a *App) Clean(_ context.Context, options CleanOptions) error {
	var errs error

	if options.Cache {
		store := a.cache
		if options.CacheDir != "" {
			store = cache.NewStore(options.CacheDir)
		}
		a.logger.Info("removing cache entries...")
		if err := store.Purge(); err != nil {
			errs = errors.Join(errs, zerr.Wrap(err, "failed to remove cache entries"))
		} else {
			a.logger.Info("removed cache entries")
		}
	}

	if options.Runs {
		workspace, err := resolveWorkspace(options.Workspace)
		if err != nil {
			return errors.Join(errs, err)
		}
		a.logger.Info("removing recorded runs...")
		if err := a.runs.Purge(workspace); err != nil {
			errs = errors.Join(errs, zerr.Wrap(err, "failed to remove recorded runs"))
		} else {
			a.logger.Info("removed recorded runs")
		}
	}

	return errs
}

func resolveWorkspace(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", zerr.Wrap(err, domain.ErrFailedToGetRoot.Error())
	}
	return abs, nil
}
