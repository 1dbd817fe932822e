package app

import (
	"context"
	"errors"
	"fmt"

	"go.trai.ch/petal/internal/adapters/watcher" //nolint:depguard // Wired in app layer
	"go.trai.ch/petal/internal/core/domain"
)

// Watch runs the pipeline, then runs it again after every burst of workspace
// changes until ctx is canceled. Failed runs do not stop watching.
func (a *App) Watch(ctx context.Context, opts RunOptions) error {
	workspace, err := resolveWorkspace(opts.Workspace)
	if err != nil {
		return err
	}
	opts.Workspace = workspace

	w, err := a.watchers()
	if err != nil {
		return err
	}
	if err := w.Start(ctx, workspace); err != nil {
		_ = w.Stop()
		return err
	}

	changes := make(chan []string, 1)
	debouncer := watcher.NewDebouncer(a.window, func(paths []string) {
		select {
		case changes <- paths:
		default:
			// A re-run is already queued.
		}
	})

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for event := range w.Events() {
			debouncer.Add(event.Path)
		}
	}()
	defer func() {
		_ = w.Stop()
		<-forwarded
		debouncer.Stop()
	}()

	a.logger.Info("watching " + workspace + " for changes")
	a.watchRun(ctx, opts)

	for {
		select {
		case <-ctx.Done():
			return nil
		case paths := <-changes:
			a.logger.Info(fmt.Sprintf("%d file(s) changed, running again", len(paths)))
			a.watchRun(ctx, opts)
		}
	}
}

func (a *App) watchRun(ctx context.Context, opts RunOptions) {
	err := a.Run(ctx, opts)
	if err == nil || ctx.Err() != nil {
		return
	}
	// The renderer already reported the failing step.
	if errors.Is(err, domain.ErrRunFailed) {
		return
	}
	a.logger.Error(err)
}
