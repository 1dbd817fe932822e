package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/petal/internal/adapters/cache"   //nolint:depguard // Wired in app layer
	"go.trai.ch/petal/internal/adapters/cas"     //nolint:depguard // Wired in app layer
	"go.trai.ch/petal/internal/adapters/config"  //nolint:depguard // Wired in app layer
	"go.trai.ch/petal/internal/adapters/git"     //nolint:depguard // Wired in app layer
	"go.trai.ch/petal/internal/adapters/linear"  //nolint:depguard // Wired in app layer
	"go.trai.ch/petal/internal/adapters/logger"  //nolint:depguard // Wired in app layer
	"go.trai.ch/petal/internal/adapters/watcher" //nolint:depguard // Wired in app layer
	"go.trai.ch/petal/internal/core/ports"
	"go.trai.ch/petal/internal/engine/runner"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			runner.NodeID,
			git.NodeID,
			cache.NodeID,
			cas.NodeID,
			linear.NodeID,
			watcher.NodeID,
			logger.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			app, err := graft.Dep[*App](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewComponents(app, log), nil
		},
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[*config.Loader](ctx)
	if err != nil {
		return nil, err
	}

	r, err := graft.Dep[*runner.Runner](ctx)
	if err != nil {
		return nil, err
	}

	scm, err := graft.Dep[ports.SourceControl](ctx)
	if err != nil {
		return nil, err
	}

	store, err := graft.Dep[ports.CacheStore](ctx)
	if err != nil {
		return nil, err
	}

	runs, err := graft.Dep[ports.RunStore](ctx)
	if err != nil {
		return nil, err
	}

	renderers, err := graft.Dep[*linear.Factory](ctx)
	if err != nil {
		return nil, err
	}

	watchers, err := graft.Dep[watcher.Factory](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, r, scm, store, runs, renderers, watchers, log), nil
}
