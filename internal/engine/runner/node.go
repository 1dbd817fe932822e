package runner

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/petal/internal/adapters/cache"     //nolint:depguard // Wired in node
	"go.trai.ch/petal/internal/adapters/conda"     //nolint:depguard // Wired in node
	"go.trai.ch/petal/internal/adapters/fs"        //nolint:depguard // Wired in node
	"go.trai.ch/petal/internal/adapters/git"       //nolint:depguard // Wired in node
	"go.trai.ch/petal/internal/adapters/logger"    //nolint:depguard // Wired in node
	"go.trai.ch/petal/internal/adapters/shell"     //nolint:depguard // Wired in node
	"go.trai.ch/petal/internal/adapters/telemetry" //nolint:depguard // Wired in node
	"go.trai.ch/petal/internal/core/ports"
)

// NodeID is the unique identifier for the runner Graft node.
const NodeID graft.ID = "engine.runner"

func init() {
	graft.Register(graft.Node[*Runner]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			shell.NodeID,
			git.NodeID,
			conda.NodeID,
			cache.NodeID,
			fs.HasherNodeID,
			fs.ProberNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Runner, error) {
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			scm, err := graft.Dep[ports.SourceControl](ctx)
			if err != nil {
				return nil, err
			}
			provisioner, err := graft.Dep[ports.Provisioner](ctx)
			if err != nil {
				return nil, err
			}
			store, err := graft.Dep[ports.CacheStore](ctx)
			if err != nil {
				return nil, err
			}
			hasher, err := graft.Dep[ports.Hasher](ctx)
			if err != nil {
				return nil, err
			}
			prober, err := graft.Dep[ports.PathProber](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			// The app swaps in a renderer-bound tracer per run.
			return NewRunner(executor, scm, provisioner, store, hasher, prober, telemetry.NewNoOpTracer(), log), nil
		},
	})
}
