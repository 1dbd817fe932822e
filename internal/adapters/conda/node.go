package conda

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/petal/internal/adapters/logger" //nolint:depguard // Wired in node
	"go.trai.ch/petal/internal/adapters/shell"  //nolint:depguard // Wired in node
	"go.trai.ch/petal/internal/core/ports"
)

// NodeID is the unique identifier for the conda provisioner Graft node.
const NodeID graft.ID = "adapter.conda_provisioner"

func init() {
	graft.Register(graft.Node[ports.Provisioner]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{shell.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (ports.Provisioner, error) {
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewProvisioner(executor, log), nil
		},
	})
}
