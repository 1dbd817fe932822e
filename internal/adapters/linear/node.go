package linear

import (
	"context"
	"io"

	"github.com/grindlemire/graft"
	"go.trai.ch/petal/internal/core/ports"
	"go.trai.ch/petal/internal/ui/output"
)

// NodeID is the unique identifier for the renderer factory Graft node.
const NodeID graft.ID = "adapter.renderer"

// Factory builds renderers once the output streams and color choice are known.
type Factory struct{}

// NewFactory creates a new Factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Renderer returns a linear renderer writing to stdout and stderr.
func (f *Factory) Renderer(stdout, stderr io.Writer, color bool) ports.Renderer {
	return NewRenderer(stdout, stderr, output.ProfileFor(color))
}

func init() {
	graft.Register(graft.Node[*Factory]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Factory, error) {
			return NewFactory(), nil
		},
	})
}
