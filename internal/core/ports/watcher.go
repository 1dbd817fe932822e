package ports

import (
	"context"
	"iter"
)

// WatchOp is the kind of change seen under a watched workspace.
type WatchOp uint8

const (
	OpCreate WatchOp = iota
	OpWrite
	OpRemove
	OpRename
)

// String returns the lowercase name of the operation.
func (o WatchOp) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// WatchEvent is a single change to a workspace file that may warrant a re-run.
type WatchEvent struct {
	Path      string
	Operation WatchOp
}

// Watcher reports changes below a workspace so watch mode can re-run the pipeline.
type Watcher interface {
	// Start watches root and every directory below it that is not ignored.
	Start(ctx context.Context, root string) error
	// Stop releases the watcher. Events ends once it returns.
	Stop() error
	// Events yields changes in arrival order.
	Events() iter.Seq[WatchEvent]
}
