package ports

import (
	"context"
	"io"

	"go.trai.ch/petal/internal/core/domain"
)

// SourceControl checks out the code a pipeline runs against.
//
//go:generate mockgen -source=source.go -destination=mocks/mock_source.go -package=mocks
type SourceControl interface {
	// Checkout materializes req.Ref in req.Workspace and reports the resolved revision.
	Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.Revision, error)

	// CurrentBranch returns the branch checked out in dir. A detached HEAD
	// yields the branch the CI environment reports, or "" when it reports none.
	CurrentBranch(ctx context.Context, dir string) (string, error)
}

// Provisioner installs or reuses a conda base installation.
type Provisioner interface {
	// Provision ensures a base installation matching req exists.
	// Installer output is streamed to stdout and stderr.
	Provision(ctx context.Context, req domain.CondaRequest, stdout, stderr io.Writer) (domain.CondaInstallation, error)
}
