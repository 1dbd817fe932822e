// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"

	"go.trai.ch/petal/internal/core/domain"
)

// Executor defines the interface for running shell invocations.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs the invocation with the specified environment.
	//
	// The env parameter contains environment variables in "KEY=VALUE" format and
	// is layered over the inherited process environment.
	//
	// It returns an error if the command cannot start or exits non-zero.
	Execute(ctx context.Context, inv *domain.Invocation, env []string, stdout, stderr io.Writer) error
}
