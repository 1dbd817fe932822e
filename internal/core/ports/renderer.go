package ports

import (
	"context"
	"time"

	"go.trai.ch/petal/internal/core/domain"
)

// Renderer is the abstraction for output rendering.
// It decouples telemetry collection from presentation logic.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer and begins its lifecycle.
	Start(ctx context.Context) error

	// Stop signals the renderer to stop accepting new events and flush buffered output.
	Stop() error

	// Wait blocks until the renderer has fully terminated.
	// For synchronous renderers, this may return immediately.
	Wait() error

	// OnPlanEmit is called once the ordered list of steps is known.
	OnPlanEmit(steps []string)

	// OnStepStart is called when a step begins execution.
	// spanID: unique identifier for this step execution
	// name: human-readable step name
	OnStepStart(spanID, name string, startTime time.Time)

	// OnStepLog is called when a step emits output.
	// data may contain partial lines or ANSI sequences.
	OnStepLog(spanID string, data []byte)

	// OnStepComplete is called when a step finishes.
	// err is nil for passed steps and carries the cause for failed or tolerated ones.
	OnStepComplete(spanID string, endTime time.Time, status domain.StepStatus, err error)

	// OnRunComplete is called with the final report after every step finished or was skipped.
	OnRunComplete(report *domain.RunReport)
}
