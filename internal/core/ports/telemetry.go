package ports

import (
	"context"
	"io"
)

//go:generate mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Tracer is the entry point for creating spans.
type Tracer interface {
	// Start creates a new span.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	// EmitPlan signals the ordered list of steps a run will execute.
	EmitPlan(ctx context.Context, stepNames []string)
}

// Span represents a unit of work.
type Span interface {
	io.Writer
	// End completes the span.
	End()
	// RecordError records an error for the span.
	RecordError(err error)
	// SetAttribute adds a key-value pair to the span.
	SetAttribute(key string, value any)
}

// SpanConfig holds configuration for a starting span.
type SpanConfig struct {
	// Index is the position of the step in the pipeline.
	Index int
}

// SpanOption is a functional option for configuring a span.
type SpanOption func(*SpanConfig)

// WithIndex records the step position on the span.
func WithIndex(i int) SpanOption {
	return func(c *SpanConfig) { c.Index = i }
}

// AttrStepIndex carries the pipeline position of a step span.
const AttrStepIndex = "petal.step.index"

// AttrTolerated marks a span whose error does not fail the run.
const AttrTolerated = "petal.tolerated"
