package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/petal/internal/core/domain"
	"go.trai.ch/petal/internal/core/ports"
)

var _ sdktrace.SpanProcessor = (*Bridge)(nil)

// Bridge implements sdktrace.SpanProcessor to forward step spans to a Renderer.
// Spans without a step index are ignored.
type Bridge struct {
	renderer ports.Renderer
}

// NewBridge returns a new Bridge.
func NewBridge(renderer ports.Renderer) *Bridge {
	return &Bridge{renderer: renderer}
}

// OnStart is called when a span starts.
func (b *Bridge) OnStart(_ context.Context, s sdktrace.ReadWriteSpan) {
	if b.renderer == nil || !isStep(s.Attributes()) {
		return
	}

	sc := s.SpanContext()
	if !sc.IsValid() {
		return
	}

	b.renderer.OnStepStart(sc.SpanID().String(), s.Name(), s.StartTime())
}

// OnEnd is called when a span ends.
func (b *Bridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if b.renderer == nil || !isStep(s.Attributes()) {
		return
	}

	sc := s.SpanContext()
	if !sc.IsValid() {
		return
	}

	status := domain.StepPassed
	var err error
	if s.Status().Code == codes.Error {
		desc := s.Status().Description
		if desc == "" {
			desc = domain.ErrStepFailed.Error()
		}
		err = errors.New(desc)

		status = domain.StepFailed
		if tolerated(s.Attributes()) {
			status = domain.StepTolerated
		}
	}

	b.renderer.OnStepComplete(sc.SpanID().String(), s.EndTime(), status, err)
}

// ForceFlush does nothing.
func (b *Bridge) ForceFlush(_ context.Context) error {
	return nil
}

// Shutdown does nothing.
func (b *Bridge) Shutdown(_ context.Context) error {
	return nil
}

func isStep(attrs []attribute.KeyValue) bool {
	for _, kv := range attrs {
		if string(kv.Key) == ports.AttrStepIndex {
			return true
		}
	}
	return false
}

func tolerated(attrs []attribute.KeyValue) bool {
	for _, kv := range attrs {
		if string(kv.Key) == ports.AttrTolerated {
			return kv.Value.AsBool()
		}
	}
	return false
}
