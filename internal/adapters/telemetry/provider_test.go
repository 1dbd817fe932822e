package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.trai.ch/petal/internal/adapters/telemetry"
	"go.trai.ch/petal/internal/core/domain"
	"go.trai.ch/petal/internal/core/ports"
	"go.trai.ch/petal/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestOTelTracer_StreamsStepOutput(t *testing.T) {
	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)

	tp := telemetry.NewProvider(renderer)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tracer := telemetry.NewOTelTracer(tp.Tracer(telemetry.InstrumentationName)).WithRenderer(renderer)

	var logged []byte
	gomock.InOrder(
		renderer.EXPECT().OnPlanEmit([]string{"Lint"}),
		renderer.EXPECT().OnStepStart(gomock.Any(), "Lint", gomock.Any()),
		renderer.EXPECT().OnStepLog(gomock.Any(), gomock.Any()).Do(func(_ string, data []byte) {
			logged = append(logged, data...)
		}).MinTimes(1),
		renderer.EXPECT().OnStepComplete(gomock.Any(), gomock.Any(), domain.StepFailed, gomock.Any()),
	)

	ctx := context.Background()
	tracer.EmitPlan(ctx, []string{"Lint"})

	_, span := tracer.Start(ctx, "Lint", ports.WithIndex(0))
	n, err := span.Write([]byte("./setup.py:1:1: F821 undefined name\n"))
	require.NoError(t, err)
	assert.Equal(t, 36, n)
	span.RecordError(errors.New("command failed"))
	span.End()

	assert.Equal(t, "./setup.py:1:1: F821 undefined name\n", string(logged))
}

func TestOTelTracer_ToleratedAttribute(t *testing.T) {
	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)
	renderer.EXPECT().OnStepStart(gomock.Any(), gomock.Any(), gomock.Any())
	renderer.EXPECT().OnStepComplete(gomock.Any(), gomock.Any(), domain.StepTolerated, gomock.Any())

	tp := telemetry.NewProvider(renderer)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tracer := telemetry.NewOTelTracer(tp.Tracer("test"))

	_, span := tracer.Start(context.Background(), "Restore cache", ports.WithIndex(3))
	span.SetAttribute(ports.AttrTolerated, true)
	span.RecordError(errors.New("archive truncated"))
	span.End()
}

func TestOTelTracer_RecordsEventsWithoutRenderer(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tracer := telemetry.NewOTelTracer(tp.Tracer("test"))

	ctx, root := tracer.Start(context.Background(), "run")
	tracer.EmitPlan(ctx, []string{"Checkout", "Test"})

	_, span := tracer.Start(ctx, "Test", ports.WithIndex(1))
	_, err := span.Write([]byte("collected 3 items"))
	require.NoError(t, err)
	span.SetAttribute("string", "v")
	span.SetAttribute("int", 1)
	span.SetAttribute("int64", int64(2))
	span.SetAttribute("float64", 1.5)
	span.SetAttribute("slice", []string{"a"})
	span.SetAttribute("other", struct{}{})
	span.End()
	root.End()

	ended := sr.Ended()
	require.Len(t, ended, 2)

	step := ended[0]
	assert.Equal(t, "Test", step.Name())
	require.Len(t, step.Events(), 1)
	assert.Equal(t, "log", step.Events()[0].Name)

	run := ended[1]
	require.Len(t, run.Events(), 1)
	assert.Equal(t, "plan_emitted", run.Events()[0].Name)
}

func TestNoOpTracer(t *testing.T) {
	tracer := telemetry.NewNoOpTracer()
	ctx := context.Background()

	tracer.EmitPlan(ctx, []string{"a"})
	newCtx, span := tracer.Start(ctx, "a", ports.WithIndex(0))
	assert.Equal(t, ctx, newCtx)

	n, err := span.Write([]byte("data"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	span.SetAttribute("k", "v")
	span.RecordError(errors.New("boom"))
	span.End()
}
