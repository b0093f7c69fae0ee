package operations

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"robokin/internal/infrastructure"
)

// TracerName is the instrumentation scope of operation spans
const TracerName = "robokin.operations"

// OperationTracer records spans and metrics for operations and their steps.
// A nil *OperationTracer is valid and records nothing.
type OperationTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
}

// NewOperationTracer creates a tracer over the global tracer provider.
// metrics may be nil.
func NewOperationTracer(metrics *infrastructure.PipelineMetrics) *OperationTracer {
	return &OperationTracer{
		tracer:  otel.Tracer(TracerName),
		metrics: metrics,
	}
}

// TraceOperation starts the span of a whole operation
func (t *OperationTracer) TraceOperation(ctx context.Context, operationID string, req OperationRequest) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	ctx, span := t.tracer.Start(ctx, "operation.execute",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("operation.input", req.InputPath),
		),
	)
	t.metrics.RecordActive(ctx, 1)
	return ctx, span
}

// TraceStage starts the span of one step
func (t *OperationTracer) TraceStage(ctx context.Context, operationID, stageID string) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "operation.step."+stageID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("operation.id", operationID),
			attribute.String("step.id", stageID),
		),
	)
}

// RecordStage ends a step span and records its duration
func (t *OperationTracer) RecordStage(ctx context.Context, span trace.Span, stageID string, duration time.Duration, err error) {
	if t == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	t.metrics.RecordStage(ctx, stageID, duration, err == nil)
}

// RecordOperation ends the operation span and records its outcome
func (t *OperationTracer) RecordOperation(ctx context.Context, span trace.Span, resp *OperationResponse, err error) {
	if t == nil {
		return
	}
	span.SetAttributes(
		attribute.String("operation.status", string(resp.Status)),
		attribute.Bool("operation.no_data", resp.NoData),
		attribute.Int("operation.runs", len(resp.Stats)),
		attribute.Int("operation.dropped", resp.Drops.Total()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	t.metrics.RecordActive(ctx, -1)
	t.metrics.RecordOperation(ctx, err == nil, len(resp.Stats))
	t.metrics.RecordDrops(ctx, resp.Drops)
}
