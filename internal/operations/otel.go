package operations

import (
	"context"
	"fmt"
	"time"

	"retailcli/internal/infrastructure"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "retailcli.pipeline"
)

// traceSpan keeps the manager free of a direct otel import
type traceSpan = trace.Span

// PipelineTracer provides OpenTelemetry instrumentation for pipeline runs
type PipelineTracer struct {
	tracer          trace.Tracer
	meter           metric.Meter
	businessMetrics *infrastructure.BusinessMetrics
}

// NewPipelineTracer creates a tracer wired to the given telemetry providers
func NewPipelineTracer(providers *infrastructure.OTelProviders) (*PipelineTracer, error) {
	businessMetrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	return &PipelineTracer{
		tracer:          otel.Tracer(TracerName),
		meter:           providers.Meter,
		businessMetrics: businessMetrics,
	}, nil
}

// Metrics exposes the business metrics so stages can record domain counts
func (pt *PipelineTracer) Metrics() *infrastructure.BusinessMetrics {
	return pt.businessMetrics
}

// TraceRunExecution creates a span for the entire pipeline run
func (pt *PipelineTracer) TraceRunExecution(ctx context.Context, runID string, req RunRequest) (context.Context, trace.Span) {
	ctx, span := pt.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.date", req.RunDate),
			attribute.String("run.stage", req.Stage),
		),
	)

	infrastructure.RecordActiveRunChange(ctx, pt.businessMetrics, 1)

	return ctx, span
}

// TraceStageExecution creates a span for one stage attempt
func (pt *PipelineTracer) TraceStageExecution(ctx context.Context, runID, stageID string, attempt int) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("pipeline.stage.%s", stageID)
	ctx, span := pt.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("stage.id", stageID),
			attribute.Int("stage.attempt", attempt),
		),
	)

	return ctx, span
}

// RecordRunCompletion records run completion metrics and closes the span
func (pt *PipelineTracer) RecordRunCompletion(ctx context.Context, span trace.Span, runID string, duration time.Duration, success bool, runErr error) {
	status := "success"
	if !success {
		status = "failure"
	}

	infrastructure.RecordRunMetrics(ctx, pt.businessMetrics, runID, duration, success, runErr)
	infrastructure.RecordActiveRunChange(ctx, pt.businessMetrics, -1)

	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.String("run.status", status),
		attribute.Float64("run.duration_seconds", duration.Seconds()),
	)

	infrastructure.AddSpanEvent(ctx, "run.completed", map[string]interface{}{
		"run_id":   runID,
		"status":   status,
		"duration": duration.Seconds(),
	})

	if success {
		span.SetStatus(codes.Ok, "run completed")
	} else {
		span.SetStatus(codes.Error, "run failed")
	}
	span.End()
}

// RecordStageCompletion records one stage attempt's metrics and closes the span
func (pt *PipelineTracer) RecordStageCompletion(ctx context.Context, span trace.Span, runID, stageID string, duration time.Duration, success bool) {
	infrastructure.RecordStageMetrics(ctx, pt.businessMetrics, runID, stageID, duration, success)

	if span == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	span.SetAttributes(
		attribute.String("stage.status", status),
		attribute.Float64("stage.duration_seconds", duration.Seconds()),
	)

	if success {
		span.SetStatus(codes.Ok, "stage completed")
	} else {
		span.SetStatus(codes.Error, "stage execution failed")
	}
	span.End()
}

// RecordRunError records a run-level error against the current span
func (pt *PipelineTracer) RecordRunError(ctx context.Context, runID string, err error) {
	infrastructure.RecordError(ctx, err,
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("error.type", "run_execution_error"),
		),
	)
}
