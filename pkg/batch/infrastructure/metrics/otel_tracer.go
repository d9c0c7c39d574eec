package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
)

const instrumentationName = "github.com/tigerroll/bulkop"

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer on tp.
func NewOpenTelemetryTracer(tp trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: tp.Tracer(instrumentationName)}
}

// StartJobSpan starts a span named after the job type.
func (t *OpenTelemetryTracer) StartJobSpan(ctx context.Context, job *model.Job) (context.Context, func(err error)) {
	attrs := []attribute.KeyValue{
		attribute.String("bulkop.job.id", job.ID),
		attribute.String("bulkop.job.type", job.Type.String()),
		attribute.String("bulkop.batch.id", job.BatchID),
		attribute.Int("bulkop.job.retries", job.Retries),
	}
	if job.ExclusivityKey != "" {
		attrs = append(attrs, attribute.String("bulkop.job.exclusivity_key", job.ExclusivityKey))
	}
	ctx, span := t.tracer.Start(ctx, "bulkop."+job.Type.String(), trace.WithAttributes(attrs...))
	return ctx, endSpan(span)
}

// StartBatchSpan starts a span for a batch level operation.
func (t *OpenTelemetryTracer) StartBatchSpan(ctx context.Context, operation string, batchID string) (context.Context, func(err error)) {
	opts := []trace.SpanStartOption{trace.WithAttributes(attribute.String("bulkop.operation", operation))}
	if batchID != "" {
		opts = append(opts, trace.WithAttributes(attribute.String("bulkop.batch.id", batchID)))
	}
	ctx, span := t.tracer.Start(ctx, "bulkop.batch."+operation, opts...)
	return ctx, endSpan(span)
}

// RecordEvent adds an event to the span carried by ctx.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, toAttribute(k, v))
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span) func(err error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

func toAttribute(key string, v interface{}) attribute.KeyValue {
	switch val := v.(type) {
	case string:
		return attribute.String(key, val)
	case int:
		return attribute.Int(key, val)
	case int64:
		return attribute.Int64(key, val)
	case bool:
		return attribute.Bool(key, val)
	case float64:
		return attribute.Float64(key, val)
	default:
		return attribute.String(key, fmt.Sprint(val))
	}
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
