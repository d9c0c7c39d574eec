package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
)

// NoOpMetricRecorder discards every metric.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a recorder that does nothing.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

// RecordBatchCreated does nothing.
func (r *NoOpMetricRecorder) RecordBatchCreated(ctx context.Context, batch *model.Batch) {}
// RecordWorkUnitsSeeded does nothing.
func (r *NoOpMetricRecorder) RecordWorkUnitsSeeded(ctx context.Context, batch *model.Batch, count int) {
}
// RecordJobExecuted does nothing.
func (r *NoOpMetricRecorder) RecordJobExecuted(ctx context.Context, job *model.Job, duration time.Duration, err error) {
}
// RecordIncident does nothing.
func (r *NoOpMetricRecorder) RecordIncident(ctx context.Context, job *model.Job) {}
// RecordBatchFinished does nothing.
func (r *NoOpMetricRecorder) RecordBatchFinished(ctx context.Context, batch *model.Batch, outcome string, duration time.Duration) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// NoOpTracer creates no spans.
type NoOpTracer struct{}

// NewNoOpTracer creates a tracer that does nothing.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartJobSpan returns ctx and a no-op finish function.
func (t *NoOpTracer) StartJobSpan(ctx context.Context, job *model.Job) (context.Context, func(err error)) {
	return ctx, func(error) {}
}

// StartBatchSpan returns ctx and a no-op finish function.
func (t *NoOpTracer) StartBatchSpan(ctx context.Context, operation string, batchID string) (context.Context, func(err error)) {
	return ctx, func(error) {}
}

// RecordEvent does nothing.
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {}

var _ Tracer = (*NoOpTracer)(nil)
