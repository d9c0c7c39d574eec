// Package tracing records batch lifecycle events on the active span.
package tracing

import (
	"context"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
)

// BatchListener adds an event per lifecycle transition to the span carried by ctx.
// Build runs inside a "build" span, completion inside the monitor job span and
// cancellation inside the "delete" span.
type BatchListener struct {
	tracer metrics.Tracer
}

// NewBatchListener creates a BatchListener recording on tracer.
func NewBatchListener(tracer metrics.Tracer) *BatchListener {
	return &BatchListener{tracer: tracer}
}

// OnBatchCreated records a batch-created event.
func (l *BatchListener) OnBatchCreated(ctx context.Context, batch *model.Batch) {
	l.tracer.RecordEvent(ctx, "batch.created", attributes(batch))
}

// OnBatchCompleted records a batch-completed event.
func (l *BatchListener) OnBatchCompleted(ctx context.Context, batch *model.Batch) {
	l.tracer.RecordEvent(ctx, "batch.completed", attributes(batch))
}

// OnBatchCancelled records a batch-cancelled event.
func (l *BatchListener) OnBatchCancelled(ctx context.Context, batch *model.Batch) {
	l.tracer.RecordEvent(ctx, "batch.cancelled", attributes(batch))
}

func attributes(batch *model.Batch) map[string]interface{} {
	return map[string]interface{}{
		"bulkop.batch.id":           batch.ID,
		"bulkop.batch.type":         batch.Type,
		"bulkop.batch.total_jobs":   batch.TotalJobs,
		"bulkop.batch.jobs_created": batch.JobsCreated,
	}
}

var _ port.BatchListener = (*BatchListener)(nil)
