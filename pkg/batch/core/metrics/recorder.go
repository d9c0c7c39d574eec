// Package metrics defines the metric and tracing hooks of the batch operation engine.
package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
)

// MetricRecorder collects engine metrics.
type MetricRecorder interface {
	// RecordBatchCreated counts a newly built batch and its planned work units.
	RecordBatchCreated(ctx context.Context, batch *model.Batch)
	// RecordWorkUnitsSeeded counts work units materialized by one seed step.
	RecordWorkUnitsSeeded(ctx context.Context, batch *model.Batch, count int)
	// RecordJobExecuted records the outcome and duration of one job execution.
	RecordJobExecuted(ctx context.Context, job *model.Job, duration time.Duration, err error)
	// RecordIncident counts a job whose retries were exhausted.
	RecordIncident(ctx context.Context, job *model.Job)
	// RecordBatchFinished records a batch removed by its monitor (completed) or by a cancellation.
	RecordBatchFinished(ctx context.Context, batch *model.Batch, outcome string, duration time.Duration)
}

// Batch outcomes passed to RecordBatchFinished.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
)
