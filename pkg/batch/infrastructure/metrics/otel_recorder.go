package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
)

// OTelRecorder records engine metrics with OpenTelemetry instruments.
// The instruments mirror those of PrometheusRecorder.
type OTelRecorder struct {
	batchesCreated   metric.Int64Counter
	workUnitsPlanned metric.Int64Counter
	workUnitsSeeded  metric.Int64Counter
	batchesFinished  metric.Int64Counter
	batchDuration    metric.Float64Histogram
	jobExecutions    metric.Int64Counter
	jobDuration      metric.Float64Histogram
	incidents        metric.Int64Counter
}

// NewOTelRecorder creates the instruments on a meter of mp.
func NewOTelRecorder(mp metric.MeterProvider) (*OTelRecorder, error) {
	meter := mp.Meter(instrumentationName)
	r := &OTelRecorder{}
	var err error
	if r.batchesCreated, err = meter.Int64Counter("bulkop.batches.created",
		metric.WithDescription("Number of batches built.")); err != nil {
		return nil, err
	}
	if r.workUnitsPlanned, err = meter.Int64Counter("bulkop.work_units.planned",
		metric.WithDescription("Number of work units planned at build time.")); err != nil {
		return nil, err
	}
	if r.workUnitsSeeded, err = meter.Int64Counter("bulkop.work_units.seeded",
		metric.WithDescription("Number of work units materialized by seed jobs.")); err != nil {
		return nil, err
	}
	if r.batchesFinished, err = meter.Int64Counter("bulkop.batches.finished",
		metric.WithDescription("Number of batches removed.")); err != nil {
		return nil, err
	}
	if r.batchDuration, err = meter.Float64Histogram("bulkop.batch.duration",
		metric.WithDescription("Time from build to removal of a batch."), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.jobExecutions, err = meter.Int64Counter("bulkop.job.executions",
		metric.WithDescription("Number of job executions.")); err != nil {
		return nil, err
	}
	if r.jobDuration, err = meter.Float64Histogram("bulkop.job.duration",
		metric.WithDescription("Duration of job executions."), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.incidents, err = meter.Int64Counter("bulkop.incidents",
		metric.WithDescription("Number of jobs that exhausted their retries.")); err != nil {
		return nil, err
	}
	return r, nil
}

// RecordBatchCreated counts the batch and its planned work units.
func (r *OTelRecorder) RecordBatchCreated(ctx context.Context, batch *model.Batch) {
	attrs := metric.WithAttributes(attribute.String("batch.type", batch.Type))
	r.batchesCreated.Add(ctx, 1, attrs)
	r.workUnitsPlanned.Add(ctx, int64(batch.TotalJobs), attrs)
}

// RecordWorkUnitsSeeded adds count to the seeded work units.
func (r *OTelRecorder) RecordWorkUnitsSeeded(ctx context.Context, batch *model.Batch, count int) {
	r.workUnitsSeeded.Add(ctx, int64(count), metric.WithAttributes(attribute.String("batch.type", batch.Type)))
}

// RecordJobExecuted counts the execution and records its duration by job type and result.
func (r *OTelRecorder) RecordJobExecuted(ctx context.Context, job *model.Job, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("job.type", job.Type.String()),
		attribute.String("result", resultOf(err)),
	)
	r.jobExecutions.Add(ctx, 1, attrs)
	r.jobDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordIncident counts an incident.
func (r *OTelRecorder) RecordIncident(ctx context.Context, job *model.Job) {
	r.incidents.Add(ctx, 1, metric.WithAttributes(attribute.String("job.type", job.Type.String())))
}

// RecordBatchFinished counts the batch by outcome.
func (r *OTelRecorder) RecordBatchFinished(ctx context.Context, batch *model.Batch, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("batch.type", batch.Type),
		attribute.String("outcome", outcome),
	)
	r.batchesFinished.Add(ctx, 1, attrs)
	r.batchDuration.Record(ctx, duration.Seconds(), attrs)
}

var _ metrics.MetricRecorder = (*OTelRecorder)(nil)
