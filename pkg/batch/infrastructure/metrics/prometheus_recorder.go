package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Batch metrics
	batchesCreated    *prometheus.CounterVec
	workUnitsPlanned  *prometheus.CounterVec
	workUnitsSeeded   *prometheus.CounterVec
	batchesFinished   *prometheus.CounterVec
	batchDurationSecs *prometheus.HistogramVec

	// Job metrics
	jobExecutions   *prometheus.CounterVec
	jobDurationSecs *prometheus.HistogramVec
	incidents       *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder with its own registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		batchesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulkop_batches_created_total",
			Help: "Total number of batches built, by operation type.",
		}, []string{"batch_type"}),
		workUnitsPlanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulkop_work_units_planned_total",
			Help: "Total number of work units planned at build time.",
		}, []string{"batch_type"}),
		workUnitsSeeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulkop_work_units_seeded_total",
			Help: "Total number of work units materialized by seed jobs.",
		}, []string{"batch_type"}),
		batchesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulkop_batches_finished_total",
			Help: "Total number of batches removed, by outcome.",
		}, []string{"batch_type", "outcome"}),
		batchDurationSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bulkop_batch_duration_seconds",
			Help:    "Time from build to removal of a batch.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"batch_type", "outcome"}),
		jobExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulkop_job_executions_total",
			Help: "Total number of job executions, by job type and result.",
		}, []string{"job_type", "result"}),
		jobDurationSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bulkop_job_duration_seconds",
			Help:    "Duration of job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_type", "result"}),
		incidents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulkop_incidents_total",
			Help: "Total number of jobs that exhausted their retries.",
		}, []string{"job_type"}),
	}

	registry.MustRegister(
		r.batchesCreated,
		r.workUnitsPlanned,
		r.workUnitsSeeded,
		r.batchesFinished,
		r.batchDurationSecs,
		r.jobExecutions,
		r.jobDurationSecs,
		r.incidents,
	)
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordBatchCreated counts the batch and its planned work units.
func (r *PrometheusRecorder) RecordBatchCreated(ctx context.Context, batch *model.Batch) {
	r.batchesCreated.WithLabelValues(batch.Type).Inc()
	r.workUnitsPlanned.WithLabelValues(batch.Type).Add(float64(batch.TotalJobs))
}

// RecordWorkUnitsSeeded adds count to the seeded work units.
func (r *PrometheusRecorder) RecordWorkUnitsSeeded(ctx context.Context, batch *model.Batch, count int) {
	r.workUnitsSeeded.WithLabelValues(batch.Type).Add(float64(count))
}

// RecordJobExecuted counts the execution and observes its duration by job type and result.
func (r *PrometheusRecorder) RecordJobExecuted(ctx context.Context, job *model.Job, duration time.Duration, err error) {
	result := resultOf(err)
	r.jobExecutions.WithLabelValues(job.Type.String(), result).Inc()
	r.jobDurationSecs.WithLabelValues(job.Type.String(), result).Observe(duration.Seconds())
}

// RecordIncident counts an incident.
func (r *PrometheusRecorder) RecordIncident(ctx context.Context, job *model.Job) {
	r.incidents.WithLabelValues(job.Type.String()).Inc()
}

// RecordBatchFinished counts the batch and observes its lifetime by outcome.
func (r *PrometheusRecorder) RecordBatchFinished(ctx context.Context, batch *model.Batch, outcome string, duration time.Duration) {
	r.batchesFinished.WithLabelValues(batch.Type, outcome).Inc()
	r.batchDurationSecs.WithLabelValues(batch.Type, outcome).Observe(duration.Seconds())
	logger.Debugf("Metrics: batch '%s' %s after %.3fs", batch.ID, outcome, duration.Seconds())
}

func resultOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
