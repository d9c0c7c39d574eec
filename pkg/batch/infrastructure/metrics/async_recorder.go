package metrics

import (
	"context"
	"sync"
	"time"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

type metricEventType int

const (
	eventBatchCreated metricEventType = iota
	eventWorkUnitsSeeded
	eventJobExecuted
	eventIncident
	eventBatchFinished
)

// metricEvent is one recording queued for the worker goroutine.
// Batch and Job are copies, so later mutation by the engine does not race with recording.
type metricEvent struct {
	kind     metricEventType
	batch    *model.Batch
	job      *model.Job
	count    int
	duration time.Duration
	err      error
	outcome  string
}

// AsyncMetricRecorder queues recordings and hands them to a synchronous recorder
// on a single goroutine. Events are dropped with a warning when the queue is full.
type AsyncMetricRecorder struct {
	events       chan metricEvent
	syncRecorder metrics.MetricRecorder

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsyncMetricRecorder starts the worker goroutine. bufferSize <= 0 selects 100.
func NewAsyncMetricRecorder(bufferSize int, syncRecorder metrics.MetricRecorder) *AsyncMetricRecorder {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	r := &AsyncMetricRecorder{
		events:       make(chan metricEvent, bufferSize),
		syncRecorder: syncRecorder,
	}
	r.wg.Add(1)
	go r.run()
	logger.Debugf("AsyncMetricRecorder: worker started (buffer size: %d).", bufferSize)
	return r
}

func (r *AsyncMetricRecorder) run() {
	defer r.wg.Done()
	for event := range r.events {
		r.process(event)
	}
}

func (r *AsyncMetricRecorder) process(e metricEvent) {
	// The caller's context may be cancelled by the time the event is processed.
	ctx := context.Background()
	switch e.kind {
	case eventBatchCreated:
		r.syncRecorder.RecordBatchCreated(ctx, e.batch)
	case eventWorkUnitsSeeded:
		r.syncRecorder.RecordWorkUnitsSeeded(ctx, e.batch, e.count)
	case eventJobExecuted:
		r.syncRecorder.RecordJobExecuted(ctx, e.job, e.duration, e.err)
	case eventIncident:
		r.syncRecorder.RecordIncident(ctx, e.job)
	case eventBatchFinished:
		r.syncRecorder.RecordBatchFinished(ctx, e.batch, e.outcome, e.duration)
	}
}

func (r *AsyncMetricRecorder) send(e metricEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.events <- e:
	default:
		logger.Warnf("AsyncMetricRecorder: event queue is full, event discarded.")
	}
}

// Close stops accepting events and waits until the queued ones are recorded.
func (r *AsyncMetricRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()
	r.wg.Wait()
}

// RecordBatchCreated queues the event. The batch is copied, so the caller may keep mutating it.
func (r *AsyncMetricRecorder) RecordBatchCreated(ctx context.Context, batch *model.Batch) {
	r.send(metricEvent{kind: eventBatchCreated, batch: batch.Clone()})
}

// RecordWorkUnitsSeeded queues the event.
func (r *AsyncMetricRecorder) RecordWorkUnitsSeeded(ctx context.Context, batch *model.Batch, count int) {
	r.send(metricEvent{kind: eventWorkUnitsSeeded, batch: batch.Clone(), count: count})
}

// RecordJobExecuted queues the event.
func (r *AsyncMetricRecorder) RecordJobExecuted(ctx context.Context, job *model.Job, duration time.Duration, err error) {
	r.send(metricEvent{kind: eventJobExecuted, job: job.Clone(), duration: duration, err: err})
}

// RecordIncident queues the event.
func (r *AsyncMetricRecorder) RecordIncident(ctx context.Context, job *model.Job) {
	r.send(metricEvent{kind: eventIncident, job: job.Clone()})
}

// RecordBatchFinished queues the event.
func (r *AsyncMetricRecorder) RecordBatchFinished(ctx context.Context, batch *model.Batch, outcome string, duration time.Duration) {
	r.send(metricEvent{kind: eventBatchFinished, batch: batch.Clone(), outcome: outcome, duration: duration})
}

var _ metrics.MetricRecorder = (*AsyncMetricRecorder)(nil)
