// Package monitor detects when a batch has finished and removes it.
package monitor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/bulkop/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
	tx "github.com/tigerroll/bulkop/pkg/batch/core/tx"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/clock"
	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// Executor runs monitor jobs.
type Executor struct {
	store     repository.Store
	sizing    *config.BatchConfig
	clock     clock.Clock
	recorder  metrics.MetricRecorder
	listeners []port.BatchListener
}

// Params collects the dependencies of an Executor.
type Params struct {
	fx.In
	Store     repository.Store
	Sizing    *config.BatchConfig
	Clock     clock.Clock
	Recorder  metrics.MetricRecorder
	Listeners []port.BatchListener `group:"batchListeners"`
}

// NewExecutor creates a monitor job executor.
func NewExecutor(p Params) *Executor {
	return &Executor{store: p.Store, sizing: p.Sizing, clock: p.Clock, recorder: p.Recorder, listeners: p.Listeners}
}

// Execute checks the batch of job once. While work units remain or seeding is unfinished the
// job is rescheduled one poll interval later. Otherwise the batch is finalized: its historic
// record gets an end time and the batch, its configuration, its job definitions and the
// monitor job itself are deleted. It must be called inside a transaction.
func (e *Executor) Execute(ctx context.Context, job *model.Job) error {
	batch, err := e.store.FindBatchByID(ctx, job.BatchID)
	if errors.Is(err, exception.ErrBatchNotFound) {
		logger.Warnf("Monitor job '%s' belongs to missing batch '%s'; removing it.", job.ID, job.BatchID)
		return e.store.DeleteJob(ctx, job.ID)
	}
	if err != nil {
		return err
	}

	now := e.clock.Now()
	remaining, err := e.store.CountJobsByBatchID(ctx, batch.ID, model.JobTypeBatch)
	if err != nil {
		return err
	}
	if remaining > 0 || !batch.IsSeedFinished() {
		logger.Debugf("Batch '%s' still running: %d jobs pending, seeding finished: %t.", batch.ID, remaining, batch.IsSeedFinished())
		job.DueDate = now.Add(time.Duration(e.sizing.BatchPollTimeSeconds) * time.Second)
		job.Unlock()
		return e.store.UpdateJob(ctx, job)
	}

	if err := e.finalize(ctx, batch, job, now); err != nil {
		return err
	}

	tx.OnCommit(ctx, func() {
		logger.Infof("Batch '%s' of type '%s' completed.", batch.ID, batch.Type)
		e.recorder.RecordBatchFinished(ctx, batch, metrics.OutcomeCompleted, now.Sub(batch.StartTime))
		for _, l := range e.listeners {
			l.OnBatchCompleted(ctx, batch)
		}
	})
	return nil
}

func (e *Executor) finalize(ctx context.Context, batch *model.Batch, job *model.Job, now time.Time) error {
	historic, err := e.store.FindHistoricBatchByID(ctx, batch.ID)
	switch {
	case errors.Is(err, exception.ErrBatchNotFound):
		logger.Warnf("Batch '%s' has no historic record to close.", batch.ID)
	case err != nil:
		return err
	default:
		historic.EndTime = &now
		if err := e.store.UpdateHistoricBatch(ctx, historic); err != nil {
			return err
		}
	}

	if err := e.store.DeleteByteArray(ctx, batch.ConfigurationID); err != nil {
		return err
	}
	if err := e.store.DeleteJob(ctx, job.ID); err != nil {
		return err
	}
	if err := e.store.DeleteJobDefinitionsByBatchID(ctx, batch.ID); err != nil {
		return err
	}
	return e.store.DeleteBatch(ctx, batch.ID)
}

// Module provides the monitor executor.
var Module = fx.Options(
	fx.Provide(NewExecutor),
)
