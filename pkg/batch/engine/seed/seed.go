// Package seed materializes the work units of a batch.
//
// Each execution of a batch's seed job creates at most BatchJobsPerSeed work units,
// starting at the batch's persisted cursor. The cursor, the created units and the
// rescheduling or removal of the seed job are written in the caller's transaction,
// so a retried execution never skips or duplicates targets.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"

	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/bulkop/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/clock"
	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// WorkUnitConfigurationName is the name of the byte array holding a work unit configuration.
const WorkUnitConfigurationName = "batch-job-configuration"

// Executor runs seed jobs.
type Executor struct {
	store    repository.Store
	registry *handler.Registry
	sizing   *config.BatchConfig
	clock    clock.Clock
	recorder metrics.MetricRecorder
}

// NewExecutor creates a seed job executor.
func NewExecutor(store repository.Store, registry *handler.Registry, sizing *config.BatchConfig, clk clock.Clock, recorder metrics.MetricRecorder) *Executor {
	return &Executor{store: store, registry: registry, sizing: sizing, clock: clk, recorder: recorder}
}

// Execute runs one seed step for job. It must be called inside a transaction.
func (e *Executor) Execute(ctx context.Context, job *model.Job) error {
	batch, err := e.store.FindBatchByID(ctx, job.BatchID)
	if errors.Is(err, exception.ErrBatchNotFound) {
		logger.Warnf("Seed job '%s' belongs to missing batch '%s'; removing it.", job.ID, job.BatchID)
		return e.store.DeleteJob(ctx, job.ID)
	}
	if err != nil {
		return err
	}

	h, err := e.registry.Lookup(batch.Type)
	if err != nil {
		return exception.NewBatchError("seed", "batch type has no handler", err, false)
	}
	blob, err := e.store.FindByteArrayByID(ctx, batch.ConfigurationID)
	if err != nil {
		return exception.NewBatchError("seed", fmt.Sprintf("failed to load configuration of batch %s", batch.ID), err, true)
	}
	parent, err := h.Decode(blob.Bytes)
	if err != nil {
		return exception.NewBatchError("seed", "failed to decode batch configuration", err, false)
	}

	now := e.clock.Now()
	created, err := e.createWorkUnits(ctx, batch, h, parent, now)
	if err != nil {
		return err
	}

	if batch.MonitorJobID == "" {
		monitor := model.NewJob(model.JobTypeMonitor, batch.MonitorJobDefinitionID, batch.ID, e.sizing.DefaultJobRetries, now)
		monitor.DueDate = now.Add(e.pollInterval())
		monitor.TenantID = batch.TenantID
		if err := e.store.SaveJob(ctx, monitor); err != nil {
			return err
		}
		batch.MonitorJobID = monitor.ID
	}

	if batch.MaterializedUpTo >= len(parent.Targets().IDs) {
		if err := e.store.DeleteJob(ctx, job.ID); err != nil {
			return err
		}
		batch.SeedJobID = ""
		logger.Debugf("Seeding of batch '%s' finished with %d jobs.", batch.ID, batch.JobsCreated)
	} else {
		job.DueDate = now
		job.Unlock()
		if err := e.store.UpdateJob(ctx, job); err != nil {
			return err
		}
	}

	if err := e.store.UpdateBatch(ctx, batch); err != nil {
		return err
	}
	e.recorder.RecordWorkUnitsSeeded(ctx, batch, created)
	return nil
}

func (e *Executor) createWorkUnits(ctx context.Context, batch *model.Batch, h handler.Handler, parent handler.Configuration, now time.Time) (int, error) {
	ids := parent.Targets().IDs
	size := batch.InvocationsPerBatchJob
	if size < 1 {
		size = 1
	}
	perSeed := batch.BatchJobsPerSeed
	if perSeed < 1 {
		perSeed = 1
	}

	created := 0
	for created < perSeed && batch.MaterializedUpTo < len(ids) {
		start := batch.MaterializedUpTo
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}

		unitCfg := h.Partition(parent, ids[start:end])
		data, err := h.Encode(unitCfg)
		if err != nil {
			return created, exception.NewBatchError("seed", "failed to encode work unit configuration", err, false)
		}
		blob := model.NewByteArray(WorkUnitConfigurationName, data, batch.TenantID, now)
		if err := e.store.SaveByteArray(ctx, blob); err != nil {
			return created, err
		}

		unit := model.NewJob(model.JobTypeBatch, batch.BatchJobDefinitionID, batch.ID, e.sizing.DefaultJobRetries, now)
		unit.ConfigurationID = blob.ID
		unit.TenantID = batch.TenantID
		unit.Suspended = batch.Suspended
		h.PostProcess(parent, unit, unitCfg)
		if err := e.store.SaveJob(ctx, unit); err != nil {
			return created, err
		}

		batch.MaterializedUpTo = end
		batch.JobsCreated++
		created++
	}
	return created, nil
}

func (e *Executor) pollInterval() time.Duration {
	return time.Duration(e.sizing.BatchPollTimeSeconds) * time.Second
}

// Module provides the seed executor.
var Module = fx.Options(
	fx.Provide(NewExecutor),
)
