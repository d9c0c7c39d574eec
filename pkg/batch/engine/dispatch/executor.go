package dispatch

import (
	"context"
	"errors"
	"fmt"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/bulkop/pkg/batch/core/domain/repository"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler"
	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// JobExecutor executes jobs of one type. On success it removes or reschedules the job itself.
type JobExecutor interface {
	Execute(ctx context.Context, job *model.Job) error
}

// WorkUnitExecutor executes work units: it decodes the unit's configuration with the
// handler named by the batch type, runs the handler and deletes the unit.
type WorkUnitExecutor struct {
	store    repository.Store
	registry *handler.Registry
}

// NewWorkUnitExecutor creates a WorkUnitExecutor.
func NewWorkUnitExecutor(store repository.Store, registry *handler.Registry) *WorkUnitExecutor {
	return &WorkUnitExecutor{store: store, registry: registry}
}

// Execute loads the configuration of the work unit and runs it through its handler.
func (w *WorkUnitExecutor) Execute(ctx context.Context, job *model.Job) error {
	batch, err := w.store.FindBatchByID(ctx, job.BatchID)
	if errors.Is(err, exception.ErrBatchNotFound) {
		logger.Warnf("Work unit '%s' belongs to missing batch '%s'; removing it.", job.ID, job.BatchID)
		return w.remove(ctx, job)
	}
	if err != nil {
		return err
	}

	h, err := w.registry.Lookup(batch.Type)
	if err != nil {
		return exception.NewBatchError("dispatch", "batch type has no handler", err, false)
	}
	blob, err := w.store.FindByteArrayByID(ctx, job.ConfigurationID)
	if err != nil {
		return exception.NewBatchError("dispatch", fmt.Sprintf("failed to load configuration of work unit %s", job.ID), err, true)
	}
	cfg, err := h.Decode(blob.Bytes)
	if err != nil {
		return exception.NewBatchError("dispatch", "failed to decode work unit configuration", err, false)
	}

	if err := h.Execute(ctx, cfg, job.TenantID); err != nil {
		return err
	}
	logger.Debugf("Work unit '%s' of batch '%s' processed %d targets.", job.ID, batch.ID, len(cfg.Targets().IDs))
	return w.remove(ctx, job)
}

func (w *WorkUnitExecutor) remove(ctx context.Context, job *model.Job) error {
	if job.ConfigurationID != "" {
		if err := w.store.DeleteByteArray(ctx, job.ConfigurationID); err != nil {
			return err
		}
	}
	return w.store.DeleteJob(ctx, job.ID)
}
