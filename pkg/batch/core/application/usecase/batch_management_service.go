// Package usecase implements the management operations offered on top of the engine.
package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/bulkop/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
	tx "github.com/tigerroll/bulkop/pkg/batch/core/tx"
	"github.com/tigerroll/bulkop/pkg/batch/engine/builder"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/clock"
	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

const module = "batch_management"

// BatchManagementService is the default BatchOperator and BatchExplorer.
type BatchManagementService struct {
	builder   *builder.Builder
	store     repository.Store
	txManager tx.TransactionManager
	checker   port.PermissionChecker
	opLog     port.OperationLogWriter
	listeners []port.BatchListener
	recorder  metrics.MetricRecorder
	clock     clock.Clock
}

var (
	_ BatchOperator = (*BatchManagementService)(nil)
	_ BatchExplorer = (*BatchManagementService)(nil)
)

// Params collects the dependencies of a BatchManagementService.
type Params struct {
	fx.In
	Builder   *builder.Builder
	Store     repository.Store
	TxManager tx.TransactionManager
	Checker   port.PermissionChecker
	OpLog     port.OperationLogWriter
	Clock     clock.Clock
	Listeners []port.BatchListener   `group:"batchListeners"`
	Recorder  metrics.MetricRecorder `optional:"true"`
}

// NewBatchManagementService creates a BatchManagementService.
func NewBatchManagementService(p Params) *BatchManagementService {
	s := &BatchManagementService{
		builder:   p.Builder,
		store:     p.Store,
		txManager: p.TxManager,
		checker:   p.Checker,
		opLog:     p.OpLog,
		listeners: p.Listeners,
		recorder:  p.Recorder,
		clock:     p.Clock,
	}
	if s.recorder == nil {
		s.recorder = metrics.NewNoOpMetricRecorder()
	}
	return s
}

// CreateBatch validates req, persists the batch and returns it. See builder.Builder.Build.
func (s *BatchManagementService) CreateBatch(ctx context.Context, req builder.Request) (*model.Batch, error) {
	return s.builder.Build(ctx, req)
}

// DeleteBatch removes the batch with all its job definitions, jobs and configuration
// blobs. The historic record is deleted too when cascadeHistory is set, otherwise it is
// closed with the current time.
func (s *BatchManagementService) DeleteBatch(ctx context.Context, batchID string, cascadeHistory bool) error {
	batch, err := s.authorize(ctx, batchID, port.PermissionDelete)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	err = tx.Run(ctx, s.txManager, func(ctx context.Context) error {
		// Re-read under the transaction; a seed step may have run since the check.
		current, err := s.store.FindBatchByID(ctx, batchID)
		if err != nil {
			return err
		}
		batch = current
		if err := s.deleteRuntimeData(ctx, batch); err != nil {
			return err
		}
		if err := s.closeHistory(ctx, batchID, cascadeHistory, now); err != nil {
			return err
		}
		return s.writeLog(ctx, model.OperationDelete, batchID, now,
			model.PropertyChange{Name: "cascadeToHistory", NewValue: cascadeHistory})
	})
	if err != nil {
		return exception.NewBatchErrorf(module, "failed to delete batch %s", batchID, err)
	}

	logger.Infof("Batch '%s' of type '%s' cancelled.", batch.ID, batch.Type)
	s.recorder.RecordBatchFinished(ctx, batch, metrics.OutcomeCancelled, now.Sub(batch.StartTime))
	for _, l := range s.listeners {
		l.OnBatchCancelled(ctx, batch)
	}
	return nil
}

// deleteRuntimeData removes the work units first, then the seed and monitor jobs,
// then the definitions and configuration, and the batch itself last.
func (s *BatchManagementService) deleteRuntimeData(ctx context.Context, batch *model.Batch) error {
	for _, jobType := range []model.JobType{model.JobTypeBatch, model.JobTypeSeed, model.JobTypeMonitor} {
		jobs, err := s.store.FindJobsByBatchID(ctx, batch.ID, jobType)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			if job.ConfigurationID != "" {
				if err := s.store.DeleteByteArray(ctx, job.ConfigurationID); err != nil {
					return err
				}
			}
			if err := s.store.DeleteJob(ctx, job.ID); err != nil {
				return err
			}
		}
	}
	if err := s.store.DeleteJobDefinitionsByBatchID(ctx, batch.ID); err != nil {
		return err
	}
	if batch.ConfigurationID != "" {
		if err := s.store.DeleteByteArray(ctx, batch.ConfigurationID); err != nil {
			return err
		}
	}
	return s.store.DeleteBatch(ctx, batch.ID)
}

func (s *BatchManagementService) closeHistory(ctx context.Context, batchID string, cascade bool, now time.Time) error {
	if cascade {
		return s.store.DeleteHistoricBatch(ctx, batchID)
	}
	historic, err := s.store.FindHistoricBatchByID(ctx, batchID)
	if errors.Is(err, exception.ErrBatchNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	historic.EndTime = &now
	return s.store.UpdateHistoricBatch(ctx, historic)
}

// SuspendBatch suspends the batch and every job definition and job belonging to it.
func (s *BatchManagementService) SuspendBatch(ctx context.Context, batchID string) error {
	return s.setSuspended(ctx, batchID, true)
}

// ActivateBatch reverses SuspendBatch.
func (s *BatchManagementService) ActivateBatch(ctx context.Context, batchID string) error {
	return s.setSuspended(ctx, batchID, false)
}

// setSuspended flips the batch flag together with its work unit definition and work units.
// Seed and monitor jobs keep running.
func (s *BatchManagementService) setSuspended(ctx context.Context, batchID string, suspended bool) error {
	if _, err := s.authorize(ctx, batchID, port.PermissionUpdate); err != nil {
		return err
	}

	operation, state := model.OperationActivate, "active"
	if suspended {
		operation, state = model.OperationSuspend, "suspended"
	}
	now := s.clock.Now()
	return tx.Run(ctx, s.txManager, func(ctx context.Context) error {
		batch, err := s.store.FindBatchByID(ctx, batchID)
		if err != nil {
			return err
		}
		if batch.Suspended == suspended {
			return exception.NewValidationError("suspended", "batch "+batchID+" is already "+state)
		}
		batch.Suspended = suspended
		if err := s.store.UpdateBatch(ctx, batch); err != nil {
			return err
		}
		if err := s.store.UpdateJobDefinitionSuspensionState(ctx, batchID, model.JobTypeBatch, suspended); err != nil {
			return err
		}
		if err := s.store.UpdateJobSuspensionState(ctx, batchID, model.JobTypeBatch, suspended); err != nil {
			return err
		}
		logger.Infof("Batch '%s' is now %s.", batchID, state)
		return s.writeLog(ctx, operation, batchID, now, model.PropertyChange{Name: "suspensionState", NewValue: state})
	})
}

// SetRetries gives every incident job of the batch retries attempts and makes it due
// now. It returns the number of jobs updated.
func (s *BatchManagementService) SetRetries(ctx context.Context, batchID string, retries int) (int, error) {
	if retries < 0 {
		return 0, exception.NewValidationError("retries", "must not be negative")
	}
	if _, err := s.authorize(ctx, batchID, port.PermissionUpdate); err != nil {
		return 0, err
	}

	now := s.clock.Now()
	updated := 0
	err := tx.Run(ctx, s.txManager, func(ctx context.Context) error {
		jobs, err := s.store.FindJobsByBatchID(ctx, batchID, model.JobTypeBatch)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			if !job.IsIncident() {
				continue
			}
			job.Retries = retries
			job.ExceptionMessage = ""
			job.DueDate = now
			if err := s.store.UpdateJob(ctx, job); err != nil {
				return err
			}
			updated++
		}
		return s.writeLog(ctx, model.OperationRetries, batchID, now, model.PropertyChange{Name: "retries", NewValue: retries})
	})
	if err != nil {
		return 0, err
	}
	logger.Infof("Reset retries of %d failed jobs of batch '%s' to %d.", updated, batchID, retries)
	return updated, nil
}

// FindBatch returns the batch with the given id.
func (s *BatchManagementService) FindBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	batch, err := s.authorize(ctx, batchID, port.PermissionRead)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// ListBatches returns the batches matching filter.
func (s *BatchManagementService) ListBatches(ctx context.Context, filter model.BatchFilter) ([]*model.Batch, error) {
	if err := s.checker.Check(ctx, port.Capability{Resource: port.ResourceBatch, Permission: port.PermissionRead, BatchType: filter.Type}); err != nil {
		return nil, err
	}
	return s.store.FindBatches(ctx, filter)
}

// GetStatistics returns the job counts of a running batch.
func (s *BatchManagementService) GetStatistics(ctx context.Context, batchID string) (*model.BatchStatistics, error) {
	batch, err := s.authorize(ctx, batchID, port.PermissionRead)
	if err != nil {
		return nil, err
	}
	pending, err := s.store.CountJobsByBatchID(ctx, batchID, model.JobTypeBatch)
	if err != nil {
		return nil, err
	}
	failed, err := s.store.CountIncidentsByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return model.NewBatchStatistics(batch, pending, failed), nil
}

// ListHistory returns the historic batches, only the finished ones when finishedOnly is set.
func (s *BatchManagementService) ListHistory(ctx context.Context, finishedOnly bool) ([]*model.HistoricBatch, error) {
	if err := s.checker.Check(ctx, port.Capability{Resource: port.ResourceBatch, Permission: port.PermissionRead}); err != nil {
		return nil, err
	}
	return s.store.FindHistoricBatches(ctx, finishedOnly)
}

// authorize loads the batch and checks the caller may perform permission on it.
func (s *BatchManagementService) authorize(ctx context.Context, batchID, permission string) (*model.Batch, error) {
	batch, err := s.store.FindBatchByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := s.checker.Check(ctx, port.Capability{Resource: port.ResourceBatch, Permission: permission, BatchType: batch.Type}); err != nil {
		return nil, err
	}
	return batch, nil
}

func (s *BatchManagementService) writeLog(ctx context.Context, operation, batchID string, now time.Time, props ...model.PropertyChange) error {
	return s.opLog.Write(ctx, port.OperationLogEntry{
		Operation:  operation,
		EntityType: "Batch",
		BatchID:    batchID,
		UserID:     port.UserFromContext(ctx),
		Timestamp:  now,
		Properties: props,
	})
}
