package sql

import (
	"context"
	"fmt"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
)

// SaveBatch inserts or updates the batch row.
func (s *SQLStore) SaveBatch(ctx context.Context, batch *model.Batch) error {
	return s.create(ctx, fromDomainBatch(batch), "batch", batch.ID)
}

// UpdateBatch writes batch guarded by its version. On success batch.Version is incremented.
func (s *SQLStore) UpdateBatch(ctx context.Context, batch *model.Batch) error {
	executor, err := s.getTxExecutor(ctx)
	if err != nil {
		return err
	}

	originalVersion := batch.Version
	entity := fromDomainBatch(batch)
	entity.Version = originalVersion + 1

	rowsAffected, err := executor.ExecuteUpdate(ctx, entity, database.OperationUpdate, entity.TableName(),
		map[string]interface{}{"version": originalVersion})
	if err != nil {
		return wrap(executor, err, "failed to update batch (ID: %s)", batch.ID)
	}
	if rowsAffected == 0 {
		var current []BatchEntity
		found, err := s.findOne(ctx, &current, map[string]interface{}{"id": batch.ID}, func() int { return len(current) })
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", exception.ErrBatchNotFound, batch.ID)
		}
		return exception.NewOptimisticLockingFailureException(module,
			fmt.Sprintf("batch %s was modified concurrently (expected version %d, found %d)", batch.ID, originalVersion, current[0].Version), nil)
	}
	batch.Version = entity.Version
	return nil
}

// FindBatchByID returns the batch or exception.ErrBatchNotFound.
func (s *SQLStore) FindBatchByID(ctx context.Context, id string) (*model.Batch, error) {
	var entities []BatchEntity
	found, err := s.findOne(ctx, &entities, map[string]interface{}{"id": id}, func() int { return len(entities) })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", exception.ErrBatchNotFound, id)
	}
	return toDomainBatch(&entities[0]), nil
}

// FindBatches returns the batches matching filter, oldest first.
func (s *SQLStore) FindBatches(ctx context.Context, filter model.BatchFilter) ([]*model.Batch, error) {
	executor, err := s.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}

	query := map[string]interface{}{}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.TenantID != "" {
		query["tenant_id"] = filter.TenantID
	}
	if filter.Suspended != nil {
		query["suspended"] = *filter.Suspended
	}

	var entities []BatchEntity
	if err := executor.ExecuteQueryAdvanced(ctx, &entities, query, "start_time, id", 0); err != nil {
		return nil, wrap(executor, err, "failed to list batches")
	}
	batches := make([]*model.Batch, 0, len(entities))
	for i := range entities {
		batches = append(batches, toDomainBatch(&entities[i]))
	}
	return batches, nil
}

// DeleteBatch removes a batch. Deleting a missing batch is not an error.
func (s *SQLStore) DeleteBatch(ctx context.Context, id string) error {
	return s.deleteWhere(ctx, &BatchEntity{}, map[string]interface{}{"id": id})
}

// SaveHistoricBatch inserts the historic batch row.
func (s *SQLStore) SaveHistoricBatch(ctx context.Context, batch *model.HistoricBatch) error {
	return s.create(ctx, fromDomainHistoricBatch(batch), "historic batch", batch.ID)
}

// UpdateHistoricBatch writes the end time and removal time of batch.
func (s *SQLStore) UpdateHistoricBatch(ctx context.Context, batch *model.HistoricBatch) error {
	executor, err := s.getTxExecutor(ctx)
	if err != nil {
		return err
	}
	entity := fromDomainHistoricBatch(batch)
	rowsAffected, err := executor.ExecuteUpdate(ctx, entity, database.OperationUpdate, entity.TableName(), nil)
	if err != nil {
		return wrap(executor, err, "failed to update historic batch (ID: %s)", batch.ID)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: historic %s", exception.ErrBatchNotFound, batch.ID)
	}
	return nil
}

// FindHistoricBatchByID returns the historic batch or an error wrapping
// exception.ErrBatchNotFound.
func (s *SQLStore) FindHistoricBatchByID(ctx context.Context, id string) (*model.HistoricBatch, error) {
	var entities []HistoricBatchEntity
	found, err := s.findOne(ctx, &entities, map[string]interface{}{"id": id}, func() int { return len(entities) })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: historic %s", exception.ErrBatchNotFound, id)
	}
	return toDomainHistoricBatch(&entities[0]), nil
}

// FindHistoricBatches returns the historic batches ordered by start time.
func (s *SQLStore) FindHistoricBatches(ctx context.Context, finishedOnly bool) ([]*model.HistoricBatch, error) {
	executor, err := s.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}

	var entities []HistoricBatchEntity
	if finishedOnly {
		err = executor.ExecuteQueryWhere(ctx, &entities, "end_time IS NOT NULL", nil, "start_time, id", 0)
	} else {
		err = executor.ExecuteQueryAdvanced(ctx, &entities, nil, "start_time, id", 0)
	}
	if err != nil {
		return nil, wrap(executor, err, "failed to list historic batches")
	}
	result := make([]*model.HistoricBatch, 0, len(entities))
	for i := range entities {
		result = append(result, toDomainHistoricBatch(&entities[i]))
	}
	return result, nil
}

// DeleteHistoricBatch removes the historic batch. Missing ids are ignored.
func (s *SQLStore) DeleteHistoricBatch(ctx context.Context, id string) error {
	return s.deleteWhere(ctx, &HistoricBatchEntity{}, map[string]interface{}{"id": id})
}
