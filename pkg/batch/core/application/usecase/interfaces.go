package usecase

import (
	"context"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	"github.com/tigerroll/bulkop/pkg/batch/engine/builder"
)

// BatchOperator creates and controls batches.
type BatchOperator interface {
	// CreateBatch builds and persists a batch. Execution happens asynchronously.
	CreateBatch(ctx context.Context, req builder.Request) (*model.Batch, error)

	// DeleteBatch cancels a batch: its jobs, definitions and configuration are removed.
	// The historic record is closed, or removed as well when cascadeHistory is set.
	DeleteBatch(ctx context.Context, batchID string, cascadeHistory bool) error

	// SuspendBatch stops the pool from picking up the batch's work units.
	SuspendBatch(ctx context.Context, batchID string) error

	// ActivateBatch reverts SuspendBatch.
	ActivateBatch(ctx context.Context, batchID string) error

	// SetRetries gives every failed work unit of the batch a new retry budget
	// and returns the number of units updated.
	SetRetries(ctx context.Context, batchID string, retries int) (int, error)
}

// BatchExplorer queries batches and their history.
type BatchExplorer interface {
	FindBatch(ctx context.Context, batchID string) (*model.Batch, error)
	ListBatches(ctx context.Context, filter model.BatchFilter) ([]*model.Batch, error)
	GetStatistics(ctx context.Context, batchID string) (*model.BatchStatistics, error)
	ListHistory(ctx context.Context, finishedOnly bool) ([]*model.HistoricBatch, error)
}
