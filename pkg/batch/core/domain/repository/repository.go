// Package repository defines the persistence ports of the batch operation engine.
// Implementations join the transaction carried by the context, see package tx.
package repository

import (
	"context"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
)

// BatchRepository persists runtime batches.
type BatchRepository interface {
	SaveBatch(ctx context.Context, batch *model.Batch) error
	// UpdateBatch writes batch if its Version matches the stored one and increments Version.
	// A mismatch yields an optimistic locking failure.
	UpdateBatch(ctx context.Context, batch *model.Batch) error
	// FindBatchByID returns exception.ErrBatchNotFound when no batch has the id.
	FindBatchByID(ctx context.Context, id string) (*model.Batch, error)
	FindBatches(ctx context.Context, filter model.BatchFilter) ([]*model.Batch, error)
	DeleteBatch(ctx context.Context, id string) error
}

// HistoricBatchRepository persists the audit trail of batches.
type HistoricBatchRepository interface {
	SaveHistoricBatch(ctx context.Context, batch *model.HistoricBatch) error
	UpdateHistoricBatch(ctx context.Context, batch *model.HistoricBatch) error
	// FindHistoricBatchByID returns exception.ErrBatchNotFound when no record has the id.
	FindHistoricBatchByID(ctx context.Context, id string) (*model.HistoricBatch, error)
	// FindHistoricBatches returns records ordered by start time. finishedOnly restricts the result to ended batches.
	FindHistoricBatches(ctx context.Context, finishedOnly bool) ([]*model.HistoricBatch, error)
	DeleteHistoricBatch(ctx context.Context, id string) error
}

// JobDefinitionRepository persists job definitions.
type JobDefinitionRepository interface {
	SaveJobDefinition(ctx context.Context, definition *model.JobDefinition) error
	FindJobDefinitionsByBatchID(ctx context.Context, batchID string) ([]*model.JobDefinition, error)
	// UpdateJobDefinitionSuspensionState sets the suspension flag of the batch's definitions of jobType.
	UpdateJobDefinitionSuspensionState(ctx context.Context, batchID string, jobType model.JobType, suspended bool) error
	DeleteJobDefinitionsByBatchID(ctx context.Context, batchID string) error
}

// JobRepository persists schedulable jobs.
type JobRepository interface {
	SaveJob(ctx context.Context, job *model.Job) error
	// UpdateJob writes job if its Version matches the stored one and increments Version.
	UpdateJob(ctx context.Context, job *model.Job) error
	// FindJobByID returns exception.ErrJobNotFound when no job has the id.
	FindJobByID(ctx context.Context, id string) (*model.Job, error)
	// FindJobsByBatchID returns the jobs of a batch ordered by creation time. An empty jobType matches all types.
	FindJobsByBatchID(ctx context.Context, batchID string, jobType model.JobType) ([]*model.Job, error)
	// CountJobsByBatchID counts the jobs of a batch. An empty jobType matches all types.
	CountJobsByBatchID(ctx context.Context, batchID string, jobType model.JobType) (int, error)
	// CountIncidentsByBatchID counts the work units of a batch without retries left.
	CountIncidentsByBatchID(ctx context.Context, batchID string) (int, error)
	// UpdateJobSuspensionState sets the suspension flag of the batch's jobs of jobType.
	UpdateJobSuspensionState(ctx context.Context, batchID string, jobType model.JobType, suspended bool) error
	DeleteJob(ctx context.Context, id string) error
	// AcquireJobs locks up to req.MaxJobs acquirable jobs for req.LockOwner, oldest due date first.
	// It never returns a job whose exclusivity key is held by a locked job or by another returned job.
	AcquireJobs(ctx context.Context, req model.AcquireRequest) ([]*model.Job, error)
}

// ByteArrayRepository persists opaque configuration blobs.
type ByteArrayRepository interface {
	SaveByteArray(ctx context.Context, blob *model.ByteArray) error
	FindByteArrayByID(ctx context.Context, id string) (*model.ByteArray, error)
	DeleteByteArray(ctx context.Context, id string) error
}

// Store aggregates every repository of the engine over one backend.
type Store interface {
	BatchRepository
	HistoricBatchRepository
	JobDefinitionRepository
	JobRepository
	ByteArrayRepository

	// Close releases resources (such as database connections) used by the store.
	Close() error
}
