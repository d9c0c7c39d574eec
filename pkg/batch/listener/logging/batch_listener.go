// Package logging provides listeners and writers that report engine activity through the logger.
package logging

import (
	"context"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// BatchListener logs batch lifecycle events.
type BatchListener struct{}

// NewBatchListener creates a BatchListener.
func NewBatchListener() *BatchListener {
	return &BatchListener{}
}

// OnBatchCreated logs the batch and its sizing.
func (l *BatchListener) OnBatchCreated(ctx context.Context, batch *model.Batch) {
	logger.Infof("BatchListener: created - ID: %s, Type: %s, WorkUnits: %d, PerSeed: %d, PerWorkUnit: %d, Tenant: '%s'",
		batch.ID, batch.Type, batch.TotalJobs, batch.BatchJobsPerSeed, batch.InvocationsPerBatchJob, batch.TenantID)
}

// OnBatchCompleted logs the batch.
func (l *BatchListener) OnBatchCompleted(ctx context.Context, batch *model.Batch) {
	logger.Infof("BatchListener: completed - ID: %s, Type: %s, WorkUnits: %d", batch.ID, batch.Type, batch.JobsCreated)
}

// OnBatchCancelled logs the batch and how many work units were created.
func (l *BatchListener) OnBatchCancelled(ctx context.Context, batch *model.Batch) {
	logger.Warnf("BatchListener: cancelled - ID: %s, Type: %s, WorkUnits created: %d of %d",
		batch.ID, batch.Type, batch.JobsCreated, batch.TotalJobs)
}

var _ port.BatchListener = (*BatchListener)(nil)
