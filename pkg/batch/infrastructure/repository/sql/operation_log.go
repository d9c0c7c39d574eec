package sql

import (
	"context"
	"fmt"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
	"github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
)

// OperationLogWriter persists operation log entries into bulkop_operation_log,
// one row per property change. Rows of the same entry share an operation id.
type OperationLogWriter struct {
	store *SQLStore
}

// NewOperationLogWriter creates a writer on the same connection as store.
func NewOperationLogWriter(store *SQLStore) *OperationLogWriter {
	return &OperationLogWriter{store: store}
}

// Write implements port.OperationLogWriter.
func (w *OperationLogWriter) Write(ctx context.Context, entry port.OperationLogEntry) error {
	executor, err := w.store.getTxExecutor(ctx)
	if err != nil {
		return err
	}

	operationID := model.NewID()
	properties := entry.Properties
	if len(properties) == 0 {
		properties = []model.PropertyChange{{}}
	}
	for _, p := range properties {
		row := &OperationLogEntity{
			ID:          model.NewID(),
			OperationID: operationID,
			Operation:   entry.Operation,
			EntityType:  entry.EntityType,
			BatchID:     entry.BatchID,
			UserID:      entry.UserID,
			LogTime:     utc(entry.Timestamp),
			Property:    p.Name,
			OrgValue:    formatValue(p.OrgValue),
			NewValue:    formatValue(p.NewValue),
		}
		if _, err := executor.ExecuteUpdate(ctx, row, database.OperationCreate, row.TableName(), nil); err != nil {
			return wrap(executor, err, "failed to write %s operation log of batch %s", entry.Operation, entry.BatchID)
		}
	}
	return nil
}

// FindByBatchID returns the rows logged for a batch in log order.
func (w *OperationLogWriter) FindByBatchID(ctx context.Context, batchID string) ([]OperationLogEntity, error) {
	executor, err := w.store.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}
	var rows []OperationLogEntity
	if err := executor.ExecuteQueryAdvanced(ctx, &rows, map[string]interface{}{"batch_id": batchID}, "log_time, operation_id, property", 0); err != nil {
		return nil, wrap(executor, err, "failed to read operation log of batch %s", batchID)
	}
	return rows, nil
}

func formatValue(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

var _ port.OperationLogWriter = (*OperationLogWriter)(nil)
