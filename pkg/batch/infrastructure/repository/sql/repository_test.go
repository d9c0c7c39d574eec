package sql_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/bulkop/pkg/batch/core/tx"
	sqlstore "github.com/tigerroll/bulkop/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
	testutil "github.com/tigerroll/bulkop/pkg/batch/test"
)

func newMockedStore(t *testing.T) (*sqlstore.SQLStore, *testutil.MockTx, context.Context) {
	resolver := new(testutil.MockDBConnectionResolver)
	t.Cleanup(func() { resolver.AssertNotCalled(t, "ResolveDBConnection", mock.Anything, mock.Anything) })
	mockTx := new(testutil.MockTx)
	return sqlstore.NewSQLStore(resolver, "metadata"), mockTx, tx.WithTx(context.Background(), mockTx)
}

func TestUpdateBatch_VersionMismatch(t *testing.T) {
	store, mockTx, ctx := newMockedStore(t)
	batch := model.NewBatch("set-variables", 4, 2, 1, testutil.Epoch)
	batch.Version = 2

	mockTx.On("ExecuteUpdate", ctx, mock.AnythingOfType("*sql.BatchEntity"), "UPDATE", sqlstore.TableBatch,
		map[string]interface{}{"version": 2}).Return(int64(0), nil)
	mockTx.On("ExecuteQueryAdvanced", ctx, mock.Anything, map[string]interface{}{"id": batch.ID}, "", 1).
		Run(func(args mock.Arguments) {
			target := args.Get(1).(*[]sqlstore.BatchEntity)
			*target = append(*target, sqlstore.BatchEntity{ID: batch.ID, Version: 5})
		}).Return(nil)

	err := store.UpdateBatch(ctx, batch)

	assert.ErrorIs(t, err, exception.ErrOptimisticLockingFailure)
	assert.Contains(t, err.Error(), "found 5")
	assert.Equal(t, 2, batch.Version)
	mockTx.AssertExpectations(t)
}

func TestUpdateJob_MissingRow(t *testing.T) {
	store, mockTx, ctx := newMockedStore(t)
	job := model.NewJob(model.JobTypeBatch, "def", "batch", 3, testutil.Epoch)

	mockTx.On("ExecuteUpdate", ctx, mock.AnythingOfType("*sql.JobEntity"), "UPDATE", sqlstore.TableJob,
		map[string]interface{}{"version": 0}).Return(int64(0), nil)
	mockTx.On("ExecuteQueryAdvanced", ctx, mock.Anything, map[string]interface{}{"id": job.ID}, "", 1).Return(nil)

	err := store.UpdateJob(ctx, job)

	assert.ErrorIs(t, err, exception.ErrJobNotFound)
	assert.Equal(t, 0, job.Version)
}

func TestUpdateJob_IncrementsVersion(t *testing.T) {
	store, mockTx, ctx := newMockedStore(t)
	job := model.NewJob(model.JobTypeBatch, "def", "batch", 3, testutil.Epoch)
	job.Version = 4

	mockTx.On("ExecuteUpdate", ctx, mock.MatchedBy(func(e *sqlstore.JobEntity) bool { return e.Version == 5 }),
		"UPDATE", sqlstore.TableJob, map[string]interface{}{"version": 4}).Return(int64(1), nil)

	require.NoError(t, store.UpdateJob(ctx, job))
	assert.Equal(t, 5, job.Version)
}

func TestSaveBatch_WrapsDatabaseError(t *testing.T) {
	store, mockTx, ctx := newMockedStore(t)
	cause := errors.New("disk I/O error")
	mockTx.On("ExecuteUpdate", ctx, mock.Anything, "CREATE", sqlstore.TableBatch, map[string]interface{}(nil)).
		Return(int64(0), cause)

	err := store.SaveBatch(ctx, model.NewBatch("set-variables", 1, 1, 1, testutil.Epoch))

	var batchErr *exception.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.ErrorIs(t, err, cause)
	assert.True(t, batchErr.IsRetryable())
}

func TestOperationLogWriter_OneRowPerProperty(t *testing.T) {
	store, mockTx, ctx := newMockedStore(t)
	writer := sqlstore.NewOperationLogWriter(store)

	var rows []*sqlstore.OperationLogEntity
	mockTx.On("ExecuteUpdate", ctx, mock.Anything, "CREATE", sqlstore.TableOperationLog, map[string]interface{}(nil)).
		Run(func(args mock.Arguments) { rows = append(rows, args.Get(1).(*sqlstore.OperationLogEntity)) }).
		Return(int64(1), nil)

	err := writer.Write(ctx, port.OperationLogEntry{
		Operation:  model.OperationCreate,
		EntityType: "Batch",
		BatchID:    "b-1",
		UserID:     "demo",
		Timestamp:  testutil.Epoch,
		Properties: []model.PropertyChange{
			{Name: "nrOfInstances", NewValue: 12},
			{Name: "async", NewValue: true},
		},
	})

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, rows[0].OperationID, rows[1].OperationID)
	assert.NotEqual(t, rows[0].ID, rows[1].ID)
	assert.Equal(t, "nrOfInstances", rows[0].Property)
	assert.Equal(t, "12", rows[0].NewValue)
	assert.Equal(t, "", rows[0].OrgValue)
	assert.Equal(t, "true", rows[1].NewValue)
}
