package sql_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/tigerroll/bulkop/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/bulkop/pkg/batch/component/migration"
	"github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/bulkop/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/bulkop/pkg/batch/core/tx"
	sqlstore "github.com/tigerroll/bulkop/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
	testutil "github.com/tigerroll/bulkop/pkg/batch/test"
)

// newSQLiteStore opens a migrated SQLite database in a temporary directory.
func newSQLiteStore(t *testing.T) (*sqlstore.SQLStore, tx.TransactionManager) {
	t.Helper()
	cfg := dbconfig.DatabaseConfig{
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), "bulkop.db"),
		Params:   map[string]string{"_busy_timeout": "5000"},
		Pool:     dbconfig.PoolConfig{MaxOpenConns: 1},
	}
	db, err := gormadapter.Open(cfg)
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, cfg, "metadata")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	err = migration.NewMigrator(conn).Up(context.Background(), migration.SchemaFS(), "sqlite", migration.SchemaMigrationsTable)
	require.NoError(t, err)

	resolver := testutil.NewTestSingleConnectionResolver(conn)
	return sqlstore.NewSQLStore(resolver, "metadata"), gormadapter.NewGormTransactionManager(resolver, "metadata")
}

func newWorkUnit(batchID, key string, due time.Time) *model.Job {
	job := model.NewJob(model.JobTypeBatch, "def-"+batchID, batchID, 3, due)
	job.ExclusivityKey = key
	return job
}

func TestSQLStore_BatchLifecycle(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()

	batch := model.NewBatch("set-variables", 10, 5, 2, testutil.Epoch)
	batch.TenantID = "tenant-a"
	require.NoError(t, store.SaveBatch(ctx, batch))
	assert.Error(t, store.SaveBatch(ctx, batch), "duplicate id")

	found, err := store.FindBatchByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "set-variables", found.Type)
	assert.Equal(t, "tenant-a", found.TenantID)
	assert.True(t, testutil.Epoch.Equal(found.StartTime))

	found.JobsCreated = 5
	found.MaterializedUpTo = 10
	require.NoError(t, store.UpdateBatch(ctx, found))
	assert.Equal(t, 1, found.Version)

	stale := batch.Clone()
	assert.ErrorIs(t, store.UpdateBatch(ctx, stale), exception.ErrOptimisticLockingFailure)
	assert.Equal(t, 0, stale.Version)

	reloaded, err := store.FindBatchByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, reloaded.JobsCreated)
	assert.Equal(t, 10, reloaded.MaterializedUpTo)
	assert.Equal(t, 1, reloaded.Version)

	require.NoError(t, store.DeleteBatch(ctx, batch.ID))
	require.NoError(t, store.DeleteBatch(ctx, batch.ID), "idempotent")
	_, err = store.FindBatchByID(ctx, batch.ID)
	assert.ErrorIs(t, err, exception.ErrBatchNotFound)
	assert.ErrorIs(t, store.UpdateBatch(ctx, reloaded), exception.ErrBatchNotFound)
}

func TestSQLStore_FindBatchesFilter(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()

	first := model.NewBatch("set-variables", 1, 1, 1, testutil.Epoch)
	second := model.NewBatch("correlate-message", 1, 1, 1, testutil.Epoch.Add(time.Second))
	second.Suspended = true
	require.NoError(t, store.SaveBatch(ctx, second))
	require.NoError(t, store.SaveBatch(ctx, first))

	all, err := store.FindBatches(ctx, model.BatchFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID, "oldest first")

	suspended := true
	only, err := store.FindBatches(ctx, model.BatchFilter{Suspended: &suspended})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, second.ID, only[0].ID)

	byType, err := store.FindBatches(ctx, model.BatchFilter{Type: "set-variables"})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, first.ID, byType[0].ID)
}

func TestSQLStore_HistoricBatches(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()

	h := model.NewHistoricBatch(model.NewBatch("set-variables", 3, 1, 1, testutil.Epoch))
	require.NoError(t, store.SaveHistoricBatch(ctx, h))

	finished, err := store.FindHistoricBatches(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, finished)

	end := testutil.Epoch.Add(time.Minute)
	h.EndTime = &end
	require.NoError(t, store.UpdateHistoricBatch(ctx, h))

	finished, err = store.FindHistoricBatches(ctx, true)
	require.NoError(t, err)
	require.Len(t, finished, 1)
	require.NotNil(t, finished[0].EndTime)
	assert.True(t, end.Equal(*finished[0].EndTime))

	require.NoError(t, store.DeleteHistoricBatch(ctx, h.ID))
	_, err = store.FindHistoricBatchByID(ctx, h.ID)
	assert.ErrorIs(t, err, exception.ErrBatchNotFound)
	assert.ErrorIs(t, store.UpdateHistoricBatch(ctx, h), exception.ErrBatchNotFound)
}

func TestSQLStore_JobQueries(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()

	seed := model.NewJob(model.JobTypeSeed, "seed-def", "b-1", 0, testutil.Epoch)
	units := []*model.Job{
		newWorkUnit("b-1", "", testutil.Epoch.Add(2*time.Second)),
		newWorkUnit("b-1", "", testutil.Epoch.Add(time.Second)),
	}
	units[0].CreateTime = testutil.Epoch.Add(2 * time.Second)
	units[1].CreateTime = testutil.Epoch.Add(time.Second)
	units[0].Retries = 0
	other := newWorkUnit("b-2", "", testutil.Epoch)
	for _, j := range append(units, seed, other) {
		require.NoError(t, store.SaveJob(ctx, j))
	}

	jobs, err := store.FindJobsByBatchID(ctx, "b-1", model.JobTypeBatch)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, units[1].ID, jobs[0].ID, "ordered by creation time")

	all, err := store.CountJobsByBatchID(ctx, "b-1", "")
	require.NoError(t, err)
	assert.Equal(t, 3, all)

	incidents, err := store.CountIncidentsByBatchID(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, 1, incidents, "the exhausted seed job is not a work unit incident")

	require.NoError(t, store.UpdateJobSuspensionState(ctx, "b-1", model.JobTypeBatch, true))
	jobs, err = store.FindJobsByBatchID(ctx, "b-1", "")
	require.NoError(t, err)
	for _, j := range jobs {
		if j.Type == model.JobTypeBatch {
			assert.True(t, j.Suspended)
			assert.Equal(t, 1, j.Version)
		} else {
			assert.False(t, j.Suspended)
			assert.Equal(t, 0, j.Version)
		}
	}

	require.NoError(t, store.UpdateJobSuspensionState(ctx, "b-1", model.JobTypeBatch, true))
	job, err := store.FindJobByID(ctx, units[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, job.Version, "unchanged jobs keep their version")

	require.NoError(t, store.DeleteJob(ctx, job.ID))
	_, err = store.FindJobByID(ctx, job.ID)
	assert.ErrorIs(t, err, exception.ErrJobNotFound)
}

func TestSQLStore_AcquireJobsHonoursExclusivity(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()

	first := newWorkUnit("b-1", "pi-1", testutil.Epoch)
	sameKey := newWorkUnit("b-2", "pi-1", testutil.Epoch.Add(time.Second))
	otherKey := newWorkUnit("b-1", "pi-2", testutil.Epoch.Add(2*time.Second))
	suspended := newWorkUnit("b-1", "", testutil.Epoch)
	suspended.Suspended = true
	exhausted := newWorkUnit("b-1", "", testutil.Epoch)
	exhausted.Retries = 0
	future := newWorkUnit("b-1", "", testutil.Epoch.Add(time.Hour))
	for _, j := range []*model.Job{first, sameKey, otherKey, suspended, exhausted, future} {
		require.NoError(t, store.SaveJob(ctx, j))
	}

	now := testutil.Epoch.Add(time.Minute)
	req := model.AcquireRequest{LockOwner: "w1", Now: now, LockUntil: now.Add(5 * time.Minute), MaxJobs: 10}
	acquired, err := store.AcquireJobs(ctx, req)
	require.NoError(t, err)
	require.Len(t, acquired, 2)
	assert.Equal(t, first.ID, acquired[0].ID)
	assert.Equal(t, otherKey.ID, acquired[1].ID)
	for _, j := range acquired {
		assert.Equal(t, "w1", j.LockOwner)
		assert.Equal(t, 1, j.Version)
		require.NotNil(t, j.LockExpirationTime)
		assert.True(t, req.LockUntil.Equal(*j.LockExpirationTime))
	}

	req.LockOwner = "w2"
	acquired, err = store.AcquireJobs(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, acquired, "pi-1 is held by a locked job")

	require.NoError(t, store.DeleteJob(ctx, first.ID))
	acquired, err = store.AcquireJobs(ctx, req)
	require.NoError(t, err)
	require.Len(t, acquired, 1)
	assert.Equal(t, sameKey.ID, acquired[0].ID)

	later := now.Add(10 * time.Minute)
	acquired, err = store.AcquireJobs(ctx, model.AcquireRequest{LockOwner: "w3", Now: later, LockUntil: later.Add(time.Minute), MaxJobs: 10})
	require.NoError(t, err)
	assert.Len(t, acquired, 2, "expired locks are taken over")
}

func TestSQLStore_AcquireJobsRespectsMaxJobs(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()

	var jobs []*model.Job
	for i := 0; i < 3; i++ {
		j := newWorkUnit("b-1", "", testutil.Epoch.Add(time.Duration(i)*time.Second))
		require.NoError(t, store.SaveJob(ctx, j))
		jobs = append(jobs, j)
	}

	now := testutil.Epoch.Add(time.Minute)
	acquired, err := store.AcquireJobs(ctx, model.AcquireRequest{LockOwner: "w1", Now: now, LockUntil: now.Add(time.Minute), MaxJobs: 2})
	require.NoError(t, err)
	require.Len(t, acquired, 2)
	assert.Equal(t, jobs[0].ID, acquired[0].ID)
	assert.Equal(t, jobs[1].ID, acquired[1].ID)
}

func TestSQLStore_DefinitionsAndByteArrays(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()

	batchDef := model.NewJobDefinition("b-1", model.JobTypeBatch, "set-variables", "")
	seedDef := model.NewJobDefinition("b-1", model.JobTypeSeed, "", "")
	require.NoError(t, store.SaveJobDefinition(ctx, batchDef))
	require.NoError(t, store.SaveJobDefinition(ctx, seedDef))
	require.NoError(t, store.UpdateJobDefinitionSuspensionState(ctx, "b-1", model.JobTypeBatch, true))

	defs, err := store.FindJobDefinitionsByBatchID(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, model.JobTypeBatch, defs[0].JobType, "sorted by job type")
	assert.True(t, defs[0].Suspended)
	assert.Equal(t, "set-variables", defs[0].Configuration)
	assert.False(t, defs[1].Suspended)

	require.NoError(t, store.DeleteJobDefinitionsByBatchID(ctx, "b-1"))
	defs, err = store.FindJobDefinitionsByBatchID(ctx, "b-1")
	require.NoError(t, err)
	assert.Empty(t, defs)

	blob := model.NewByteArray("batch-config", []byte(`{"ids":["a"]}`), "", testutil.Epoch)
	require.NoError(t, store.SaveByteArray(ctx, blob))
	found, err := store.FindByteArrayByID(ctx, blob.ID)
	require.NoError(t, err)
	assert.Equal(t, blob.Bytes, found.Bytes)

	require.NoError(t, store.DeleteByteArray(ctx, blob.ID))
	_, err = store.FindByteArrayByID(ctx, blob.ID)
	assert.ErrorIs(t, err, repository.ErrByteArrayNotFound)
}

func TestSQLStore_TransactionRollbackAndSavepoint(t *testing.T) {
	store, tm := newSQLiteStore(t)
	ctx := context.Background()

	rolledBack := model.NewBatch("set-variables", 1, 1, 1, testutil.Epoch)
	cause := errors.New("abort")
	err := tx.Run(ctx, tm, func(ctx context.Context) error {
		require.NoError(t, store.SaveBatch(ctx, rolledBack))
		return cause
	})
	assert.ErrorIs(t, err, cause)
	_, err = store.FindBatchByID(ctx, rolledBack.ID)
	assert.ErrorIs(t, err, exception.ErrBatchNotFound)

	kept := model.NewBatch("set-variables", 1, 1, 1, testutil.Epoch)
	discarded := model.NewBatch("set-variables", 1, 1, 1, testutil.Epoch)
	err = tx.Run(ctx, tm, func(ctx context.Context) error {
		current, _ := tx.FromContext(ctx)
		if err := store.SaveBatch(ctx, kept); err != nil {
			return err
		}
		if err := current.Savepoint("before_second"); err != nil {
			return err
		}
		if err := store.SaveBatch(ctx, discarded); err != nil {
			return err
		}
		return current.RollbackToSavepoint("before_second")
	})
	require.NoError(t, err)

	_, err = store.FindBatchByID(ctx, kept.ID)
	assert.NoError(t, err)
	_, err = store.FindBatchByID(ctx, discarded.ID)
	assert.ErrorIs(t, err, exception.ErrBatchNotFound)
}

func TestOperationLogWriter_PersistsEntries(t *testing.T) {
	store, _ := newSQLiteStore(t)
	ctx := context.Background()
	writer := sqlstore.NewOperationLogWriter(store)

	require.NoError(t, writer.Write(ctx, port.OperationLogEntry{
		Operation:  model.OperationSuspend,
		EntityType: "Batch",
		BatchID:    "b-1",
		Timestamp:  testutil.Epoch,
		Properties: []model.PropertyChange{{Name: "suspensionState", NewValue: "suspended"}},
	}))
	require.NoError(t, writer.Write(ctx, port.OperationLogEntry{
		Operation: model.OperationDelete,
		BatchID:   "b-1",
		Timestamp: testutil.Epoch.Add(time.Second),
	}))

	rows, err := writer.FindByBatchID(ctx, "b-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.OperationSuspend, rows[0].Operation)
	assert.Equal(t, "suspended", rows[0].NewValue)
	assert.Equal(t, model.OperationDelete, rows[1].Operation)
	assert.Equal(t, "", rows[1].Property)
}
