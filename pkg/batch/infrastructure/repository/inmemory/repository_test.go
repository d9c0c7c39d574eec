package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	tx "github.com/tigerroll/bulkop/pkg/batch/core/tx"
	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestInMemoryStore_TransactionIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	tm := NewTransactionManager(store)
	batch := model.NewBatch("set-variables", 1, 1, 1, now)

	err := tx.Run(ctx, tm, func(ctx context.Context) error {
		require.NoError(t, store.SaveBatch(ctx, batch))
		_, err := store.FindBatchByID(ctx, batch.ID)
		require.NoError(t, err, "visible inside the transaction")
		return errors.New("abort")
	})
	require.Error(t, err)

	_, err = store.FindBatchByID(ctx, batch.ID)
	assert.True(t, errors.Is(err, exception.ErrBatchNotFound), "rolled back")

	require.NoError(t, tx.Run(ctx, tm, func(ctx context.Context) error {
		return store.SaveBatch(ctx, batch)
	}))
	_, err = store.FindBatchByID(ctx, batch.ID)
	assert.NoError(t, err)
}

func TestInMemoryStore_Savepoint(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	tm := NewTransactionManager(store)
	kept := model.NewJob(model.JobTypeBatch, "def", "b1", 3, now)
	discarded := model.NewJob(model.JobTypeBatch, "def", "b1", 3, now)

	require.NoError(t, tx.Run(ctx, tm, func(ctx context.Context) error {
		txn, _ := tx.FromContext(ctx)
		if err := store.SaveJob(ctx, kept); err != nil {
			return err
		}
		if err := txn.Savepoint("sp"); err != nil {
			return err
		}
		if err := store.SaveJob(ctx, discarded); err != nil {
			return err
		}
		return txn.RollbackToSavepoint("sp")
	}))

	n, err := store.CountJobsByBatchID(ctx, "b1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = store.FindJobByID(ctx, discarded.ID)
	assert.True(t, errors.Is(err, exception.ErrJobNotFound))
}

func TestInMemoryStore_OptimisticLocking(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	batch := model.NewBatch("set-variables", 1, 1, 1, now)
	require.NoError(t, store.SaveBatch(ctx, batch))

	first, _ := store.FindBatchByID(ctx, batch.ID)
	second, _ := store.FindBatchByID(ctx, batch.ID)

	first.JobsCreated = 1
	require.NoError(t, store.UpdateBatch(ctx, first))
	assert.Equal(t, 1, first.Version)

	second.JobsCreated = 2
	err := store.UpdateBatch(ctx, second)
	assert.True(t, exception.IsOptimisticLockingFailure(err))
}

func TestInMemoryStore_AcquireJobsHonoursExclusivity(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	newJob := func(key string, due time.Time) *model.Job {
		j := model.NewJob(model.JobTypeBatch, "def", "b1", 3, due)
		j.ExclusivityKey = key
		require.NoError(t, store.SaveJob(ctx, j))
		return j
	}
	a1 := newJob("pi-1", now.Add(-3*time.Second))
	a2 := newJob("pi-1", now.Add(-2*time.Second))
	b := newJob("", now.Add(-time.Second))
	future := newJob("pi-2", now.Add(time.Hour))

	suspended := newJob("pi-3", now.Add(-time.Second))
	suspended.Suspended = true
	require.NoError(t, store.UpdateJob(ctx, suspended))

	req := model.AcquireRequest{LockOwner: "w1", Now: now, LockUntil: now.Add(time.Minute), MaxJobs: 10}
	jobs, err := store.AcquireJobs(ctx, req)
	require.NoError(t, err)

	var ids []string
	for _, j := range jobs {
		ids = append(ids, j.ID)
		assert.Equal(t, "w1", j.LockOwner)
	}
	assert.Equal(t, []string{a1.ID, b.ID}, ids)
	assert.NotContains(t, ids, future.ID)

	req.LockOwner = "w2"
	jobs, err = store.AcquireJobs(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, jobs, "a2 is blocked by the lock a1 holds on pi-1")

	locked, _ := store.FindJobByID(ctx, a1.ID)
	require.NoError(t, store.DeleteJob(ctx, locked.ID))
	jobs, err = store.AcquireJobs(ctx, req)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, a2.ID, jobs[0].ID)
}

func TestInMemoryStore_CountsAndSuspension(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	seed := model.NewJob(model.JobTypeSeed, "seed-def", "b1", 3, now)
	unit := model.NewJob(model.JobTypeBatch, "batch-def", "b1", 3, now)
	incident := model.NewJob(model.JobTypeBatch, "batch-def", "b1", 0, now)
	other := model.NewJob(model.JobTypeBatch, "batch-def", "b2", 3, now)
	for _, j := range []*model.Job{seed, unit, incident, other} {
		require.NoError(t, store.SaveJob(ctx, j))
	}

	n, _ := store.CountJobsByBatchID(ctx, "b1", model.JobTypeBatch)
	assert.Equal(t, 2, n)
	n, _ = store.CountJobsByBatchID(ctx, "b1", "")
	assert.Equal(t, 3, n)
	n, _ = store.CountIncidentsByBatchID(ctx, "b1")
	assert.Equal(t, 1, n)

	require.NoError(t, store.UpdateJobSuspensionState(ctx, "b1", model.JobTypeBatch, true))
	got, _ := store.FindJobByID(ctx, unit.ID)
	assert.True(t, got.Suspended)
	got, _ = store.FindJobByID(ctx, seed.ID)
	assert.False(t, got.Suspended, "seed job keeps running")
	got, _ = store.FindJobByID(ctx, other.ID)
	assert.False(t, got.Suspended)
}
