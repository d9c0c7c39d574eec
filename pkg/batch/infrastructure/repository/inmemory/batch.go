package inmemory

import (
	"context"
	"fmt"
	"sort"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
)

// SaveBatch persists a new Batch.
// It returns an error if a Batch with the same ID already exists.
func (r *InMemoryStore) SaveBatch(ctx context.Context, batch *model.Batch) error {
	return r.write(ctx, func(s *state) error {
		if _, exists := s.batches[batch.ID]; exists {
			return fmt.Errorf("batch with ID %s already exists", batch.ID)
		}
		s.batches[batch.ID] = batch.Clone()
		return nil
	})
}

// UpdateBatch updates an existing Batch using optimistic locking.
func (r *InMemoryStore) UpdateBatch(ctx context.Context, batch *model.Batch) error {
	return r.write(ctx, func(s *state) error {
		stored, exists := s.batches[batch.ID]
		if !exists {
			return fmt.Errorf("%w: %s", exception.ErrBatchNotFound, batch.ID)
		}
		if stored.Version != batch.Version {
			return exception.NewOptimisticLockingFailureException("inmemory",
				fmt.Sprintf("batch %s was modified concurrently (expected version %d, found %d)", batch.ID, batch.Version, stored.Version), nil)
		}
		batch.Version++
		s.batches[batch.ID] = batch.Clone()
		return nil
	})
}

// FindBatchByID returns a copy of the Batch with the given ID.
func (r *InMemoryStore) FindBatchByID(ctx context.Context, id string) (*model.Batch, error) {
	var found *model.Batch
	err := r.read(ctx, func(s *state) error {
		b, ok := s.batches[id]
		if !ok {
			return fmt.Errorf("%w: %s", exception.ErrBatchNotFound, id)
		}
		found = b.Clone()
		return nil
	})
	return found, err
}

// FindBatches returns the batches matching filter, oldest first.
func (r *InMemoryStore) FindBatches(ctx context.Context, filter model.BatchFilter) ([]*model.Batch, error) {
	var batches []*model.Batch
	err := r.read(ctx, func(s *state) error {
		for _, b := range s.batches {
			if filter.Matches(b) {
				batches = append(batches, b.Clone())
			}
		}
		return nil
	})
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].StartTime.Equal(batches[j].StartTime) {
			return batches[i].ID < batches[j].ID
		}
		return batches[i].StartTime.Before(batches[j].StartTime)
	})
	return batches, err
}

// DeleteBatch removes a Batch. Deleting a missing Batch is not an error.
func (r *InMemoryStore) DeleteBatch(ctx context.Context, id string) error {
	return r.write(ctx, func(s *state) error {
		delete(s.batches, id)
		return nil
	})
}

// SaveHistoricBatch persists a new HistoricBatch.
func (r *InMemoryStore) SaveHistoricBatch(ctx context.Context, batch *model.HistoricBatch) error {
	return r.write(ctx, func(s *state) error {
		if _, exists := s.historic[batch.ID]; exists {
			return fmt.Errorf("historic batch with ID %s already exists", batch.ID)
		}
		s.historic[batch.ID] = batch.Clone()
		return nil
	})
}

// UpdateHistoricBatch replaces an existing HistoricBatch.
func (r *InMemoryStore) UpdateHistoricBatch(ctx context.Context, batch *model.HistoricBatch) error {
	return r.write(ctx, func(s *state) error {
		if _, exists := s.historic[batch.ID]; !exists {
			return fmt.Errorf("%w: historic %s", exception.ErrBatchNotFound, batch.ID)
		}
		s.historic[batch.ID] = batch.Clone()
		return nil
	})
}

// FindHistoricBatchByID returns a copy of the historic batch or an error wrapping
// exception.ErrBatchNotFound.
func (r *InMemoryStore) FindHistoricBatchByID(ctx context.Context, id string) (*model.HistoricBatch, error) {
	var found *model.HistoricBatch
	err := r.read(ctx, func(s *state) error {
		h, ok := s.historic[id]
		if !ok {
			return fmt.Errorf("%w: historic %s", exception.ErrBatchNotFound, id)
		}
		found = h.Clone()
		return nil
	})
	return found, err
}

// FindHistoricBatches returns copies of the historic batches ordered by start time.
func (r *InMemoryStore) FindHistoricBatches(ctx context.Context, finishedOnly bool) ([]*model.HistoricBatch, error) {
	var result []*model.HistoricBatch
	err := r.read(ctx, func(s *state) error {
		for _, h := range s.historic {
			if finishedOnly && h.EndTime == nil {
				continue
			}
			result = append(result, h.Clone())
		}
		return nil
	})
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, err
}

// DeleteHistoricBatch removes the historic batch. Missing ids are ignored.
func (r *InMemoryStore) DeleteHistoricBatch(ctx context.Context, id string) error {
	return r.write(ctx, func(s *state) error {
		delete(s.historic, id)
		return nil
	})
}
