// Package inmemory provides an in-memory implementation of the repository.Store interface
// together with a transaction manager for it. Everything lives in maps, so it suits tests
// and single process deployments where durability is not required.
//
// A transaction works on a private copy of the data and holds the store's write lock
// until it ends, so transactions are serializable. Savepoints are snapshots of that copy.
package inmemory

import (
	"context"
	"sync"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/bulkop/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/bulkop/pkg/batch/core/tx"
)

type state struct {
	batches     map[string]*model.Batch
	historic    map[string]*model.HistoricBatch
	definitions map[string]*model.JobDefinition
	jobs        map[string]*model.Job
	byteArrays  map[string]*model.ByteArray
}

func newState() *state {
	return &state{
		batches:     make(map[string]*model.Batch),
		historic:    make(map[string]*model.HistoricBatch),
		definitions: make(map[string]*model.JobDefinition),
		jobs:        make(map[string]*model.Job),
		byteArrays:  make(map[string]*model.ByteArray),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, b := range s.batches {
		c.batches[id] = b.Clone()
	}
	for id, h := range s.historic {
		c.historic[id] = h.Clone()
	}
	for id, d := range s.definitions {
		c.definitions[id] = d.Clone()
	}
	for id, j := range s.jobs {
		c.jobs[id] = j.Clone()
	}
	// Byte arrays are immutable once saved.
	for id, b := range s.byteArrays {
		c.byteArrays[id] = b
	}
	return c
}

// InMemoryStore is an in-memory implementation of repository.Store.
type InMemoryStore struct {
	mu        sync.RWMutex
	committed *state
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{committed: newState()}
}

// read runs fn against the transaction's copy when ctx carries a transaction of this
// store, and against the committed data under a read lock otherwise.
func (r *InMemoryStore) read(ctx context.Context, fn func(s *state) error) error {
	if t, ok := r.txFrom(ctx); ok {
		return fn(t.working)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(r.committed)
}

// write runs fn against the transaction's copy, or directly against the committed
// data under the write lock when there is no transaction.
func (r *InMemoryStore) write(ctx context.Context, fn func(s *state) error) error {
	if t, ok := r.txFrom(ctx); ok {
		return fn(t.working)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.committed)
}

func (r *InMemoryStore) txFrom(ctx context.Context) (*memTx, bool) {
	t, ok := tx.FromContext(ctx)
	if !ok {
		return nil, false
	}
	mt, ok := t.(*memTx)
	if !ok || mt.store != r || mt.done {
		return nil, false
	}
	return mt, true
}

// Close releases resources used by the repository.
// As an in-memory repository, it holds no external resources, so this method always returns nil.
func (r *InMemoryStore) Close() error {
	return nil
}

var _ repository.Store = (*InMemoryStore)(nil)

// Counts reports how many entities of each kind the store holds.
type Counts struct {
	Batches         int
	HistoricBatches int
	JobDefinitions  int
	Jobs            int
	ByteArrays      int
}

// Counts returns the committed entity counts.
func (r *InMemoryStore) Counts() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.committed
	return Counts{
		Batches:         len(s.batches),
		HistoricBatches: len(s.historic),
		JobDefinitions:  len(s.definitions),
		Jobs:            len(s.jobs),
		ByteArrays:      len(s.byteArrays),
	}
}
