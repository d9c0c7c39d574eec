package inmemory

import (
	"context"
	"database/sql"
	"fmt"

	tx "github.com/tigerroll/bulkop/pkg/batch/core/tx"
)

type memTx struct {
	store      *InMemoryStore
	working    *state
	savepoints map[string]*state
	done       bool
}

// Savepoint snapshots the working state of the transaction under name.
func (t *memTx) Savepoint(name string) error {
	if t.done {
		return tx.ErrNoTransaction
	}
	t.savepoints[name] = t.working.clone()
	return nil
}

// RollbackToSavepoint restores the snapshot taken by Savepoint(name).
func (t *memTx) RollbackToSavepoint(name string) error {
	if t.done {
		return tx.ErrNoTransaction
	}
	snapshot, ok := t.savepoints[name]
	if !ok {
		return fmt.Errorf("savepoint '%s' does not exist", name)
	}
	// The savepoint stays valid, as it does in SQL.
	t.working = snapshot.clone()
	return nil
}

// TransactionManager manages transactions of an InMemoryStore.
type TransactionManager struct {
	store *InMemoryStore
}

// NewTransactionManager creates a transaction manager for store.
func NewTransactionManager(store *InMemoryStore) *TransactionManager {
	return &TransactionManager{store: store}
}

// Begin blocks until no other transaction of the store is active. Options are ignored.
func (m *TransactionManager) Begin(ctx context.Context, _ ...*sql.TxOptions) (tx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.store.mu.Lock()
	return &memTx{
		store:      m.store,
		working:    m.store.committed.clone(),
		savepoints: make(map[string]*state),
	}, nil
}

// Commit publishes the working state of t and releases the store.
func (m *TransactionManager) Commit(t tx.Tx) error {
	mt, err := m.own(t)
	if err != nil {
		return err
	}
	m.store.committed = mt.working
	mt.done = true
	m.store.mu.Unlock()
	return nil
}

// Rollback discards the working state of t and releases the store.
func (m *TransactionManager) Rollback(t tx.Tx) error {
	mt, err := m.own(t)
	if err != nil {
		return err
	}
	mt.done = true
	m.store.mu.Unlock()
	return nil
}

func (m *TransactionManager) own(t tx.Tx) (*memTx, error) {
	mt, ok := t.(*memTx)
	if !ok || mt.store != m.store {
		return nil, fmt.Errorf("transaction %T does not belong to this store", t)
	}
	if mt.done {
		return nil, tx.ErrNoTransaction
	}
	return mt, nil
}

var _ tx.TransactionManager = (*TransactionManager)(nil)
