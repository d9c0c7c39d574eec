// Package tx defines the transaction abstraction shared by every store implementation.
// The active transaction travels in the context; repositories join it when present.
package tx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Tx is an ongoing transaction.
type Tx interface {
	// Savepoint marks a point the transaction can later roll back to.
	Savepoint(name string) error
	// RollbackToSavepoint discards every change made after the named savepoint.
	RollbackToSavepoint(name string) error
}

// TransactionManager begins and ends transactions on one store.
type TransactionManager interface {
	Begin(ctx context.Context, opts ...*sql.TxOptions) (Tx, error)
	Commit(tx Tx) error
	Rollback(tx Tx) error
}

type contextKey struct{}

// WithTx returns a copy of ctx carrying t.
func WithTx(ctx context.Context, t Tx) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext returns the transaction carried by ctx, if any.
func FromContext(ctx context.Context) (Tx, bool) {
	t, ok := ctx.Value(contextKey{}).(Tx)
	return t, ok
}

type hooksKey struct{}

type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// OnCommit registers fn to run once the transaction started by the enclosing Run commits.
// fn is dropped when that transaction rolls back. Outside of Run, fn runs immediately.
func OnCommit(ctx context.Context, fn func()) {
	hooks, ok := ctx.Value(hooksKey{}).(*commitHooks)
	if !ok {
		fn()
		return
	}
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	hooks.fns = append(hooks.fns, fn)
}

// Run executes fn inside a transaction. When ctx already carries a transaction fn joins it
// and the outer caller decides the outcome. Otherwise a new transaction is begun, committed
// when fn returns nil and rolled back when fn returns an error or panics.
func Run(ctx context.Context, tm TransactionManager, fn func(ctx context.Context) error) (err error) {
	if _, ok := FromContext(ctx); ok {
		return fn(ctx)
	}

	t, err := tm.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tm.Rollback(t)
			panic(p)
		}
	}()

	hooks := &commitHooks{}
	txCtx := context.WithValue(WithTx(ctx, t), hooksKey{}, hooks)
	if err = fn(txCtx); err != nil {
		if rbErr := tm.Rollback(t); rbErr != nil {
			return multierror.Append(err, fmt.Errorf("rollback failed: %w", rbErr))
		}
		return err
	}

	if err = tm.Commit(t); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	hooks.mu.Lock()
	fns := hooks.fns
	hooks.mu.Unlock()
	for _, f := range fns {
		f()
	}
	return nil
}

// ErrNoTransaction is returned by operations that require an active transaction.
var ErrNoTransaction = errors.New("no active transaction in context")
