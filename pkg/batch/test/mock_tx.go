// Package test provides mocks and fixtures shared by the engine's tests.
package test

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
	tx "github.com/tigerroll/bulkop/pkg/batch/core/tx"
)

// MockTx is a mock transaction. It implements tx.Tx and database.DBExecutor,
// so SQL repositories run their statements against it when it is carried by the context.
type MockTx struct {
	mock.Mock
}

func (m *MockTx) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	args := m.Called(ctx, model, operation, tableName, query)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) ExecuteUpdateColumns(ctx context.Context, model interface{}, columns map[string]interface{}, query map[string]interface{}) (int64, error) {
	args := m.Called(ctx, model, columns, query)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error {
	return m.Called(ctx, target, query).Error(0)
}

func (m *MockTx) ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error {
	return m.Called(ctx, target, query, orderBy, limit).Error(0)
}

func (m *MockTx) ExecuteQueryWhere(ctx context.Context, target interface{}, where string, args []interface{}, orderBy string, limit int) error {
	return m.Called(ctx, target, where, args, orderBy, limit).Error(0)
}

func (m *MockTx) Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error) {
	args := m.Called(ctx, model, query)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTx) IsTableNotExistError(err error) bool {
	return false
}

func (m *MockTx) IsDuplicateKeyError(err error) bool {
	return false
}

// Savepoint mocks the Savepoint method of tx.Tx.
func (m *MockTx) Savepoint(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

// RollbackToSavepoint mocks the RollbackToSavepoint method of tx.Tx.
func (m *MockTx) RollbackToSavepoint(name string) error {
	args := m.Called(name)
	return args.Error(0)
}

// MockTxManager is a mock implementation of the tx.TransactionManager interface.
type MockTxManager struct {
	mock.Mock
}

// Begin mocks the Begin method of tx.TransactionManager.
func (m *MockTxManager) Begin(ctx context.Context, opts ...*sql.TxOptions) (tx.Tx, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(tx.Tx), args.Error(1)
}

// Commit mocks the Commit method of tx.TransactionManager.
func (m *MockTxManager) Commit(t tx.Tx) error {
	args := m.Called(t)
	return args.Error(0)
}

// Rollback mocks the Rollback method of tx.TransactionManager.
func (m *MockTxManager) Rollback(t tx.Tx) error {
	args := m.Called(t)
	return args.Error(0)
}

var (
	_ tx.Tx                 = (*MockTx)(nil)
	_ database.DBExecutor   = (*MockTx)(nil)
	_ tx.TransactionManager = (*MockTxManager)(nil)
)
