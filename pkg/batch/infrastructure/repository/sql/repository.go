// Package sql implements repository.Store on a relational database through the
// database adapter, so the same code runs on SQLite, PostgreSQL and MySQL.
// Every method joins the transaction carried by the context when there is one.
package sql

import (
	"context"
	"fmt"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
	repository "github.com/tigerroll/bulkop/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/bulkop/pkg/batch/core/tx"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
)

const module = "sql_store"

// SQLStore implements repository.Store.
type SQLStore struct {
	dbResolver database.DBConnectionResolver
	// dbName is the connection name under bulkop.database (e.g., "metadata").
	dbName string
}

// NewSQLStore creates a store that runs on the connection named dbName.
func NewSQLStore(dbResolver database.DBConnectionResolver, dbName string) *SQLStore {
	return &SQLStore{dbResolver: dbResolver, dbName: dbName}
}

func (s *SQLStore) getDBConnection(ctx context.Context) (database.DBConnection, error) {
	conn, err := s.dbResolver.ResolveDBConnection(ctx, s.dbName)
	if err != nil {
		return nil, exception.NewBatchError(module, fmt.Sprintf("failed to resolve DB connection '%s'", s.dbName), err, true)
	}
	return conn, nil
}

// getTxExecutor returns the transaction carried by ctx when it can execute statements,
// and the plain connection otherwise.
func (s *SQLStore) getTxExecutor(ctx context.Context) (database.DBExecutor, error) {
	if t, ok := tx.FromContext(ctx); ok {
		if executor, ok := t.(database.DBExecutor); ok {
			return executor, nil
		}
	}
	return s.getDBConnection(ctx)
}

// wrap converts a database error into a BatchError. Missing tables get a hint since
// they nearly always mean the schema was never migrated.
func wrap(executor database.DBExecutor, err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if executor.IsTableNotExistError(err) {
		return exception.NewBatchError(module, msg+" (table missing, run 'bulkop migrate')", err, false)
	}
	return exception.NewBatchError(module, msg, err, true)
}

func (s *SQLStore) create(ctx context.Context, entity TableNamer, kind, id string) error {
	executor, err := s.getTxExecutor(ctx)
	if err != nil {
		return err
	}
	if _, err := executor.ExecuteUpdate(ctx, entity, database.OperationCreate, entity.TableName(), nil); err != nil {
		if executor.IsDuplicateKeyError(err) {
			return exception.NewBatchError(module, fmt.Sprintf("%s with ID %s already exists", kind, id), err, false)
		}
		return wrap(executor, err, "failed to save %s (ID: %s)", kind, id)
	}
	return nil
}

func (s *SQLStore) deleteWhere(ctx context.Context, entity TableNamer, query map[string]interface{}) error {
	executor, err := s.getTxExecutor(ctx)
	if err != nil {
		return err
	}
	if _, err := executor.ExecuteUpdate(ctx, entity, database.OperationDelete, entity.TableName(), query); err != nil {
		return wrap(executor, err, "failed to delete from %s", entity.TableName())
	}
	return nil
}

// findOne loads the single row matching query into target, a pointer to an entity slice.
// It reports false when no row matched.
func (s *SQLStore) findOne(ctx context.Context, target interface{}, query map[string]interface{}, count func() int) (bool, error) {
	executor, err := s.getTxExecutor(ctx)
	if err != nil {
		return false, err
	}
	if err := executor.ExecuteQueryAdvanced(ctx, target, query, "", 1); err != nil {
		return false, wrap(executor, err, "failed to query %v", query)
	}
	return count() > 0, nil
}

// TableNamer is implemented by every entity of the store.
type TableNamer interface {
	TableName() string
}

// Close implements repository.Store. Connections belong to their DBProvider, which closes them on shutdown.
func (s *SQLStore) Close() error {
	return nil
}

var _ repository.Store = (*SQLStore)(nil)
