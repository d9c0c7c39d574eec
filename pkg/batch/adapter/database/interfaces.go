// Package database defines the relational connection abstractions used by the SQL store.
package database

import (
	"context"
	"database/sql"

	dbconfig "github.com/tigerroll/bulkop/pkg/batch/adapter/database/config"
	coreAdapter "github.com/tigerroll/bulkop/pkg/batch/core/adapter"
)

// Write operations accepted by DBExecutor.ExecuteUpdate.
const (
	OperationCreate = "CREATE"
	OperationUpdate = "UPDATE"
	OperationDelete = "DELETE"
)

// DBExecutor is implemented by both a connection and a transaction, so a repository
// can run the same statements with or without an enclosing transaction.
type DBExecutor interface {
	// ExecuteUpdate performs a write operation. For UPDATE every column of model is written,
	// restricted by the primary key of model and query.
	ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteUpdateColumns sets columns on every row of model's table matching query.
	ExecuteUpdateColumns(ctx context.Context, model interface{}, columns map[string]interface{}, query map[string]interface{}) (rowsAffected int64, err error)

	// ExecuteQuery loads every row matching query into target.
	ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error

	// ExecuteQueryAdvanced executes a read with optional ordering and limit. A limit <= 0 means no limit.
	ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error

	// ExecuteQueryWhere executes a read with a raw condition, for predicates a map cannot express.
	ExecuteQueryWhere(ctx context.Context, target interface{}, where string, args []interface{}, orderBy string, limit int) error

	// Count counts the rows of model's table matching query.
	Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error)

	// IsTableNotExistError reports whether err was caused by a missing table.
	IsTableNotExistError(err error) bool
	// IsDuplicateKeyError reports whether err was caused by a unique constraint.
	IsDuplicateKeyError(err error) bool
}

// DBConnection is a named database connection.
type DBConnection interface {
	coreAdapter.ResourceConnection
	DBExecutor

	// Config returns the settings the connection was opened with.
	Config() dbconfig.DatabaseConfig
	// GetSQLDB returns the underlying *sql.DB.
	GetSQLDB() (*sql.DB, error)
}

// DBConnectionResolver resolves database connections by name.
type DBConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver

	// ResolveDBConnection returns a healthy connection, re-establishing it if its ping fails.
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProvider opens and caches connections of a single database type.
type DBProvider interface {
	// GetConnection returns the connection with the given name, opening it on first use.
	GetConnection(name string) (DBConnection, error)
	// ForceReconnect closes and reopens the connection with the given name.
	ForceReconnect(name string) (DBConnection, error)
	// CloseAll closes every connection opened by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider (e.g., "sqlite").
	Type() string
}

// DBProviderGroup is the fx value group of all DBProvider implementations.
const DBProviderGroup = "db_providers"
