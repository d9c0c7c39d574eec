// Package migration applies the schema of the SQL store with golang-migrate.
// The DDL for every supported database type is embedded in the binary.
package migration

import (
	"context"
	"io/fs"
)

// SchemaMigrationsTable tracks the applied schema versions.
const SchemaMigrationsTable = "bulkop_schema_migrations"

// Migrator handles database schema migrations.
type Migrator interface {
	// Up applies all pending migrations found under path in migrationFS.
	// tableName is the table tracking the migration history.
	Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// Down rolls back all applied migrations.
	Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
	// Version returns the current schema version and whether the last migration left it dirty.
	Version(migrationFS fs.FS, path string, tableName string) (uint, bool, error)
}
