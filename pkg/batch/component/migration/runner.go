package migration

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
	"github.com/tigerroll/bulkop/pkg/batch/core/config"
)

// SchemaRunner applies the embedded schema to the store connection.
type SchemaRunner struct {
	dbResolver  database.DBConnectionResolver
	dbName      string
	newMigrator func(database.DBConnection) Migrator
}

// SchemaRunnerParams defines the dependencies of NewSchemaRunner.
type SchemaRunnerParams struct {
	fx.In
	DBResolver database.DBConnectionResolver
	Cfg        *config.Config
}

// NewSchemaRunner creates a runner for the connection named by infrastructure.store_db_ref.
func NewSchemaRunner(p SchemaRunnerParams) *SchemaRunner {
	dbName := p.Cfg.Bulkop.Infrastructure.StoreDBRef
	if dbName == "" {
		dbName = "metadata"
	}
	return &SchemaRunner{dbResolver: p.DBResolver, dbName: dbName, newMigrator: NewMigrator}
}

func (r *SchemaRunner) prepare(ctx context.Context) (Migrator, string, error) {
	conn, err := r.dbResolver.ResolveDBConnection(ctx, r.dbName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve DB connection '%s': %w", r.dbName, err)
	}
	path, err := SchemaPath(conn.Type())
	if err != nil {
		return nil, "", err
	}
	return r.newMigrator(conn), path, nil
}

// Up creates or upgrades the store schema.
func (r *SchemaRunner) Up(ctx context.Context) error {
	m, path, err := r.prepare(ctx)
	if err != nil {
		return err
	}
	return m.Up(ctx, SchemaFS(), path, SchemaMigrationsTable)
}

// Down drops every table of the store schema.
func (r *SchemaRunner) Down(ctx context.Context) error {
	m, path, err := r.prepare(ctx)
	if err != nil {
		return err
	}
	return m.Down(ctx, SchemaFS(), path, SchemaMigrationsTable)
}

// Version reports the applied schema version.
func (r *SchemaRunner) Version(ctx context.Context) (uint, bool, error) {
	m, path, err := r.prepare(ctx)
	if err != nil {
		return 0, false, err
	}
	return m.Version(SchemaFS(), path, SchemaMigrationsTable)
}
