package migration_test

import (
	"context"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/tigerroll/bulkop/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm"
	_ "github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/bulkop/pkg/batch/component/migration"
	"github.com/tigerroll/bulkop/pkg/batch/core/config"
	testutil "github.com/tigerroll/bulkop/pkg/batch/test"
)

func openSQLite(t *testing.T) *gormadapter.GormDBAdapter {
	t.Helper()
	cfg := dbconfig.DatabaseConfig{Type: "sqlite", Database: filepath.Join(t.TempDir(), "bulkop.db")}
	db, err := gormadapter.Open(cfg)
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, cfg, "metadata")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func tableExists(t *testing.T, conn *gormadapter.GormDBAdapter, table string) bool {
	var count int64
	err := conn.GetGormDB().Raw("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&count).Error
	require.NoError(t, err)
	return count == 1
}

func TestSchemaFS_HasEveryDialect(t *testing.T) {
	for _, dbType := range []string{"sqlite", "postgres", "mysql"} {
		path, err := migration.SchemaPath(dbType)
		require.NoError(t, err)
		files, err := fs.Glob(migration.SchemaFS(), path+"/*.sql")
		require.NoError(t, err)
		assert.Len(t, files, 2, dbType)
	}

	path, err := migration.SchemaPath("redshift")
	require.NoError(t, err)
	assert.Equal(t, "postgres", path)

	_, err = migration.SchemaPath("oracle")
	assert.Error(t, err)
}

func TestMigrator_UpAndDown(t *testing.T) {
	conn := openSQLite(t)
	m := migration.NewMigrator(conn)
	ctx := context.Background()

	version, _, err := m.Version(migration.SchemaFS(), "sqlite", migration.SchemaMigrationsTable)
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, m.Up(ctx, migration.SchemaFS(), "sqlite", migration.SchemaMigrationsTable))
	require.NoError(t, m.Up(ctx, migration.SchemaFS(), "sqlite", migration.SchemaMigrationsTable), "no change is not an error")
	for _, table := range []string{"bulkop_batch", "bulkop_historic_batch", "bulkop_job_definition", "bulkop_job", "bulkop_byte_array", "bulkop_operation_log"} {
		assert.True(t, tableExists(t, conn, table), table)
	}

	version, dirty, err := m.Version(migration.SchemaFS(), "sqlite", migration.SchemaMigrationsTable)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, m.Down(ctx, migration.SchemaFS(), "sqlite", migration.SchemaMigrationsTable))
	assert.False(t, tableExists(t, conn, "bulkop_job"))
	assert.NoError(t, conn.Ping(ctx), "the shared connection stays open")
}

func TestSchemaRunner_UsesStoreConnection(t *testing.T) {
	conn := openSQLite(t)
	cfg := config.NewConfig()
	runner := migration.NewSchemaRunner(migration.SchemaRunnerParams{
		DBResolver: testutil.NewTestSingleConnectionResolver(conn),
		Cfg:        cfg,
	})
	ctx := context.Background()

	require.NoError(t, runner.Up(ctx))
	version, _, err := runner.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.True(t, tableExists(t, conn, "bulkop_batch"))
}
