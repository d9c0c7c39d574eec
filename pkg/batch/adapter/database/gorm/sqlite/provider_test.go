package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/bulkop/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/bulkop/pkg/batch/core/config"
)

func TestConnectionString(t *testing.T) {
	assert.Equal(t, "bulkop.db", sqlite.ConnectionString(dbconfig.DatabaseConfig{Database: "bulkop.db"}))
	assert.Equal(t, "bulkop.db?_busy_timeout=5000&_foreign_keys=on", sqlite.ConnectionString(dbconfig.DatabaseConfig{
		Database: "bulkop.db",
		Params:   map[string]string{"_foreign_keys": "on", "_busy_timeout": "5000"},
	}))
	assert.Equal(t, "file::memory:?cache=shared&_busy_timeout=5000", sqlite.ConnectionString(dbconfig.DatabaseConfig{
		Database: "file::memory:?cache=shared",
		Params:   map[string]string{"_busy_timeout": "5000"},
	}))
}

func TestResolver_OpensAndCachesConnection(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Bulkop.DatabaseConfigs = map[string]interface{}{
		"metadata": map[string]interface{}{
			"type":     "sqlite",
			"database": filepath.Join(t.TempDir(), "bulkop.db"),
			"params":   map[string]interface{}{"_busy_timeout": 5000},
			"pool":     map[string]interface{}{"max_open_conns": "1"},
		},
		"reporting": map[string]interface{}{"type": "postgres"},
	}
	resolver := gormadapter.NewGormDBConnectionResolver(gormadapter.ResolverParams{
		DBProviders: []database.DBProvider{sqlite.NewProvider(cfg)},
		Cfg:         cfg,
	})
	t.Cleanup(func() { _ = resolver.CloseAll() })
	ctx := context.Background()

	conn, err := resolver.ResolveDBConnection(ctx, "metadata")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", conn.Type())
	assert.Equal(t, "metadata", conn.Name())
	assert.Equal(t, "5000", conn.Config().Params["_busy_timeout"])
	assert.Equal(t, 1, conn.Config().Pool.MaxOpenConns)

	again, err := resolver.ResolveDBConnection(ctx, "metadata")
	require.NoError(t, err)
	assert.Same(t, conn, again)

	_, err = resolver.ResolveDBConnection(ctx, "reporting")
	assert.ErrorContains(t, err, "DBProvider for type 'postgres' not found")

	_, err = resolver.ResolveDBConnection(ctx, "missing")
	assert.ErrorContains(t, err, "not found under bulkop.database")
}
