package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/storage"
	"github.com/tigerroll/bulkop/pkg/batch/adapter/storage/local"
	coreConfig "github.com/tigerroll/bulkop/pkg/batch/core/config"
)

func TestConnectionResolver(t *testing.T) {
	cfg := coreConfig.NewConfig()
	cfg.Bulkop.StorageConfigs = map[string]interface{}{
		"exports": map[string]interface{}{"type": "local", "base_dir": t.TempDir()},
		"s3":      map[string]interface{}{"type": "s3"},
		"untyped": map[string]interface{}{"bucket_name": "b"},
	}
	r := storage.NewConnectionResolver([]storage.StorageProvider{local.NewLocalProvider(cfg)}, cfg)
	ctx := context.Background()

	conn, err := r.ResolveStorageConnection(ctx, "exports")
	require.NoError(t, err)
	assert.Equal(t, "exports", conn.Name())

	generic, err := r.ResolveConnection(ctx, "exports")
	require.NoError(t, err)
	assert.Equal(t, "local", generic.Type())

	_, err = r.ResolveStorageConnection(ctx, "s3")
	assert.ErrorContains(t, err, "no storage provider found for type 's3'")

	_, err = r.ResolveStorageConnection(ctx, "untyped")
	assert.ErrorContains(t, err, "has no type")

	_, err = r.ResolveStorageConnection(ctx, "missing")
	assert.ErrorContains(t, err, "not found")

	assert.NoError(t, r.CloseAll())
}
