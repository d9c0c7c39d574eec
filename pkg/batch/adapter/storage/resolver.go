package storage

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	storageConfig "github.com/tigerroll/bulkop/pkg/batch/adapter/storage/config"
	coreAdapter "github.com/tigerroll/bulkop/pkg/batch/core/adapter"
	coreConfig "github.com/tigerroll/bulkop/pkg/batch/core/config"
)

// ConnectionResolver dispatches a connection name to the provider of its configured type.
type ConnectionResolver struct {
	providers map[string]StorageProvider
	configs   map[string]interface{}
}

// NewConnectionResolver creates a resolver over providers, keyed by their Type.
func NewConnectionResolver(providers []StorageProvider, cfg *coreConfig.Config) *ConnectionResolver {
	byType := make(map[string]StorageProvider, len(providers))
	for _, p := range providers {
		byType[p.Type()] = p
	}
	return &ConnectionResolver{providers: byType, configs: cfg.Bulkop.StorageConfigs}
}

// ResolveConnection resolves a generic resource connection by name.
func (r *ConnectionResolver) ResolveConnection(ctx context.Context, name string) (coreAdapter.ResourceConnection, error) {
	return r.ResolveStorageConnection(ctx, name)
}

// ResolveStorageConnection resolves a StorageConnection by name.
func (r *ConnectionResolver) ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error) {
	cfg, err := storageConfig.Lookup(r.configs, name)
	if err != nil {
		return nil, err
	}
	provider, ok := r.providers[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider found for type '%s' (connection '%s')", cfg.Type, name)
	}
	conn, err := provider.GetConnection(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage connection '%s' from provider '%s': %w", name, cfg.Type, err)
	}
	return conn, nil
}

// CloseAll closes the connections of every provider.
func (r *ConnectionResolver) CloseAll() error {
	var result *multierror.Error
	for _, p := range r.providers {
		if err := p.CloseAll(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

var _ StorageConnectionResolver = (*ConnectionResolver)(nil)

type resolverParams struct {
	fx.In
	Providers []StorageProvider `group:"storage_providers"`
	Cfg       *coreConfig.Config
}

func provideResolver(lc fx.Lifecycle, p resolverParams) StorageConnectionResolver {
	r := NewConnectionResolver(p.Providers, p.Cfg)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.CloseAll()
		},
	})
	return r
}

// Module provides the StorageConnectionResolver. Backend modules contribute the providers.
var Module = fx.Options(
	fx.Provide(provideResolver),
)
