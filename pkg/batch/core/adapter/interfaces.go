// Package adapter defines the connection abstractions shared by the database and storage adapters.
package adapter

import (
	"context"
)

// ResourceConnection is a named, closable connection to an external resource.
type ResourceConnection interface {
	// Close releases the connection.
	Close() error
	// Type returns the resource type (e.g., "sqlite", "postgres", "gcs", "local").
	Type() string
	// Name returns the configured name of the connection (e.g., "metadata").
	Name() string
}

// ResourceProvider creates and caches connections of a single resource type.
type ResourceProvider interface {
	GetConnection(name string) (ResourceConnection, error)
	CloseAll() error
	Type() string
	Name() string
}

// ResourceConnectionResolver resolves a connection by its configured name.
type ResourceConnectionResolver interface {
	ResolveConnection(ctx context.Context, name string) (ResourceConnection, error)
}
