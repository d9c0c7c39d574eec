package test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
	coreadapter "github.com/tigerroll/bulkop/pkg/batch/core/adapter"
)

// MockDBConnectionResolver is a testify mock of database.DBConnectionResolver.
type MockDBConnectionResolver struct {
	mock.Mock
}

func (m *MockDBConnectionResolver) ResolveDBConnection(ctx context.Context, name string) (database.DBConnection, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(database.DBConnection), args.Error(1)
}

func (m *MockDBConnectionResolver) ResolveConnection(ctx context.Context, name string) (coreadapter.ResourceConnection, error) {
	conn, err := m.ResolveDBConnection(ctx, name)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// singleConnectionResolver resolves every name to the same connection.
type singleConnectionResolver struct {
	conn database.DBConnection
}

// NewTestSingleConnectionResolver returns a resolver that always yields conn.
func NewTestSingleConnectionResolver(conn database.DBConnection) database.DBConnectionResolver {
	return &singleConnectionResolver{conn: conn}
}

func (r *singleConnectionResolver) ResolveDBConnection(context.Context, string) (database.DBConnection, error) {
	return r.conn, nil
}

func (r *singleConnectionResolver) ResolveConnection(context.Context, string) (coreadapter.ResourceConnection, error) {
	return r.conn, nil
}

var (
	_ database.DBConnectionResolver = (*MockDBConnectionResolver)(nil)
	_ database.DBConnectionResolver = (*singleConnectionResolver)(nil)
)
