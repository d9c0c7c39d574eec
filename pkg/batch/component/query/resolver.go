// Package query resolves named SQL queries into batch target ids.
//
// A named query is configured under bulkop.queries with the database connection it runs
// on. Its first result column is the target id; an optional second column holds the
// deployment the target originates from.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/fx"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

const module = "query"

// NamedQuery selects a configured query and its positional arguments.
type NamedQuery struct {
	Name string        `mapstructure:"name"`
	Args []interface{} `mapstructure:"args"`
}

// SQLQueryResolver is a port.QueryResolver running configured SQL queries.
type SQLQueryResolver struct {
	dbResolver database.DBConnectionResolver
	queries    map[string]config.QueryConfig
}

// NewSQLQueryResolver creates a resolver over queries.
func NewSQLQueryResolver(dbResolver database.DBConnectionResolver, queries map[string]config.QueryConfig) *SQLQueryResolver {
	return &SQLQueryResolver{dbResolver: dbResolver, queries: queries}
}

// Resolve accepts a query name, a NamedQuery or a map with "name" and "args" keys.
func (r *SQLQueryResolver) Resolve(ctx context.Context, q interface{}) ([]string, []model.IDMapping, error) {
	named, err := toNamedQuery(q)
	if err != nil {
		return nil, nil, err
	}
	qc, ok := r.queries[named.Name]
	if !ok {
		return nil, nil, exception.NewValidationError("query", fmt.Sprintf("unknown query '%s'", named.Name))
	}

	conn, err := r.dbResolver.ResolveDBConnection(ctx, qc.DBRef)
	if err != nil {
		return nil, nil, exception.NewBatchErrorf(module, "failed to resolve connection '%s' for query '%s'", qc.DBRef, named.Name, err)
	}
	db, err := conn.GetSQLDB()
	if err != nil {
		return nil, nil, exception.NewBatchErrorf(module, "connection '%s' has no sql.DB", qc.DBRef, err)
	}

	started := time.Now()
	rows, err := db.QueryContext(ctx, qc.SQL, named.Args...)
	if err != nil {
		return nil, nil, exception.NewBatchError(module, fmt.Sprintf("failed to execute query '%s'", named.Name), err, true)
	}
	defer rows.Close()

	ids, mappings, err := scan(rows)
	if err != nil {
		return nil, nil, exception.NewBatchError(module, fmt.Sprintf("failed to read results of query '%s'", named.Name), err, false)
	}
	logger.Infof("Query '%s' resolved %d targets in %v.", named.Name, len(ids), time.Since(started))
	return ids, mappings, nil
}

func scan(rows *sql.Rows) ([]string, []model.IDMapping, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	if len(columns) < 1 || len(columns) > 2 {
		return nil, nil, fmt.Errorf("query must return the target id and optionally its deployment, got %d columns", len(columns))
	}

	var (
		ids      []string
		mappings []model.IDMapping
	)
	for rows.Next() {
		var (
			id         string
			deployment sql.NullString
		)
		dest := []interface{}{&id}
		if len(columns) == 2 {
			dest = append(dest, &deployment)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		if deployment.Valid && deployment.String != "" {
			mappings = append(mappings, model.IDMapping{TargetID: id, DeploymentID: deployment.String})
		}
	}
	return ids, mappings, rows.Err()
}

func toNamedQuery(q interface{}) (NamedQuery, error) {
	var named NamedQuery
	switch v := q.(type) {
	case string:
		named.Name = v
	case NamedQuery:
		named = v
	case *NamedQuery:
		if v != nil {
			named = *v
		}
	case map[string]interface{}:
		if err := mapstructure.Decode(v, &named); err != nil {
			return named, exception.NewValidationError("query", fmt.Sprintf("malformed query: %v", err))
		}
	default:
		return named, exception.NewValidationError("query", fmt.Sprintf("unsupported query of type %T", q))
	}
	if named.Name == "" {
		return named, exception.NewValidationError("query", "query name must not be empty")
	}
	return named, nil
}

var _ port.QueryResolver = (*SQLQueryResolver)(nil)

// Module provides the SQLQueryResolver as port.QueryResolver.
var Module = fx.Options(
	fx.Provide(func(dbResolver database.DBConnectionResolver, cfg *config.Config) port.QueryResolver {
		return NewSQLQueryResolver(dbResolver, cfg.Bulkop.Queries)
	}),
)
