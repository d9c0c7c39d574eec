package query_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/bulkop/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/bulkop/pkg/batch/component/query"
	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
	testutil "github.com/tigerroll/bulkop/pkg/batch/test"
)

const overdueSQL = "SELECT id, deployment_id FROM process_instance WHERE state = ? ORDER BY id"

func newResolver(t *testing.T) (*query.SQLQueryResolver, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		Logger: gormadapter.NewGormLogger(""),
	})
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "mysql"}, "engine")
	require.NoError(t, err)

	queries := map[string]config.QueryConfig{
		"overdue":  {DBRef: "engine", SQL: overdueSQL},
		"ids-only": {DBRef: "engine", SQL: "SELECT id FROM process_instance"},
		"too-wide": {DBRef: "engine", SQL: "SELECT id, deployment_id, state FROM process_instance"},
	}
	return query.NewSQLQueryResolver(testutil.NewTestSingleConnectionResolver(conn), queries), mock
}

func TestSQLQueryResolver_ResolvesIDsAndDeployments(t *testing.T) {
	r, mock := newResolver(t)
	mock.ExpectQuery(regexp.QuoteMeta(overdueSQL)).
		WithArgs("ACTIVE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "deployment_id"}).
			AddRow("pi-1", "dep-1").
			AddRow("pi-2", nil).
			AddRow("pi-3", "dep-2"))

	ids, mappings, err := r.Resolve(context.Background(), map[string]interface{}{
		"name": "overdue",
		"args": []interface{}{"ACTIVE"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pi-1", "pi-2", "pi-3"}, ids)
	assert.Equal(t, []model.IDMapping{
		{TargetID: "pi-1", DeploymentID: "dep-1"},
		{TargetID: "pi-3", DeploymentID: "dep-2"},
	}, mappings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLQueryResolver_NameOnly(t *testing.T) {
	r, mock := newResolver(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM process_instance")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("pi-9"))

	ids, mappings, err := r.Resolve(context.Background(), "ids-only")
	require.NoError(t, err)
	assert.Equal(t, []string{"pi-9"}, ids)
	assert.Empty(t, mappings)
}

func TestSQLQueryResolver_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown query", func(t *testing.T) {
		r, _ := newResolver(t)
		_, _, err := r.Resolve(ctx, "missing")
		assert.True(t, errors.Is(err, exception.ErrValidation))
	})

	t.Run("unsupported query value", func(t *testing.T) {
		r, _ := newResolver(t)
		_, _, err := r.Resolve(ctx, 42)
		assert.True(t, errors.Is(err, exception.ErrValidation))
	})

	t.Run("too many columns", func(t *testing.T) {
		r, mock := newResolver(t)
		mock.ExpectQuery("SELECT id, deployment_id, state").
			WillReturnRows(sqlmock.NewRows([]string{"id", "deployment_id", "state"}).AddRow("pi-1", "dep", "ACTIVE"))
		_, _, err := r.Resolve(ctx, query.NamedQuery{Name: "too-wide"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "got 3 columns")
	})

	t.Run("query failure is retryable", func(t *testing.T) {
		r, mock := newResolver(t)
		mock.ExpectQuery("SELECT id FROM").WillReturnError(errors.New("connection reset"))
		_, _, err := r.Resolve(ctx, "ids-only")
		var be *exception.BatchError
		require.True(t, errors.As(err, &be))
		assert.True(t, be.IsRetryable())
	})
}
