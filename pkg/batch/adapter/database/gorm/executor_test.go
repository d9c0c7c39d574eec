package gorm_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	driverMysql "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/bulkop/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm"
)

type widget struct {
	ID      string `gorm:"column:id;primaryKey"`
	Name    string `gorm:"column:name"`
	Version int    `gorm:"column:version"`
}

func (widget) TableName() string { return "widget" }

func newMockedConnection(t *testing.T) (*gormadapter.GormDBAdapter, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormadapter.NewGormLogger(""),
	})
	require.NoError(t, err)
	conn, err := gormadapter.NewGormDBAdapter(db, dbconfig.DatabaseConfig{Type: "mysql"}, "metadata")
	require.NoError(t, err)
	return conn, mock
}

func TestExecuteUpdate_VersionGuard(t *testing.T) {
	conn, mock := newMockedConnection(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE `widget` SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `widget` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entity := &widget{ID: "w-1", Name: "renamed", Version: 4}
	rows, err := conn.ExecuteUpdate(ctx, entity, database.OperationUpdate, "widget", map[string]interface{}{"version": 3})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows, "stale version matches nothing")

	rows, err = conn.ExecuteUpdate(ctx, entity, database.OperationUpdate, "widget", map[string]interface{}{"version": 3})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteUpdate_CreateAndDelete(t *testing.T) {
	conn, mock := newMockedConnection(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `widget`")).
		WithArgs("w-1", "first", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `widget` WHERE `id` = ?")).
		WithArgs("w-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := conn.ExecuteUpdate(ctx, &widget{ID: "w-1", Name: "first"}, database.OperationCreate, "widget", nil)
	require.NoError(t, err)
	rows, err := conn.ExecuteUpdate(ctx, &widget{}, database.OperationDelete, "widget", map[string]interface{}{"id": "w-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err = conn.ExecuteUpdate(ctx, &widget{}, "UPSERT", "widget", nil)
	assert.ErrorContains(t, err, "unsupported update operation")
}

func TestCount(t *testing.T) {
	conn, mock := newMockedConnection(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `widget` WHERE `name` = ?")).
		WithArgs("first").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := conn.Count(context.Background(), &widget{}, map[string]interface{}{"name": "first"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsDuplicateKeyError(t *testing.T) {
	assert.True(t, gormadapter.IsDuplicateKeyError(gorm.ErrDuplicatedKey))
	assert.True(t, gormadapter.IsDuplicateKeyError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}))
	assert.True(t, gormadapter.IsDuplicateKeyError(&driverMysql.MySQLError{Number: 1062}))
	assert.True(t, gormadapter.IsDuplicateKeyError(errors.New(`ERROR: duplicate key value violates unique constraint "bulkop_batch_pkey" (SQLSTATE 23505)`)))

	assert.False(t, gormadapter.IsDuplicateKeyError(nil))
	assert.False(t, gormadapter.IsDuplicateKeyError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}))
	assert.False(t, gormadapter.IsDuplicateKeyError(errors.New("connection refused")))
}

func TestIsTableNotExistError(t *testing.T) {
	assert.True(t, gormadapter.IsTableNotExistError(&driverMysql.MySQLError{Number: 1146}))
	assert.True(t, gormadapter.IsTableNotExistError(errors.New(`ERROR: relation "bulkop_job" does not exist (SQLSTATE 42P01)`)))
	assert.True(t, gormadapter.IsTableNotExistError(errors.New("no such table: bulkop_job")))

	assert.False(t, gormadapter.IsTableNotExistError(nil))
	assert.False(t, gormadapter.IsTableNotExistError(&driverMysql.MySQLError{Number: 1062}))
}
