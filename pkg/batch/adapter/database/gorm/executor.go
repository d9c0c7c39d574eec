package gorm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	driverMysql "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
)

// TableNamer is implemented by entities that name their table.
type TableNamer interface {
	TableName() string
}

// executor runs DBExecutor statements on a *gorm.DB, which may be a plain
// connection or an open transaction.
type executor struct {
	db *gorm.DB
}

// ExecuteUpdate runs a create, update or delete of model and returns the affected rows.
func (e executor) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (int64, error) {
	db := e.db.WithContext(ctx)
	if tableName != "" {
		db = db.Table(tableName)
	}

	var result *gorm.DB
	switch operation {
	case database.OperationCreate:
		result = db.Create(model)
	case database.OperationUpdate:
		// Select("*") writes zero values too: a cleared lock owner must reach the table.
		db = db.Model(model).Select("*")
		if len(query) > 0 {
			db = db.Where(query)
		}
		result = db.Updates(model)
	case database.OperationDelete:
		if len(query) > 0 {
			db = db.Where(query)
		}
		result = db.Delete(model)
	default:
		return 0, fmt.Errorf("unsupported update operation: %s", operation)
	}
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExecuteUpdateColumns updates columns of the rows matching query.
func (e executor) ExecuteUpdateColumns(ctx context.Context, model interface{}, columns map[string]interface{}, query map[string]interface{}) (int64, error) {
	db := e.db.WithContext(ctx).Model(model)
	if namer, ok := model.(TableNamer); ok {
		db = db.Table(namer.TableName())
	}
	result := db.Where(query).Updates(columns)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExecuteQuery loads the rows matching query into target.
func (e executor) ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error {
	return e.ExecuteQueryAdvanced(ctx, target, query, "", 0)
}

// ExecuteQueryAdvanced is ExecuteQuery with ordering and a limit. A limit of 0 means none.
func (e executor) ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error {
	db := e.db.WithContext(ctx)
	if len(query) > 0 {
		db = db.Where(query)
	}
	return find(db, target, orderBy, limit)
}

// ExecuteQueryWhere loads the rows matching a raw where clause into target.
func (e executor) ExecuteQueryWhere(ctx context.Context, target interface{}, where string, args []interface{}, orderBy string, limit int) error {
	return find(e.db.WithContext(ctx).Where(where, args...), target, orderBy, limit)
}

func find(db *gorm.DB, target interface{}, orderBy string, limit int) error {
	if orderBy != "" {
		db = db.Order(orderBy)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	return db.Find(target).Error
}

// Count counts the rows of model matching query.
func (e executor) Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error) {
	var count int64
	db := e.db.WithContext(ctx).Model(model)
	if len(query) > 0 {
		db = db.Where(query)
	}
	if err := db.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// IsTableNotExistError reports whether err means a missing table.
func (e executor) IsTableNotExistError(err error) bool {
	return IsTableNotExistError(err)
}

// IsDuplicateKeyError reports whether err is a unique constraint violation.
func (e executor) IsDuplicateKeyError(err error) bool {
	return IsDuplicateKeyError(err)
}

// IsTableNotExistError reports whether err indicates a missing table on any supported database.
func IsTableNotExistError(err error) bool {
	if err == nil {
		return false
	}
	var myErr *driverMysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1146
	}
	msg := err.Error()
	return (strings.Contains(msg, "relation \"") && strings.Contains(msg, "\" does not exist")) || // PostgreSQL
		strings.Contains(msg, "no such table:") // SQLite
}

// IsDuplicateKeyError reports whether err is a unique constraint violation on any supported database.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var myErr *driverMysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "SQLSTATE 23505") // PostgreSQL
}

var _ database.DBExecutor = executor{}
