// Package gorm implements the database adapter on top of GORM.
package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/bulkop/pkg/batch/adapter/database/config"
	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// NewGormLogger creates a GORM logger writing through the application logger.
func NewGormLogger(level string) gormLogger.Interface {
	var gormLevel gormLogger.LogLevel
	switch config.LogLevel(strings.ToUpper(level)) {
	case config.LogLevelError:
		gormLevel = gormLogger.Error
	case config.LogLevelWarn:
		gormLevel = gormLogger.Warn
	case config.LogLevelInfo, config.LogLevelDebug:
		gormLevel = gormLogger.Info
	default:
		gormLevel = gormLogger.Silent
	}
	return gormLogger.New(NewGormWriter(), gormLogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormLevel,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// GormWriter redirects GORM output to the application logger. SQL statements are logged at debug level.
type GormWriter struct{}

// NewGormWriter creates a GormWriter.
func NewGormWriter() *GormWriter {
	return &GormWriter{}
}

// Printf implements gormLogger.Writer.
func (w *GormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if isStatement(msg) {
		logger.Debugf("[GORM] %s", msg)
		return
	}
	logger.Infof("[GORM] %s", msg)
}

func isStatement(msg string) bool {
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.Contains(msg, verb) {
			return true
		}
	}
	return false
}

// GormDBAdapter is a database.DBConnection backed by a *gorm.DB.
type GormDBAdapter struct {
	executor
	sqlDB *sql.DB
	cfg   dbconfig.DatabaseConfig
	name  string
}

// NewGormDBAdapter wraps db as the connection called name.
func NewGormDBAdapter(db *gorm.DB, cfg dbconfig.DatabaseConfig, name string) (*GormDBAdapter, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	return &GormDBAdapter{executor: executor{db: db}, sqlDB: sqlDB, cfg: cfg, name: name}, nil
}

// GetGormDB returns the wrapped *gorm.DB.
func (a *GormDBAdapter) GetGormDB() *gorm.DB {
	return a.db
}

// GetSQLDB returns the underlying *sql.DB.
func (a *GormDBAdapter) GetSQLDB() (*sql.DB, error) {
	return a.sqlDB, nil
}

// Config returns the database configuration.
func (a *GormDBAdapter) Config() dbconfig.DatabaseConfig {
	return a.cfg
}

// Type returns the provider type.
func (a *GormDBAdapter) Type() string {
	return a.cfg.Type
}

// Name returns the connection name.
func (a *GormDBAdapter) Name() string {
	return a.name
}

// Close closes the underlying connection pool.
func (a *GormDBAdapter) Close() error {
	logger.Debugf("Closing DB connection '%s'.", a.name)
	return a.sqlDB.Close()
}

// Ping verifies the connection is alive.
func (a *GormDBAdapter) Ping(ctx context.Context) error {
	return a.sqlDB.PingContext(ctx)
}

var _ database.DBConnection = (*GormDBAdapter)(nil)
