package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// migratorImpl implements Migrator on one database connection.
type migratorImpl struct {
	dbConn database.DBConnection
	dbType string
}

// NewMigrator creates a Migrator for dbConn.
func NewMigrator(dbConn database.DBConnection) Migrator {
	return &migratorImpl{
		dbConn: dbConn,
		dbType: dbConn.Type(),
	}
}

func (m *migratorImpl) getDatabaseDriver(sqlDB *sql.DB, tableName string) (migratedb.Driver, error) {
	switch m.dbType {
	case "postgres", "redshift":
		return postgres.WithInstance(sqlDB, &postgres.Config{
			MigrationsTable:       tableName,
			MultiStatementEnabled: true,
		})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{
			MigrationsTable: tableName,
		})
	case "sqlite":
		return sqlite.WithInstance(sqlDB, &sqlite.Config{
			MigrationsTable: tableName,
		})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.dbType)
	}
}

// migrateInstance couples a migrate.Migrate with the way to release it.
type migrateInstance struct {
	*migrate.Migrate
	release func()
}

// getMigrateInstance builds a migrate.Migrate. Closing a golang-migrate database driver closes
// its *sql.DB, so postgres and mysql migrate over a dedicated connection that is closed with it.
// The sqlite driver holds no connection of its own and runs on the shared one, which must stay
// open because an in-memory database lives only as long as it does.
func (m *migratorImpl) getMigrateInstance(migrationFS fs.FS, path string, tableName string) (*migrateInstance, error) {
	sourceDriver, err := iofs.New(migrationFS, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs source driver for path %s: %w", path, err)
	}

	var sqlDB *sql.DB
	shared := m.dbType == "sqlite"
	if shared {
		sqlDB, err = m.dbConn.GetSQLDB()
	} else {
		sqlDB, err = openDedicated(m.dbConn)
	}
	if err != nil {
		_ = sourceDriver.Close()
		return nil, fmt.Errorf("failed to get sql.DB for migration: %w", err)
	}

	dbDriver, err := m.getDatabaseDriver(sqlDB, tableName)
	if err != nil {
		_ = sourceDriver.Close()
		if !shared {
			_ = sqlDB.Close()
		}
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, m.dbType, dbDriver)
	if err != nil {
		_ = sourceDriver.Close()
		if !shared {
			_ = dbDriver.Close()
		}
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	release := func() {
		if shared {
			if err := sourceDriver.Close(); err != nil {
				logger.Warnf("Failed to close migration source: %v", err)
			}
			return
		}
		if srcErr, dbErr := mInstance.Close(); srcErr != nil || dbErr != nil {
			logger.Warnf("Failed to close migration instance: source=%v, database=%v", srcErr, dbErr)
		}
	}
	return &migrateInstance{Migrate: mInstance, release: release}, nil
}

func openDedicated(conn database.DBConnection) (*sql.DB, error) {
	db, err := gormadapter.Open(conn.Config())
	if err != nil {
		return nil, err
	}
	return db.DB()
}

func (m *migratorImpl) runMigration(ctx context.Context, migrationFS fs.FS, path string, command string, tableName string) error {
	logger.Infof("Executing migration '%s' (Path: %s, Table: %s)", command, path, tableName)

	mInstance, err := m.getMigrateInstance(migrationFS, path, tableName)
	if err != nil {
		return err
	}
	defer mInstance.release()

	// golang-migrate stops between two migration files once GracefulStop is signalled.
	stop := context.AfterFunc(ctx, func() {
		select {
		case mInstance.GracefulStop <- true:
		default:
		}
	})
	defer stop()

	var migrateErr error
	switch command {
	case "up":
		migrateErr = mInstance.Up()
	case "down":
		migrateErr = mInstance.Down()
	default:
		return fmt.Errorf("unsupported migration command: %s", command)
	}

	if migrateErr != nil && !errors.Is(migrateErr, migrate.ErrNoChange) {
		if version, dirty, versionErr := mInstance.Version(); versionErr == nil {
			logger.Errorf("Migration failed at version %d (dirty: %t)", version, dirty)
		}
		return fmt.Errorf("migration failed for command '%s' (DB: %s, Path: %s): %w", command, m.dbType, path, migrateErr)
	}

	logger.Infof("Migration '%s' completed successfully.", command)
	return nil
}

// Up applies every pending migration under path.
func (m *migratorImpl) Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error {
	return m.runMigration(ctx, migrationFS, path, "up", tableName)
}

// Down reverts every applied migration under path.
func (m *migratorImpl) Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error {
	return m.runMigration(ctx, migrationFS, path, "down", tableName)
}

// Version returns 0 and no error when no migration has been applied yet.
func (m *migratorImpl) Version(migrationFS fs.FS, path string, tableName string) (uint, bool, error) {
	mInstance, err := m.getMigrateInstance(migrationFS, path, tableName)
	if err != nil {
		return 0, false, err
	}
	defer mInstance.release()

	version, dirty, err := mInstance.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}
