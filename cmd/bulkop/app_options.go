package main

import (
	"go.uber.org/fx"

	gormadapter "github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/bulkop/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/bulkop/pkg/batch/adapter/standalone"
	storage "github.com/tigerroll/bulkop/pkg/batch/adapter/storage"
	"github.com/tigerroll/bulkop/pkg/batch/adapter/storage/gcs"
	"github.com/tigerroll/bulkop/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/bulkop/pkg/batch/component/export"
	"github.com/tigerroll/bulkop/pkg/batch/component/migration"
	"github.com/tigerroll/bulkop/pkg/batch/component/query"
	usecase "github.com/tigerroll/bulkop/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
	"github.com/tigerroll/bulkop/pkg/batch/engine/builder"
	"github.com/tigerroll/bulkop/pkg/batch/engine/dispatch"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler/correlation"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler/deletion"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler/suspension"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler/variables"
	"github.com/tigerroll/bulkop/pkg/batch/engine/worker"
	telemetry "github.com/tigerroll/bulkop/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/bulkop/pkg/batch/infrastructure/repository/inmemory"
	sqlstore "github.com/tigerroll/bulkop/pkg/batch/infrastructure/repository/sql"
	batchlistener "github.com/tigerroll/bulkop/pkg/batch/listener"
	"github.com/tigerroll/bulkop/pkg/batch/listener/logging"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/clock"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// runMode selects the optional parts of the application graph.
type runMode struct {
	// workers runs the job pool for the lifetime of the application.
	workers bool
	// autoMigrate applies the schema on start when infrastructure.auto_migrate is set.
	autoMigrate bool
}

// GetApplicationOptions builds the fx options of the engine. cfg is only used to pick
// the store modules; the graph loads its own *config.Config from embeddedConfig.
func GetApplicationOptions(envFilePath string, embeddedConfig config.EmbeddedConfig, cfg *config.Config, mode runMode) []fx.Option {
	var options []fx.Option

	options = append(options, fx.Supply(
		embeddedConfig,
		fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
	))
	options = append(options, logger.Module)
	options = append(options, config.Module)
	options = append(options, fx.Provide(clock.NewSystem))
	options = append(options, metrics.Module)
	options = append(options, telemetry.Module)
	options = append(options, gormadapter.Module, sqlite.Module, postgres.Module, mysql.Module)
	options = append(options, storeOptions(cfg, mode.autoMigrate)...)
	options = append(options, query.Module)
	options = append(options, storage.Module, local.Module, gcs.Module)
	options = append(options, export.Module)
	options = append(options, standalone.Module)
	options = append(options, suspension.Module, correlation.Module, variables.Module, deletion.Module)
	options = append(options, handler.Module)
	options = append(options, builder.Module)
	options = append(options, batchlistener.Module)
	options = append(options, usecase.Module)
	options = append(options, dispatch.Module)
	if mode.workers {
		options = append(options, worker.Module)
	}
	return options
}

// storeOptions returns the persistence modules named by infrastructure.store. Database
// connections are available in both cases since target queries may use them.
func storeOptions(cfg *config.Config, autoMigrate bool) []fx.Option {
	if cfg.Bulkop.Infrastructure.Store != config.StoreSQL {
		return []fx.Option{inmemory.Module, logging.OperationLogModule}
	}
	schema := migration.Module
	if autoMigrate {
		schema = migration.AutoMigrateModule
	}
	return []fx.Option{sqlstore.Module, schema}
}
