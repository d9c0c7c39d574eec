package migration

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/bulkop/pkg/batch/core/config"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// Module provides the SchemaRunner.
var Module = fx.Options(
	fx.Provide(NewSchemaRunner),
)

// AutoMigrateModule additionally applies the schema on start when
// infrastructure.auto_migrate is set.
var AutoMigrateModule = fx.Options(
	Module,
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, runner *SchemaRunner) {
		if !cfg.Bulkop.Infrastructure.AutoMigrate {
			return
		}
		lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
			logger.Infof("Applying store schema before start.")
			return runner.Up(ctx)
		}})
	}),
)
