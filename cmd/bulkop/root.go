package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

const shutdownTimeout = 30 * time.Second

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
	User    string

	embeddedConfig config.EmbeddedConfig
}

// NewRootCommand creates the bulkop command tree over embedded, the application YAML.
func NewRootCommand(embedded config.EmbeddedConfig) *cobra.Command {
	opts := &RootOptions{embeddedConfig: embedded}

	envFile := os.Getenv("ENV_FILE_PATH")
	if envFile == "" {
		envFile = ".env"
	}

	cmd := &cobra.Command{
		Use:           "bulkop",
		Short:         "bulkop - batch operations over process instances",
		Long:          "Creates, runs and manages batches that apply one operation to a large set of process instances.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", envFile, "path of the .env file loaded before the configuration")
	cmd.PersistentFlags().StringVar(&opts.User, "user", "cli", "user id recorded in the operation log")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSubmitCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSuspendCommand(opts))
	cmd.AddCommand(NewActivateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewRetriesCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewExportHistoryCommand(opts))

	return cmd
}

// loadConfig reads the configuration used to assemble the application graph.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.EnvFile, o.embeddedConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// userContext attaches the --user flag to ctx.
func (o *RootOptions) userContext(ctx context.Context) context.Context {
	return port.WithUser(ctx, o.User)
}

// start builds and starts the application, filling targets the way fx.Populate does.
// The returned function stops the application.
func (o *RootOptions) start(ctx context.Context, mode runMode, targets ...interface{}) (*config.Config, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	options := GetApplicationOptions(o.EnvFile, o.embeddedConfig, cfg, mode)
	if len(targets) > 0 {
		options = append(options, fx.Populate(targets...))
	}
	app := fx.New(options...)
	if err := app.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start application: %w", err)
	}
	stop := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.Stop(stopCtx); err != nil {
			logger.Warnf("Application did not stop cleanly: %v", err)
		}
	}
	return cfg, stop, nil
}
