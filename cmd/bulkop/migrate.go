package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tigerroll/bulkop/pkg/batch/component/migration"
	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
)

// NewMigrateCommand creates the migrate command and its up, down and version subcommands.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the schema of the SQL store",
	}
	cmd.AddCommand(newMigrateSubcommand(rootOpts, "up", "Apply all pending migrations",
		func(cmd *cobra.Command, runner *migration.SchemaRunner) error {
			return runner.Up(cmd.Context())
		}))
	cmd.AddCommand(newMigrateSubcommand(rootOpts, "down", "Revert all migrations",
		func(cmd *cobra.Command, runner *migration.SchemaRunner) error {
			return runner.Down(cmd.Context())
		}))
	cmd.AddCommand(newMigrateSubcommand(rootOpts, "version", "Print the current schema version",
		func(cmd *cobra.Command, runner *migration.SchemaRunner) error {
			version, dirty, err := runner.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		}))
	return cmd
}

func newMigrateSubcommand(rootOpts *RootOptions, use, short string, fn func(*cobra.Command, *migration.SchemaRunner) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Bulkop.Infrastructure.Store != config.StoreSQL {
				return fmt.Errorf("migrate requires infrastructure.store '%s', got '%s'", config.StoreSQL, cfg.Bulkop.Infrastructure.Store)
			}
			var runner *migration.SchemaRunner
			_, stop, err := rootOpts.start(cmd.Context(), runMode{}, &runner)
			if err != nil {
				return err
			}
			defer stop()
			return fn(cmd, runner)
		},
	}
}
