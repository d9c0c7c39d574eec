package main

import (
	"github.com/spf13/cobra"

	"github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the worker pool until interrupted",
		Long: `Run the worker pool. It acquires due seed, monitor and work unit jobs
from the configured store and executes them until the process receives
SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, stop, err := rootOpts.start(ctx, runMode{workers: true, autoMigrate: true})
			if err != nil {
				return err
			}
			defer stop()

			logger.Infof("Worker pool running. Waiting for shutdown signal.")
			<-ctx.Done()
			logger.Infof("Application is shutting down.")
			return nil
		},
	}
}
