package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tigerroll/bulkop/pkg/batch/component/export"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/clock"
)

// ExportOptions holds flags for the export-history command.
type ExportOptions struct {
	*RootOptions
	Storage string
	Object  string
}

// NewExportHistoryCommand creates the export-history command.
func NewExportHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export-history",
		Short: "Export finished batches as a parquet file",
		Long: `Write every finished historic batch to a parquet object. The target storage
defaults to infrastructure.export_storage_ref.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				exporter *export.HistoryExporter
				clk      clock.Clock
			)
			cfg, stop, err := opts.start(cmd.Context(), runMode{}, &exporter, &clk)
			if err != nil {
				return err
			}
			defer stop()

			storageRef := opts.Storage
			if storageRef == "" {
				storageRef = cfg.Bulkop.Infrastructure.ExportStorageRef
			}
			object := opts.Object
			if object == "" {
				object = fmt.Sprintf("batch-history-%s.parquet", clk.Now().Format("20060102T150405Z"))
			}
			n, err := exporter.Export(cmd.Context(), storageRef, object)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No finished batches to export")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d batches to %s/%s\n", n, storageRef, object)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Storage, "storage", "", "storage name under bulkop.storage")
	cmd.Flags().StringVarP(&opts.Object, "object", "o", "", "object name of the export")

	return cmd
}
