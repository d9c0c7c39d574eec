package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	usecase "github.com/tigerroll/bulkop/pkg/batch/core/application/usecase"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Type     string
	TenantID string
	History  bool
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status [batch-id]",
		Short: "Show running batches or the progress of one batch",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var explorer usecase.BatchExplorer
			_, stop, err := opts.start(cmd.Context(), runMode{}, &explorer)
			if err != nil {
				return err
			}
			defer stop()

			ctx := opts.userContext(cmd.Context())
			out := cmd.OutOrStdout()
			switch {
			case len(args) == 1:
				stats, err := explorer.GetStatistics(ctx, args[0])
				if err != nil {
					return err
				}
				printStatistics(out, stats)
			case opts.History:
				history, err := explorer.ListHistory(ctx, false)
				if err != nil {
					return err
				}
				printHistory(out, history)
			default:
				batches, err := explorer.ListBatches(ctx, model.BatchFilter{Type: opts.Type, TenantID: opts.TenantID})
				if err != nil {
					return err
				}
				printBatches(out, batches)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "only list batches of this operation type")
	cmd.Flags().StringVar(&opts.TenantID, "tenant", "", "only list batches of this tenant")
	cmd.Flags().BoolVar(&opts.History, "history", false, "list historic batches instead of running ones")

	return cmd
}

func printStatistics(w io.Writer, s *model.BatchStatistics) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\t%s\n", s.BatchID)
	fmt.Fprintf(tw, "TYPE\t%s\n", s.Type)
	fmt.Fprintf(tw, "TOTAL\t%d\n", s.TotalJobs)
	fmt.Fprintf(tw, "CREATED\t%d\n", s.JobsCreated)
	fmt.Fprintf(tw, "COMPLETED\t%d\n", s.CompletedJobs)
	fmt.Fprintf(tw, "REMAINING\t%d\n", s.RemainingJobs)
	fmt.Fprintf(tw, "FAILED\t%d\n", s.FailedJobs)
	fmt.Fprintf(tw, "SUSPENDED\t%t\n", s.Suspended)
	_ = tw.Flush()
}

func printBatches(w io.Writer, batches []*model.Batch) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tTENANT\tJOBS\tSUSPENDED\tSTARTED")
	for _, b := range batches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%t\t%s\n",
			b.ID, b.Type, b.TenantID, b.JobsCreated, b.TotalJobs, b.Suspended, b.StartTime.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

func printHistory(w io.Writer, history []*model.HistoricBatch) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tTENANT\tJOBS\tSTARTED\tENDED")
	for _, h := range history {
		ended := "-"
		if h.EndTime != nil {
			ended = h.EndTime.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			h.ID, h.Type, h.TenantID, h.TotalJobs, h.StartTime.Format(time.RFC3339), ended)
	}
	_ = tw.Flush()
}

// newOperatorCommand creates a command that runs fn against one batch.
func newOperatorCommand(rootOpts *RootOptions, use, short string, args cobra.PositionalArgs,
	fn func(cmd *cobra.Command, operator usecase.BatchOperator, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			var operator usecase.BatchOperator
			_, stop, err := rootOpts.start(cmd.Context(), runMode{}, &operator)
			if err != nil {
				return err
			}
			defer stop()
			cmd.SetContext(rootOpts.userContext(cmd.Context()))
			return fn(cmd, operator, args)
		},
	}
}

// NewSuspendCommand creates the suspend command.
func NewSuspendCommand(rootOpts *RootOptions) *cobra.Command {
	return newOperatorCommand(rootOpts, "suspend <batch-id>", "Suspend a batch", cobra.ExactArgs(1),
		func(cmd *cobra.Command, operator usecase.BatchOperator, args []string) error {
			if err := operator.SuspendBatch(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Batch %s suspended\n", args[0])
			return nil
		})
}

// NewActivateCommand creates the activate command.
func NewActivateCommand(rootOpts *RootOptions) *cobra.Command {
	return newOperatorCommand(rootOpts, "activate <batch-id>", "Activate a suspended batch", cobra.ExactArgs(1),
		func(cmd *cobra.Command, operator usecase.BatchOperator, args []string) error {
			if err := operator.ActivateBatch(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Batch %s activated\n", args[0])
			return nil
		})
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var cascade bool
	cmd := newOperatorCommand(rootOpts, "delete <batch-id>", "Cancel a batch", cobra.ExactArgs(1),
		func(cmd *cobra.Command, operator usecase.BatchOperator, args []string) error {
			if err := operator.DeleteBatch(cmd.Context(), args[0], cascade); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Batch %s deleted\n", args[0])
			return nil
		})
	cmd.Flags().BoolVar(&cascade, "cascade", false, "also remove the historic record")
	return cmd
}

// NewRetriesCommand creates the retries command.
func NewRetriesCommand(rootOpts *RootOptions) *cobra.Command {
	return newOperatorCommand(rootOpts, "retries <batch-id> <retries>", "Give failed work units of a batch new retries", cobra.ExactArgs(2),
		func(cmd *cobra.Command, operator usecase.BatchOperator, args []string) error {
			retries, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid retries %q: %w", args[1], err)
			}
			n, err := operator.SetRetries(cmd.Context(), args[0], retries)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Retries of %d work units set to %d\n", n, retries)
			return nil
		})
}
