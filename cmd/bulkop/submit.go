package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/bulkop/pkg/batch/component/query"
	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	usecase "github.com/tigerroll/bulkop/pkg/batch/core/application/usecase"
	"github.com/tigerroll/bulkop/pkg/batch/engine/builder"
	batchlistener "github.com/tigerroll/bulkop/pkg/batch/listener"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	*RootOptions
	Type        string
	IDs         []string
	Query       string
	QueryArgs   []string
	Payload     string
	PayloadFile string
	TenantID    string
	Wait        bool
	Timeout     time.Duration
}

// NewSubmitCommand creates the submit command.
func NewSubmitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SubmitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Create a batch",
		Long: `Create a batch of the given operation type over the given target ids and
print its id. With --wait the worker pool runs in this process until the
batch completes or is cancelled.

Example:
  bulkop submit --type set-variables --ids pi-1,pi-2 --payload '{"variables": {"approved": true}}' --wait
  bulkop submit --type process-instance-deletion --ids pi-3 --payload 'deleteReason: cleanup'
  bulkop submit --type process-instance-update-suspension-state --query overdue --query-arg ACTIVE --payload 'suspended: true'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "operation type of the batch (required)")
	cmd.Flags().StringSliceVar(&opts.IDs, "ids", nil, "comma separated target ids")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "name of a query under bulkop.queries selecting further targets")
	cmd.Flags().StringSliceVar(&opts.QueryArgs, "query-arg", nil, "positional argument of the query, repeatable")
	cmd.Flags().StringVarP(&opts.Payload, "payload", "p", "", "operation payload as JSON or YAML")
	cmd.Flags().StringVar(&opts.PayloadFile, "payload-file", "", "file holding the operation payload")
	cmd.Flags().StringVar(&opts.TenantID, "tenant", "", "tenant id of the batch")
	cmd.Flags().BoolVarP(&opts.Wait, "wait", "w", false, "run the worker pool until the batch finishes")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Minute, "maximum time to wait with --wait")
	_ = cmd.MarkFlagRequired("type")
	cmd.MarkFlagsMutuallyExclusive("payload", "payload-file")

	return cmd
}

func runSubmit(cmd *cobra.Command, opts *SubmitOptions) error {
	payload, err := opts.readPayload()
	if err != nil {
		return err
	}

	var (
		operator usecase.BatchOperator
		signaler *batchlistener.CompletionSignaler
	)
	_, stop, err := opts.start(cmd.Context(), runMode{workers: opts.Wait, autoMigrate: true}, &operator, &signaler)
	if err != nil {
		return err
	}
	defer stop()

	ctx := opts.userContext(cmd.Context())
	batch, err := operator.CreateBatch(ctx, builder.Request{
		OperationType: opts.Type,
		TargetIDs:     opts.IDs,
		Query:         opts.targetQuery(),
		Payload:       payload,
		RequiredCapability: &port.Capability{
			Resource:   port.ResourceBatch,
			Permission: port.PermissionCreate,
			BatchType:  opts.Type,
		},
		TenantID: opts.TenantID,
	})
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), batch.ID)

	if !opts.Wait {
		return nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	outcome, err := signaler.Await(waitCtx, batch.ID)
	if err != nil {
		return fmt.Errorf("batch %s did not finish: %w", batch.ID, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Batch %s %s\n", batch.ID, outcome)
	return nil
}

// targetQuery returns the --query selection, or nil without one.
func (o *SubmitOptions) targetQuery() interface{} {
	if o.Query == "" {
		return nil
	}
	args := make([]interface{}, len(o.QueryArgs))
	for i, a := range o.QueryArgs {
		args[i] = a
	}
	return query.NamedQuery{Name: o.Query, Args: args}
}

// readPayload decodes --payload or --payload-file. JSON is accepted as YAML.
func (o *SubmitOptions) readPayload() (map[string]interface{}, error) {
	raw := []byte(o.Payload)
	if o.PayloadFile != "" {
		data, err := os.ReadFile(o.PayloadFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload file: %w", err)
		}
		raw = data
	}
	payload := map[string]interface{}{}
	if len(raw) == 0 {
		return payload, nil
	}
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return payload, nil
}
