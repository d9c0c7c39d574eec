package metrics

import (
	"context"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
)

// Tracer creates spans around engine work.
type Tracer interface {
	// StartJobSpan opens a span for one job execution. The returned function ends it.
	StartJobSpan(ctx context.Context, job *model.Job) (context.Context, func(err error))
	// StartBatchSpan opens a span for a batch level operation such as build or cancel.
	StartBatchSpan(ctx context.Context, operation string, batchID string) (context.Context, func(err error))
	// RecordEvent adds an event to the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
