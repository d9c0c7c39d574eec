package tracing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
	"github.com/tigerroll/bulkop/pkg/batch/listener/tracing"
	testutil "github.com/tigerroll/bulkop/pkg/batch/test"
)

type recordedEvent struct {
	name  string
	attrs map[string]interface{}
}

type eventTracer struct {
	metrics.NoOpTracer
	events []recordedEvent
}

func (t *eventTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	t.events = append(t.events, recordedEvent{name: name, attrs: attributes})
}

func TestBatchListener_RecordsLifecycleEvents(t *testing.T) {
	tracer := &eventTracer{}
	l := tracing.NewBatchListener(tracer)
	batch := model.NewBatch("set-variables", 3, 3, 1, testutil.Epoch)

	l.OnBatchCreated(context.Background(), batch)
	l.OnBatchCompleted(context.Background(), batch)
	l.OnBatchCancelled(context.Background(), batch)

	require.Len(t, tracer.events, 3)
	assert.Equal(t, "batch.created", tracer.events[0].name)
	assert.Equal(t, "batch.completed", tracer.events[1].name)
	assert.Equal(t, "batch.cancelled", tracer.events[2].name)
	assert.Equal(t, batch.ID, tracer.events[0].attrs["bulkop.batch.id"])
	assert.Equal(t, 3, tracer.events[0].attrs["bulkop.batch.total_jobs"])
}
