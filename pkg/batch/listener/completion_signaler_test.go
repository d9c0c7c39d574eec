package listener_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
	"github.com/tigerroll/bulkop/pkg/batch/listener"
	testutil "github.com/tigerroll/bulkop/pkg/batch/test"
)

func TestCompletionSignaler_AwaitBeforeCompletion(t *testing.T) {
	s := listener.NewCompletionSignaler()
	batch := model.NewBatch("set-variables", 1, 1, 1, testutil.Epoch)

	result := make(chan string, 1)
	go func() {
		outcome, err := s.Await(context.Background(), batch.ID)
		assert.NoError(t, err)
		result <- outcome
	}()

	s.OnBatchCreated(context.Background(), batch)
	s.OnBatchCompleted(context.Background(), batch)
	s.OnBatchCancelled(context.Background(), batch)

	select {
	case outcome := <-result:
		assert.Equal(t, metrics.OutcomeCompleted, outcome)
	case <-time.After(5 * time.Second):
		t.Fatal("Await did not return")
	}
}

func TestCompletionSignaler_AwaitAfterCancellation(t *testing.T) {
	s := listener.NewCompletionSignaler()
	batch := model.NewBatch("process-instance-deletion", 1, 1, 1, testutil.Epoch)
	s.OnBatchCancelled(context.Background(), batch)

	outcome, err := s.Await(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeCancelled, outcome)
}

func TestCompletionSignaler_AwaitHonoursContext(t *testing.T) {
	s := listener.NewCompletionSignaler()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Await(ctx, "unknown")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
