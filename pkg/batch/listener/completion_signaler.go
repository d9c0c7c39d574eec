// Package listener bundles the batch lifecycle listeners and a signaler that lets
// callers wait for a batch to finish.
package listener

import (
	"context"
	"sync"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

type completion struct {
	done    chan struct{}
	outcome string
}

// CompletionSignaler is a BatchListener that wakes callers waiting in Await once a
// batch completes or is cancelled. It only observes batches finished in this process.
type CompletionSignaler struct {
	mu      sync.Mutex
	batches map[string]*completion
}

// NewCompletionSignaler creates an empty CompletionSignaler.
func NewCompletionSignaler() *CompletionSignaler {
	return &CompletionSignaler{batches: make(map[string]*completion)}
}

func (s *CompletionSignaler) entry(batchID string) *completion {
	c, ok := s.batches[batchID]
	if !ok {
		c = &completion{done: make(chan struct{})}
		s.batches[batchID] = c
	}
	return c
}

func (s *CompletionSignaler) finish(batch *model.Batch, outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.entry(batch.ID)
	select {
	case <-c.done:
		return
	default:
	}
	c.outcome = outcome
	close(c.done)
	logger.Debugf("CompletionSignaler: batch '%s' %s.", batch.ID, outcome)
}

// Await blocks until the batch has finished and returns metrics.OutcomeCompleted or
// metrics.OutcomeCancelled. Await then forgets the batch.
func (s *CompletionSignaler) Await(ctx context.Context, batchID string) (string, error) {
	s.mu.Lock()
	c := s.entry(batchID)
	s.mu.Unlock()

	select {
	case <-c.done:
		s.mu.Lock()
		delete(s.batches, batchID)
		s.mu.Unlock()
		return c.outcome, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// OnBatchCreated does nothing; waiters register through Await.
func (s *CompletionSignaler) OnBatchCreated(ctx context.Context, batch *model.Batch) {}

// OnBatchCompleted releases the waiters of batch.
func (s *CompletionSignaler) OnBatchCompleted(ctx context.Context, batch *model.Batch) {
	s.finish(batch, metrics.OutcomeCompleted)
}

// OnBatchCancelled releases the waiters of batch.
func (s *CompletionSignaler) OnBatchCancelled(ctx context.Context, batch *model.Batch) {
	s.finish(batch, metrics.OutcomeCancelled)
}

var _ port.BatchListener = (*CompletionSignaler)(nil)
