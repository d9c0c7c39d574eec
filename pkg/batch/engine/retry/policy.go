// Package retry decides how a failed job is retried.
package retry

import (
	"time"

	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
)

// Policy is consulted by the dispatcher whenever a job fails.
type Policy interface {
	// ShouldRetry reports whether the job may use its remaining retries after err.
	// A false result turns the job into an incident at once.
	ShouldRetry(err error) bool
	// Backoff returns the delay before the given attempt, counted from 1.
	Backoff(attempt int) time.Duration
}

// NewPolicy creates the Policy described by the batch section of the configuration.
func NewPolicy(sizing *config.BatchConfig) Policy {
	return &defaultPolicy{
		initial:      time.Duration(sizing.RetryBackoffSeconds) * time.Second,
		max:          time.Duration(sizing.RetryBackoffMaxSeconds) * time.Second,
		nonRetryable: sizing.NonRetryableErrors,
	}
}

// defaultPolicy retries every error except those matching nonRetryable. Delays start at
// initial and double per attempt up to max; with max <= initial the delay is fixed.
type defaultPolicy struct {
	initial      time.Duration
	max          time.Duration
	nonRetryable []string
}

// ShouldRetry rejects errors marked as not retryable, then matches err against the configured
// names. A name is resolved through the exception registry first, then compared with the
// messages and types in the error chain.
func (p *defaultPolicy) ShouldRetry(err error) bool {
	if err == nil || exception.IsNonRetryable(err) {
		return false
	}
	for _, name := range p.nonRetryable {
		if exception.IsErrorOfType(err, name) {
			return false
		}
	}
	return true
}

// Backoff returns the delay after the given attempt, doubling from the initial delay up to
// the maximum.
func (p *defaultPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if p.max <= p.initial {
		return p.initial
	}
	delay := p.initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.max {
			return p.max
		}
	}
	return delay
}

var _ Policy = (*defaultPolicy)(nil)
