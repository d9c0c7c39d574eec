package retry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
)

func TestPolicy_FixedBackoff(t *testing.T) {
	p := NewPolicy(&config.BatchConfig{RetryBackoffSeconds: 10})

	for attempt := 0; attempt < 5; attempt++ {
		assert.Equal(t, 10*time.Second, p.Backoff(attempt))
	}
}

func TestPolicy_ExponentialBackoff(t *testing.T) {
	p := NewPolicy(&config.BatchConfig{RetryBackoffSeconds: 5, RetryBackoffMaxSeconds: 30})

	assert.Equal(t, 5*time.Second, p.Backoff(1))
	assert.Equal(t, 10*time.Second, p.Backoff(2))
	assert.Equal(t, 20*time.Second, p.Backoff(3))
	assert.Equal(t, 30*time.Second, p.Backoff(4))
	assert.Equal(t, 30*time.Second, p.Backoff(10))
}

func TestPolicy_ShouldRetry(t *testing.T) {
	p := NewPolicy(&config.BatchConfig{NonRetryableErrors: []string{"ValidationError", "instance is gone"}})

	assert.False(t, p.ShouldRetry(nil))
	assert.True(t, p.ShouldRetry(errors.New("connection reset")))
	assert.False(t, p.ShouldRetry(exception.NewValidationError("variables", "must not be empty")))
	assert.False(t, p.ShouldRetry(fmt.Errorf("delete pi-1: %w", errors.New("instance is gone"))))

	assert.True(t, NewPolicy(&config.BatchConfig{}).ShouldRetry(exception.NewValidationError("variables", "must not be empty")))
}

func TestPolicy_ShouldRetryHonoursBatchErrorMark(t *testing.T) {
	p := NewPolicy(&config.BatchConfig{})
	cause := errors.New("unexpected end of JSON input")

	assert.False(t, p.ShouldRetry(exception.NewBatchError("dispatch", "failed to decode work unit configuration", cause, false)))
	assert.False(t, p.ShouldRetry(fmt.Errorf("work unit j1: %w", exception.NewBatchErrorf("dispatch", "no executor for job type '%s'", "unknown"))))
	assert.True(t, p.ShouldRetry(exception.NewBatchError("sql_store", "failed to update job", cause, true)))
}
