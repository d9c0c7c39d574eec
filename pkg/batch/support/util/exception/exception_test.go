package exception_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
)

func TestSentinelHierarchy(t *testing.T) {
	assert.True(t, errors.Is(exception.ErrNoTargets, exception.ErrValidation))
	assert.True(t, errors.Is(exception.ErrUnknownOperationType, exception.ErrValidation))
	assert.False(t, errors.Is(exception.ErrMissingPermissionCheck, exception.ErrValidation))
}

func TestValidationError_Is(t *testing.T) {
	err := &exception.ValidationError{Field: "targetIds", Reason: "empty", Cause: exception.ErrNoTargets}
	wrapped := fmt.Errorf("build: %w", err)

	assert.ErrorIs(t, wrapped, exception.ErrValidation)
	assert.ErrorIs(t, wrapped, exception.ErrNoTargets)
	assert.NotErrorIs(t, wrapped, exception.ErrUnknownOperationType)
	assert.Equal(t, "validation failed on 'targetIds': empty", err.Error())
}

func TestAuthorizationError_Is(t *testing.T) {
	err := &exception.AuthorizationError{UserID: "demo", Permission: "CREATE", Resource: "batch"}
	assert.ErrorIs(t, err, exception.ErrAuthorization)
}

func TestBatchError(t *testing.T) {
	cause := errors.New("boom")
	be := exception.NewBatchError("seed", "failed to create work unit", cause, true)

	assert.Equal(t, "[seed] failed to create work unit: boom", be.Error())
	assert.ErrorIs(t, be, cause)
	assert.True(t, be.IsRetryable())
	assert.False(t, exception.IsNonRetryable(be))
	assert.True(t, exception.IsBatchError(fmt.Errorf("outer: %w", be)))
	assert.Equal(t, "failed to create work unit: boom", exception.ExtractErrorMessage(be))
}

func TestNewBatchErrorf_ExtractsTrailingError(t *testing.T) {
	cause := errors.New("disk full")
	be := exception.NewBatchErrorf("export", "failed to write %s", "history.parquet", cause)

	assert.Equal(t, "failed to write history.parquet", be.Message)
	assert.Equal(t, cause, be.OriginalErr)
	assert.False(t, be.IsRetryable())
}

func TestOptimisticLockingFailure(t *testing.T) {
	err := exception.NewOptimisticLockingFailureException("repository", "batch b1 changed", nil)
	assert.True(t, exception.IsOptimisticLockingFailure(err))
	assert.True(t, exception.IsErrorOfType(err, exception.OptimisticLockingFailureException))
	assert.False(t, exception.IsNonRetryable(err))
}

func TestIsNonRetryable(t *testing.T) {
	permanent := exception.NewBatchError("dispatch", "failed to decode work unit configuration", errors.New("bad json"), false)
	transient := exception.NewBatchError("sql_store", "failed to query jobs", errors.New("connection reset"), true)

	assert.False(t, exception.IsNonRetryable(nil))
	assert.False(t, exception.IsNonRetryable(errors.New("instance is locked")))
	assert.True(t, exception.IsNonRetryable(permanent))
	assert.True(t, exception.IsNonRetryable(fmt.Errorf("job j1: %w", permanent)))
	assert.False(t, exception.IsNonRetryable(transient))
	assert.True(t, exception.IsNonRetryable(exception.NewBatchError("seed", "load", permanent, true)), "inner mark wins")
	assert.True(t, exception.IsNonRetryable(errors.Join(errors.New("other"), permanent)))
}
