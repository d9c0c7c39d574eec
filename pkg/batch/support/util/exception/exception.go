// Package exception provides the error types shared by the batch operation engine.
// Errors are classified by the module that raised them and by whether a retry
// of the failed work can succeed.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// errorRegistry maps symbolic error names to sentinel errors so that
// configuration and logs can refer to them by name.
var errorRegistry = make(map[string]error)

// registryMutex protects access to errorRegistry.
var registryMutex sync.RWMutex

// RegisterErrorType registers a sentinel error under a symbolic name.
//
// If prototype is nil or name is empty, this function panics.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}

	errorRegistry[name] = prototype
}

// Sentinel errors. Use errors.Is to classify an error returned by the engine.
var (
	// ErrValidation marks a request that is malformed and must not be retried.
	ErrValidation = errors.New("ValidationError")
	// ErrNoTargets marks a batch request whose target set resolved to nothing.
	ErrNoTargets = fmt.Errorf("%w: no target ids", ErrValidation)
	// ErrUnknownOperationType marks a request naming an operation type without a registered handler.
	ErrUnknownOperationType = fmt.Errorf("%w: unknown operation type", ErrValidation)
	// ErrMissingPermissionCheck marks a batch request built without any permission check.
	ErrMissingPermissionCheck = errors.New("MissingPermissionCheck")
	// ErrAuthorization marks a caller that lacks the required capability.
	ErrAuthorization = errors.New("AuthorizationError")
	// ErrBatchNotFound is returned when a batch id does not exist.
	ErrBatchNotFound = errors.New("BatchNotFound")
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("JobNotFound")
	// ErrOptimisticLockingFailure is a sentinel error indicating an optimistic locking failure.
	ErrOptimisticLockingFailure = errors.New(OptimisticLockingFailureException)
)

// OptimisticLockingFailureException is the registry name of ErrOptimisticLockingFailure.
const OptimisticLockingFailureException = "OptimisticLockingFailureException"

// BatchError is the error type raised by engine components.
// It holds the module where the error occurred, a message, the wrapped original error,
// and a flag indicating whether the failed work may be retried.
type BatchError struct {
	// Module indicates the module where the error occurred (e.g., "builder", "seed", "dispatcher").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// isRetryable indicates whether this error is retryable.
	isRetryable bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewBatchError creates a new BatchError instance.
//
// Parameters:
//
//	module: The module where the error occurred.
//	message: The error message.
//	originalErr: The original error to wrap.
//	isRetryable: Whether the failed work may be retried.
func NewBatchError(module, message string, originalErr error, isRetryable bool) *BatchError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		StackTrace:  string(buf[:n]),
	}
}

// NewBatchErrorf creates a new BatchError using a format string.
// A trailing error argument is extracted and wrapped; it is not passed to fmt.Sprintf.
// The resulting error is not retryable.
//
// Example:
//
//	NewBatchErrorf("seed", "failed to load batch %s", batchID, err)
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	args := a
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	return NewBatchError(module, fmt.Sprintf(format, args...), originalErr, false)
}

// NewOptimisticLockingFailureException creates a BatchError indicating an optimistic locking failure.
// Such a failure is retryable: the caller re-reads the row and tries again.
func NewOptimisticLockingFailureException(module, message string, originalErr error) *BatchError {
	var errToWrap error
	if originalErr != nil {
		errToWrap = errors.Join(ErrOptimisticLockingFailure, originalErr)
	} else {
		errToWrap = ErrOptimisticLockingFailure
	}
	return NewBatchError(module, message, errToWrap, true)
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// ValidationError describes a rejected request. It always matches ErrValidation.
type ValidationError struct {
	// Field names the request attribute that failed validation, if any.
	Field string
	// Reason is a human readable description.
	Reason string
	// Cause is an optional more specific sentinel, such as ErrNoTargets.
	Cause error
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on '%s': %s", e.Field, e.Reason)
}

// Is reports ErrValidation and the optional cause as matching targets.
func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// AuthorizationError reports a missing capability. It always matches ErrAuthorization.
type AuthorizationError struct {
	UserID     string
	Permission string
	Resource   string
}

// Error implements error.
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user '%s' lacks permission '%s' on resource '%s'", e.UserID, e.Permission, e.Resource)
}

// Is reports ErrAuthorization as a matching target.
func (e *AuthorizationError) Is(target error) bool {
	return target == ErrAuthorization
}

// IsBatchError determines if the given error is, or wraps, a BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// IsNonRetryable reports whether err, or any error it wraps, is a BatchError marked
// as not retryable. Such a failure repeats on every attempt.
func IsNonRetryable(err error) bool {
	for err != nil {
		if be, ok := err.(*BatchError); ok && !be.isRetryable {
			return true
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				if IsNonRetryable(e) {
					return true
				}
			}
			return false
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsErrorOfType checks if an error matches a registered name, a message substring or a Go type name.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	targetError, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()

	if ok && errors.Is(err, targetError) {
		return true
	}

	currentErr := err
	for currentErr != nil {
		if strings.Contains(currentErr.Error(), errorTypeName) {
			return true
		}
		errType := reflect.TypeOf(currentErr)
		if errType != nil {
			if errType.String() == errorTypeName || (errType.Kind() == reflect.Ptr && errType.Elem().String() == errorTypeName) {
				return true
			}
		}
		currentErr = errors.Unwrap(currentErr)
	}

	return false
}

func init() {
	RegisterErrorType(OptimisticLockingFailureException, ErrOptimisticLockingFailure)
	RegisterErrorType("ValidationError", ErrValidation)
	RegisterErrorType("AuthorizationError", ErrAuthorization)
	RegisterErrorType("MissingPermissionCheck", ErrMissingPermissionCheck)
	RegisterErrorType("BatchNotFound", ErrBatchNotFound)
	RegisterErrorType("JobNotFound", ErrJobNotFound)

	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
}

// IsOptimisticLockingFailure determines if an error indicates an optimistic locking failure.
func IsOptimisticLockingFailure(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrOptimisticLockingFailure)
}

// ExtractErrorMessage extracts the error message string from an error.
// For BatchError, it returns the Message field followed by the root cause, if any.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		if be.OriginalErr != nil {
			return be.Message + ": " + be.OriginalErr.Error()
		}
		return be.Message
	}
	return err.Error()
}
