// Package port defines the collaborators the engine depends on but does not implement:
// authorization, target query resolution, audit logging and the domain services
// that carry out each bulk operation.
package port

import (
	"context"
	"time"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
)

// Permission names checked by the engine.
const (
	PermissionCreate = "CREATE"
	PermissionDelete = "DELETE"
	PermissionUpdate = "UPDATE"
	PermissionRead   = "READ"
)

// ResourceBatch is the resource name used in capabilities that concern batches.
const ResourceBatch = "batch"

// Capability is a permission the caller must hold for an operation.
type Capability struct {
	Resource   string
	Permission string
	// BatchType narrows the capability to a single operation type, if set.
	BatchType string
}

// PermissionChecker authorizes the current caller.
type PermissionChecker interface {
	// Check returns an error matching exception.ErrAuthorization when the caller lacks the capability.
	Check(ctx context.Context, capability Capability) error
}

// QueryResolver turns an opaque target query into concrete target ids.
type QueryResolver interface {
	// Resolve returns the ids matched by query in a stable order, plus their deployment origins.
	Resolve(ctx context.Context, query interface{}) ([]string, []model.IDMapping, error)
}

// OperationLogEntry is one audit record.
type OperationLogEntry struct {
	Operation  string
	EntityType string
	BatchID    string
	UserID     string
	Timestamp  time.Time
	Properties []model.PropertyChange
}

// OperationLogWriter persists audit records. Writes join the transaction carried by ctx.
type OperationLogWriter interface {
	Write(ctx context.Context, entry OperationLogEntry) error
}

// BatchListener observes the lifecycle of batches.
type BatchListener interface {
	OnBatchCreated(ctx context.Context, batch *model.Batch)
	OnBatchCompleted(ctx context.Context, batch *model.Batch)
	OnBatchCancelled(ctx context.Context, batch *model.Batch)
}

// The target services below are invoked once per target id, inside the transaction
// carried by ctx. Repeating a call for an id already processed must be harmless.

// SuspensionService changes the suspension state of a process instance.
type SuspensionService interface {
	UpdateSuspensionState(ctx context.Context, instanceID string, suspended bool) error
}

// CorrelationRequest describes a message correlated to one process instance.
type CorrelationRequest struct {
	MessageName string
	Variables   map[string]interface{}
	InstanceID  string
	TenantID    string
}

// MessageCorrelator delivers a message to a process instance.
type MessageCorrelator interface {
	Correlate(ctx context.Context, req CorrelationRequest) error
}

// VariableSetter writes variables onto a process instance.
type VariableSetter interface {
	SetVariables(ctx context.Context, instanceID string, variables map[string]interface{}) error
}

// DeletionRequest describes the deletion of one process instance.
type DeletionRequest struct {
	InstanceID          string
	Reason              string
	SkipCustomListeners bool
	SkipSubprocesses    bool
	// FailIfNotExists rejects the deletion when an id is unknown.
	FailIfNotExists bool
}

// InstanceDeleter deletes a process instance.
type InstanceDeleter interface {
	Delete(ctx context.Context, req DeletionRequest) error
}
