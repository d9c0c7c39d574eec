// Package handler defines the contract every bulk operation kind implements
// and the registry that maps operation types to their handlers.
package handler

import (
	"context"
	"fmt"

	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/configbinder"
	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
)

// Configuration is the typed configuration of one operation kind.
// Implementations embed model.BatchConfiguration.
type Configuration interface {
	Targets() *model.BatchConfiguration
}

// Handler implements one kind of bulk operation.
type Handler interface {
	// OperationType is the stable discriminator stored on every batch of this kind.
	OperationType() string
	// InvocationsPerBatchJob is the number of target ids one work unit processes.
	InvocationsPerBatchJob(cfg Configuration) int
	// CreateConfiguration builds the batch configuration from the resolved targets and the
	// operation specific payload of the request. It returns a ValidationError for a bad payload.
	CreateConfiguration(ids []string, mappings []model.IDMapping, payload map[string]interface{}) (Configuration, error)
	// Partition returns the configuration of a work unit processing ids. parent is not modified.
	Partition(parent Configuration, ids []string) Configuration
	// PostProcess adjusts a freshly created work unit, for instance its exclusivity key.
	PostProcess(parent Configuration, job *model.Job, unit Configuration)
	// Execute applies the operation to every target of unit, one at a time, inside the
	// transaction carried by ctx. It must be safe to run again from the start.
	Execute(ctx context.Context, unit Configuration, tenantID string) error
	Encode(cfg Configuration) ([]byte, error)
	Decode(data []byte) (Configuration, error)
	// AuditProperties returns the operation specific properties of the creation log entry.
	AuditProperties(cfg Configuration) []model.PropertyChange
}

// Base carries the behaviour shared by all handlers. Variants embed it.
type Base struct {
	// Type is the operation type.
	Type string
	// Sizing holds the configured work unit sizes.
	Sizing *config.BatchConfig
	// DefaultInvocations, when positive, replaces the global work unit size for this type.
	// A per type entry in Sizing still takes precedence.
	DefaultInvocations int
	// SkipExclusivity disables the exclusivity key of single target work units.
	SkipExclusivity bool
}

// OperationType returns b.Type.
func (b *Base) OperationType() string {
	return b.Type
}

// InvocationsPerBatchJob resolves the work unit size: the per type setting first,
// then the handler default, then the global setting.
func (b *Base) InvocationsPerBatchJob(Configuration) int {
	if b.Sizing != nil {
		if n, ok := b.Sizing.InvocationsPerBatchJobByBatchType[b.Type]; ok && n > 0 {
			return n
		}
	}
	if b.DefaultInvocations > 0 {
		return b.DefaultInvocations
	}
	if b.Sizing != nil && b.Sizing.InvocationsPerBatchJob > 0 {
		return b.Sizing.InvocationsPerBatchJob
	}
	return 1
}

// PostProcess sets the exclusivity key of a work unit with exactly one target to that
// target, and its deployment when every target originates from the same deployment.
func (b *Base) PostProcess(_ Configuration, job *model.Job, unit Configuration) {
	targets := unit.Targets()
	if !b.SkipExclusivity && len(targets.IDs) == 1 {
		job.ExclusivityKey = targets.IDs[0]
	}
	if deploymentID, ok := targets.CommonDeployment(); ok {
		job.DeploymentID = deploymentID
	}
}

// As converts a configuration to the concrete type a handler works with.
func As[T Configuration](cfg Configuration) (T, error) {
	typed, ok := cfg.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected configuration type %T, want %T", cfg, zero)
	}
	return typed, nil
}

// BindPayload decodes the operation specific payload of a request into target.
// Unknown keys are rejected.
func BindPayload(payload map[string]interface{}, target interface{}) error {
	if err := configbinder.BindProperties(payload, target, true); err != nil {
		return &exception.ValidationError{Field: "payload", Reason: err.Error()}
	}
	return nil
}
