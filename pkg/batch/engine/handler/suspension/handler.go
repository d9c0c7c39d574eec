// Package suspension implements the batch that suspends or activates process instances.
package suspension

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	"github.com/tigerroll/bulkop/pkg/batch/engine/codec"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler"
	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
)

// OperationType identifies suspension batches.
const OperationType = "process-instance-update-suspension-state"

// Configuration is the persisted configuration of a suspension batch.
type Configuration struct {
	model.BatchConfiguration
	Suspended bool `json:"suspended"`
}

type payload struct {
	Suspended *bool `yaml:"suspended"`
}

// Handler updates the suspension state of each target process instance.
type Handler struct {
	handler.Base
	service port.SuspensionService
	codec   codec.Codec[Configuration]
}

// New creates the handler.
func New(sizing *config.BatchConfig, service port.SuspensionService) *Handler {
	return &Handler{
		Base:    handler.Base{Type: OperationType, Sizing: sizing},
		service: service,
		codec:   codec.New[Configuration](),
	}
}

// CreateConfiguration reads the suspended flag from props.
func (h *Handler) CreateConfiguration(ids []string, mappings []model.IDMapping, props map[string]interface{}) (handler.Configuration, error) {
	var p payload
	if err := handler.BindPayload(props, &p); err != nil {
		return nil, err
	}
	if p.Suspended == nil {
		return nil, exception.NewValidationError("suspended", "suspension state is required")
	}
	return &Configuration{
		BatchConfiguration: model.BatchConfiguration{IDs: ids, IDMappings: mappings},
		Suspended:          *p.Suspended,
	}, nil
}

// Partition returns a copy of parent narrowed to ids.
func (h *Handler) Partition(parent handler.Configuration, ids []string) handler.Configuration {
	cfg := *parent.(*Configuration)
	cfg.BatchConfiguration = parent.Targets().Narrow(ids)
	return &cfg
}

// Execute sets the suspension state of each instance of the unit.
func (h *Handler) Execute(ctx context.Context, unit handler.Configuration, _ string) error {
	cfg, err := handler.As[*Configuration](unit)
	if err != nil {
		return err
	}
	for _, id := range cfg.IDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h.service.UpdateSuspensionState(ctx, id, cfg.Suspended); err != nil {
			return fmt.Errorf("failed to update suspension state of '%s': %w", id, err)
		}
	}
	return nil
}

// Encode serializes a *Configuration.
func (h *Handler) Encode(cfg handler.Configuration) ([]byte, error) {
	typed, err := handler.As[*Configuration](cfg)
	if err != nil {
		return nil, err
	}
	return h.codec.Encode(*typed)
}

// Decode deserializes a *Configuration.
func (h *Handler) Decode(data []byte) (handler.Configuration, error) {
	cfg, err := h.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AuditProperties records the requested suspension state.
func (h *Handler) AuditProperties(cfg handler.Configuration) []model.PropertyChange {
	state := "active"
	if typed, ok := cfg.(*Configuration); ok && typed.Suspended {
		state = "suspended"
	}
	return []model.PropertyChange{{Name: "suspensionState", NewValue: state}}
}

var _ handler.Handler = (*Handler)(nil)

// Module provides the handler into the handler group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		New,
		fx.As(new(handler.Handler)),
		fx.ResultTags(`group:"batchHandlers"`),
	)),
)
