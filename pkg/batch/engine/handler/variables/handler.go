// Package variables implements the batch that sets variables on process instances.
package variables

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

// OperationType identifies set-variables batches.
const OperationType = "set-variables"

// Configuration is the persisted configuration of a set-variables batch.
type Configuration struct {
	model.BatchConfiguration
	Variables map[string]interface{} `json:"variables"`
}

type payload struct {
	Variables map[string]interface{} `yaml:"variables"`
}

// Handler writes the configured variables onto each target process instance.
type Handler struct {
	handler.Base
	setter port.VariableSetter
	codec  codec.Codec[Configuration]
}

// New creates the handler.
func New(sizing *config.BatchConfig, setter port.VariableSetter) *Handler {
	return &Handler{
		Base:   handler.Base{Type: OperationType, Sizing: sizing},
		setter: setter,
		codec:  codec.New[Configuration](),
	}
}

// CreateConfiguration reads the variables from props and normalizes their numbers.
func (h *Handler) CreateConfiguration(ids []string, mappings []model.IDMapping, props map[string]interface{}) (handler.Configuration, error) {
	var p payload
	if err := handler.BindPayload(props, &p); err != nil {
		return nil, err
	}
	if len(p.Variables) == 0 {
		return nil, exception.NewValidationError("variables", "at least one variable is required")
	}
	return &Configuration{
		BatchConfiguration: model.BatchConfiguration{IDs: ids, IDMappings: mappings},
		Variables:          codec.NormalizeMap(p.Variables),
	}, nil
}

// Partition returns a copy of parent narrowed to ids.
func (h *Handler) Partition(parent handler.Configuration, ids []string) handler.Configuration {
	cfg := *parent.(*Configuration)
	cfg.BatchConfiguration = parent.Targets().Narrow(ids)
	return &cfg
}

// Execute sets the variables of the unit on each of its instances.
func (h *Handler) Execute(ctx context.Context, unit handler.Configuration, _ string) error {
	cfg, err := handler.As[*Configuration](unit)
	if err != nil {
		return err
	}
	for _, id := range cfg.IDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h.setter.SetVariables(ctx, id, cfg.Variables); err != nil {
			return fmt.Errorf("failed to set variables on '%s': %w", id, err)
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

// AuditProperties records the number of variables.
func (h *Handler) AuditProperties(cfg handler.Configuration) []model.PropertyChange {
	typed, ok := cfg.(*Configuration)
	if !ok {
		return nil
	}
	return []model.PropertyChange{{Name: "nrOfVariables", NewValue: len(typed.Variables)}}
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
