// Package correlation implements the batch that correlates a message to process instances.
package correlation

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

// OperationType identifies message correlation batches.
const OperationType = "correlate-message"

// Configuration is the persisted configuration of a correlation batch.
type Configuration struct {
	model.BatchConfiguration
	MessageName string                 `json:"messageName"`
	Variables   map[string]interface{} `json:"variables"`
}

type payload struct {
	MessageName string                 `yaml:"messageName"`
	Variables   map[string]interface{} `yaml:"variables"`
}

// Handler correlates the configured message to each target process instance.
// Work units default to a single target so every unit carries an exclusivity key.
type Handler struct {
	handler.Base
	correlator port.MessageCorrelator
	codec      codec.Codec[Configuration]
}

// New creates the handler.
func New(sizing *config.BatchConfig, correlator port.MessageCorrelator) *Handler {
	return &Handler{
		Base:       handler.Base{Type: OperationType, Sizing: sizing, DefaultInvocations: 1},
		correlator: correlator,
		codec:      codec.New[Configuration](),
	}
}

// CreateConfiguration reads messageName and variables from props. The message name is required.
func (h *Handler) CreateConfiguration(ids []string, mappings []model.IDMapping, props map[string]interface{}) (handler.Configuration, error) {
	var p payload
	if err := handler.BindPayload(props, &p); err != nil {
		return nil, err
	}
	if p.MessageName == "" {
		return nil, exception.NewValidationError("messageName", "message name is required")
	}
	return &Configuration{
		BatchConfiguration: model.BatchConfiguration{IDs: ids, IDMappings: mappings},
		MessageName:        p.MessageName,
		Variables:          codec.NormalizeMap(p.Variables),
	}, nil
}

// Partition returns a copy of parent narrowed to ids.
func (h *Handler) Partition(parent handler.Configuration, ids []string) handler.Configuration {
	cfg := *parent.(*Configuration)
	cfg.BatchConfiguration = parent.Targets().Narrow(ids)
	return &cfg
}

// Execute correlates the message to each instance of the unit in order, with the
// variables of the unit and the tenant of the batch.
func (h *Handler) Execute(ctx context.Context, unit handler.Configuration, tenantID string) error {
	cfg, err := handler.As[*Configuration](unit)
	if err != nil {
		return err
	}
	for _, id := range cfg.IDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := port.CorrelationRequest{
			MessageName: cfg.MessageName,
			Variables:   cfg.Variables,
			InstanceID:  id,
			TenantID:    tenantID,
		}
		if err := h.correlator.Correlate(ctx, req); err != nil {
			return fmt.Errorf("failed to correlate message '%s' to '%s': %w", cfg.MessageName, id, err)
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

// AuditProperties records the message name and the number of variables.
func (h *Handler) AuditProperties(cfg handler.Configuration) []model.PropertyChange {
	typed, ok := cfg.(*Configuration)
	if !ok {
		return nil
	}
	return []model.PropertyChange{
		{Name: "messageName", NewValue: typed.MessageName},
		{Name: "nrOfVariables", NewValue: len(typed.Variables)},
	}
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
