// Package deletion implements the batch that deletes process instances.
package deletion

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	"github.com/tigerroll/bulkop/pkg/batch/engine/codec"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler"
)

// OperationType identifies deletion batches.
const OperationType = "process-instance-deletion"

// Configuration is the persisted configuration of a deletion batch.
type Configuration struct {
	model.BatchConfiguration
	DeleteReason        string `json:"deleteReason"`
	SkipCustomListeners bool   `json:"skipCustomListeners"`
	SkipSubprocesses    bool   `json:"skipSubprocesses"`
	FailIfNotExists     bool   `json:"failIfNotExists"`
}

type payload struct {
	DeleteReason        string `yaml:"deleteReason"`
	SkipCustomListeners bool   `yaml:"skipCustomListeners"`
	SkipSubprocesses    bool   `yaml:"skipSubprocesses"`
	FailIfNotExists     *bool  `yaml:"failIfNotExists"`
}

// Handler deletes each target process instance.
type Handler struct {
	handler.Base
	deleter port.InstanceDeleter
	codec   codec.Codec[Configuration]
}

// New creates the handler.
func New(sizing *config.BatchConfig, deleter port.InstanceDeleter) *Handler {
	return &Handler{
		Base:    handler.Base{Type: OperationType, Sizing: sizing},
		deleter: deleter,
		codec:   codec.New[Configuration](),
	}
}

// CreateConfiguration accepts an empty payload. FailIfNotExists defaults to true.
func (h *Handler) CreateConfiguration(ids []string, mappings []model.IDMapping, props map[string]interface{}) (handler.Configuration, error) {
	var p payload
	if err := handler.BindPayload(props, &p); err != nil {
		return nil, err
	}
	failIfNotExists := true
	if p.FailIfNotExists != nil {
		failIfNotExists = *p.FailIfNotExists
	}
	return &Configuration{
		BatchConfiguration:  model.BatchConfiguration{IDs: ids, IDMappings: mappings},
		DeleteReason:        p.DeleteReason,
		SkipCustomListeners: p.SkipCustomListeners,
		SkipSubprocesses:    p.SkipSubprocesses,
		FailIfNotExists:     failIfNotExists,
	}, nil
}

// Partition returns a copy of parent narrowed to ids.
func (h *Handler) Partition(parent handler.Configuration, ids []string) handler.Configuration {
	cfg := *parent.(*Configuration)
	cfg.BatchConfiguration = parent.Targets().Narrow(ids)
	return &cfg
}

// Execute deletes each instance of the unit, stopping at the first failure.
func (h *Handler) Execute(ctx context.Context, unit handler.Configuration, _ string) error {
	cfg, err := handler.As[*Configuration](unit)
	if err != nil {
		return err
	}
	for _, id := range cfg.IDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := port.DeletionRequest{
			InstanceID:          id,
			Reason:              cfg.DeleteReason,
			SkipCustomListeners: cfg.SkipCustomListeners,
			SkipSubprocesses:    cfg.SkipSubprocesses,
			FailIfNotExists:     cfg.FailIfNotExists,
		}
		if err := h.deleter.Delete(ctx, req); err != nil {
			return fmt.Errorf("failed to delete '%s': %w", id, err)
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

// AuditProperties records the delete reason and whether custom listeners are skipped.
func (h *Handler) AuditProperties(cfg handler.Configuration) []model.PropertyChange {
	typed, ok := cfg.(*Configuration)
	if !ok {
		return nil
	}
	return []model.PropertyChange{
		{Name: "deleteReason", NewValue: typed.DeleteReason},
		{Name: "skipCustomListeners", NewValue: typed.SkipCustomListeners},
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
