package handler

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/fx"

	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// Registry maps operation types to handlers. It is filled at startup and read concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates a registry holding handlers.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		if err := r.Register(h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a handler. Registering a second handler for the same type is an error.
func (r *Registry) Register(h Handler) error {
	if h == nil || h.OperationType() == "" {
		return fmt.Errorf("handler must declare an operation type")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[h.OperationType()]; exists {
		return fmt.Errorf("handler for operation type '%s' is already registered", h.OperationType())
	}
	r.handlers[h.OperationType()] = h
	logger.Debugf("Registered batch handler '%s'.", h.OperationType())
	return nil
}

// Lookup returns the handler of operationType. An unregistered type yields a
// ValidationError matching exception.ErrUnknownOperationType.
func (r *Registry) Lookup(operationType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[operationType]
	if !ok {
		return nil, &exception.ValidationError{
			Field:  "operationType",
			Reason: fmt.Sprintf("no handler registered for '%s'", operationType),
			Cause:  exception.ErrUnknownOperationType,
		}
	}
	return h, nil
}

// Types returns the registered operation types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// HandlerGroup is the fx value group handler variants are provided into.
const HandlerGroup = "batchHandlers"

// RegistryParams collects every handler provided into HandlerGroup.
type RegistryParams struct {
	fx.In
	Handlers []Handler `group:"batchHandlers"`
}

// NewRegistryProvider builds the registry from the fx value group.
func NewRegistryProvider(p RegistryParams) (*Registry, error) {
	r, err := NewRegistry(p.Handlers...)
	if err != nil {
		return nil, err
	}
	logger.Infof("Batch handlers registered: %v", r.Types())
	return r, nil
}

// Module provides the handler registry.
var Module = fx.Options(
	fx.Provide(NewRegistryProvider),
)
