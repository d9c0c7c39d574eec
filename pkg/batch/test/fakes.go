package test

import (
	"context"
	"sync"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
)

// RecordingPermissionChecker records every capability it is asked about.
// It returns Err, if set.
type RecordingPermissionChecker struct {
	mu     sync.Mutex
	Checks []port.Capability
	Err    error
}

func (c *RecordingPermissionChecker) Check(_ context.Context, capability port.Capability) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Checks = append(c.Checks, capability)
	return c.Err
}

// RecordingOperationLog keeps written entries in memory. It returns Err, if set,
// without recording the entry.
type RecordingOperationLog struct {
	mu      sync.Mutex
	entries []port.OperationLogEntry
	Err     error
}

func (l *RecordingOperationLog) Write(_ context.Context, entry port.OperationLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return l.Err
	}
	l.entries = append(l.entries, entry)
	return nil
}

// Entries returns a copy of the written entries.
func (l *RecordingOperationLog) Entries() []port.OperationLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]port.OperationLogEntry(nil), l.entries...)
}

// StaticQueryResolver resolves every query to the same targets.
type StaticQueryResolver struct {
	IDs      []string
	Mappings []model.IDMapping
	Err      error
	Queries  []interface{}
}

func (r *StaticQueryResolver) Resolve(_ context.Context, query interface{}) ([]string, []model.IDMapping, error) {
	r.Queries = append(r.Queries, query)
	return r.IDs, r.Mappings, r.Err
}

// TargetCall is one invocation of a RecordingTargetService.
type TargetCall struct {
	Operation string
	TargetID  string
	Argument  interface{}
}

// RecordingTargetService implements every target service port and records each call.
// Calls for an id present in FailOn return the mapped error.
type RecordingTargetService struct {
	mu     sync.Mutex
	calls  []TargetCall
	FailOn map[string]error
}

// NewRecordingTargetService creates an empty service.
func NewRecordingTargetService() *RecordingTargetService {
	return &RecordingTargetService{FailOn: make(map[string]error)}
}

func (s *RecordingTargetService) record(operation, id string, arg interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailOn[id]; ok {
		return err
	}
	s.calls = append(s.calls, TargetCall{Operation: operation, TargetID: id, Argument: arg})
	return nil
}

func (s *RecordingTargetService) UpdateSuspensionState(_ context.Context, instanceID string, suspended bool) error {
	return s.record("suspension", instanceID, suspended)
}

func (s *RecordingTargetService) Correlate(_ context.Context, req port.CorrelationRequest) error {
	return s.record("correlate", req.InstanceID, req)
}

func (s *RecordingTargetService) SetVariables(_ context.Context, instanceID string, variables map[string]interface{}) error {
	return s.record("variables", instanceID, variables)
}

func (s *RecordingTargetService) Delete(_ context.Context, req port.DeletionRequest) error {
	return s.record("delete", req.InstanceID, req)
}

// Calls returns a copy of the successful calls in order.
func (s *RecordingTargetService) Calls() []TargetCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TargetCall(nil), s.calls...)
}

// TargetIDs returns the ids of the successful calls in order.
func (s *RecordingTargetService) TargetIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		ids = append(ids, c.TargetID)
	}
	return ids
}

// RecordingListener records batch lifecycle notifications by batch id.
type RecordingListener struct {
	mu        sync.Mutex
	Created   []string
	Completed []string
	Cancelled []string
}

func (l *RecordingListener) OnBatchCreated(_ context.Context, batch *model.Batch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Created = append(l.Created, batch.ID)
}

func (l *RecordingListener) OnBatchCompleted(_ context.Context, batch *model.Batch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Completed = append(l.Completed, batch.ID)
}

func (l *RecordingListener) OnBatchCancelled(_ context.Context, batch *model.Batch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Cancelled = append(l.Cancelled, batch.ID)
}

var (
	_ port.PermissionChecker  = (*RecordingPermissionChecker)(nil)
	_ port.OperationLogWriter = (*RecordingOperationLog)(nil)
	_ port.QueryResolver      = (*StaticQueryResolver)(nil)
	_ port.SuspensionService  = (*RecordingTargetService)(nil)
	_ port.MessageCorrelator  = (*RecordingTargetService)(nil)
	_ port.VariableSetter     = (*RecordingTargetService)(nil)
	_ port.InstanceDeleter    = (*RecordingTargetService)(nil)
	_ port.BatchListener      = (*RecordingListener)(nil)
)
