// Package builder turns a bulk operation request into a persisted batch.
//
// Build validates and authorizes the request, sizes the batch and, in a single
// transaction, stores the encoded configuration, the batch, its three job
// definitions, its seed job and its historic record together with one operation
// log entry. Nothing is persisted when any step fails.
package builder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/bulkop/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
	tx "github.com/tigerroll/bulkop/pkg/batch/core/tx"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/clock"
	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// ConfigurationName is the name of the byte array holding a batch configuration.
const ConfigurationName = "batch-configuration"

// Request describes a bulk operation.
type Request struct {
	OperationType string
	// TargetIDs are explicit targets. They come first, in the given order.
	TargetIDs  []string
	IDMappings []model.IDMapping
	// Query, when set, is resolved by the QueryResolver and its ids are appended.
	Query interface{}
	// Payload holds the operation specific settings.
	Payload map[string]interface{}
	// RequiredCapability is checked once for the whole batch. A nil capability is a programming error.
	RequiredCapability *port.Capability
	TenantID           string
}

// Builder creates batches.
type Builder struct {
	registry  *handler.Registry
	store     repository.Store
	txManager tx.TransactionManager
	checker   port.PermissionChecker
	resolver  port.QueryResolver
	opLog     port.OperationLogWriter
	listeners []port.BatchListener
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
	sizing    *config.BatchConfig
	clock     clock.Clock
}

// Params collects the dependencies of a Builder. Resolver and Listeners are optional.
type Params struct {
	fx.In
	Registry  *handler.Registry
	Store     repository.Store
	TxManager tx.TransactionManager
	Checker   port.PermissionChecker
	OpLog     port.OperationLogWriter
	Sizing    *config.BatchConfig
	Clock     clock.Clock
	Resolver  port.QueryResolver     `optional:"true"`
	Listeners []port.BatchListener   `group:"batchListeners"`
	Recorder  metrics.MetricRecorder `optional:"true"`
	Tracer    metrics.Tracer         `optional:"true"`
}

// NewBuilder creates a Builder.
func NewBuilder(p Params) *Builder {
	b := &Builder{
		registry:  p.Registry,
		store:     p.Store,
		txManager: p.TxManager,
		checker:   p.Checker,
		resolver:  p.Resolver,
		opLog:     p.OpLog,
		listeners: p.Listeners,
		recorder:  p.Recorder,
		tracer:    p.Tracer,
		sizing:    p.Sizing,
		clock:     p.Clock,
	}
	if b.recorder == nil {
		b.recorder = metrics.NewNoOpMetricRecorder()
	}
	if b.tracer == nil {
		b.tracer = metrics.NewNoOpTracer()
	}
	return b
}

// CalculateTotalJobs returns ceil(targetCount / invocationsPerJob), or 0 when either is not positive.
func CalculateTotalJobs(targetCount, invocationsPerJob int) int {
	if targetCount <= 0 || invocationsPerJob <= 0 {
		return 0
	}
	return (targetCount + invocationsPerJob - 1) / invocationsPerJob
}

// Build validates req and persists the resulting batch. The caller does not wait for
// the operation to complete. Errors match exception.ErrValidation, exception.ErrAuthorization
// or exception.ErrMissingPermissionCheck when the request is rejected.
func (b *Builder) Build(ctx context.Context, req Request) (batch *model.Batch, err error) {
	ctx, end := b.tracer.StartBatchSpan(ctx, "build", "")
	defer func() { end(err) }()

	if req.RequiredCapability == nil {
		return nil, exception.NewBatchError("builder", "batch request carries no permission check", exception.ErrMissingPermissionCheck, false)
	}
	ids, mappings, err := b.resolveTargets(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := b.checker.Check(ctx, *req.RequiredCapability); err != nil {
		return nil, err
	}
	h, err := b.registry.Lookup(req.OperationType)
	if err != nil {
		return nil, err
	}

	ids = model.GroupByDeployment(ids, mappings)
	cfg, err := h.CreateConfiguration(ids, mappings, req.Payload)
	if err != nil {
		return nil, err
	}
	invocations := h.InvocationsPerBatchJob(cfg)
	data, err := h.Encode(cfg)
	if err != nil {
		return nil, exception.NewBatchError("builder", "failed to encode batch configuration", err, false)
	}

	now := b.clock.Now()
	batch = model.NewBatch(h.OperationType(), CalculateTotalJobs(len(ids), invocations), b.sizing.BatchJobsPerSeed, invocations, now)
	batch.TenantID = req.TenantID
	batch.CreateUserID = port.UserFromContext(ctx)

	err = tx.Run(ctx, b.txManager, func(ctx context.Context) error {
		return b.persist(ctx, batch, h, cfg, data, now)
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("Batch '%s' of type '%s' created: %d targets in %d jobs of %d.", batch.ID, batch.Type, len(ids), batch.TotalJobs, invocations)
	b.recorder.RecordBatchCreated(ctx, batch)
	for _, l := range b.listeners {
		l.OnBatchCreated(ctx, batch)
	}
	return batch, nil
}

// resolveTargets merges explicit ids with those of the query. The first occurrence of an id wins.
func (b *Builder) resolveTargets(ctx context.Context, req Request) ([]string, []model.IDMapping, error) {
	if len(req.TargetIDs) == 0 && req.Query == nil {
		return nil, nil, exception.NewValidationError("targetIds", "either target ids or a query must be given")
	}

	ids := append([]string(nil), req.TargetIDs...)
	mappings := append([]model.IDMapping(nil), req.IDMappings...)
	if req.Query != nil {
		if b.resolver == nil {
			return nil, nil, exception.NewValidationError("query", "no query resolver is configured")
		}
		resolved, resolvedMappings, err := b.resolver.Resolve(ctx, req.Query)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve target query: %w", err)
		}
		ids = append(ids, resolved...)
		mappings = append(mappings, resolvedMappings...)
	}

	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, nil, &exception.ValidationError{Field: "targetIds", Reason: "the request matches no targets", Cause: exception.ErrNoTargets}
	}
	return ids, dedupeMappings(mappings), nil
}

func (b *Builder) persist(ctx context.Context, batch *model.Batch, h handler.Handler, cfg handler.Configuration, data []byte, now time.Time) error {
	blob := model.NewByteArray(ConfigurationName, data, batch.TenantID, now)
	if err := b.store.SaveByteArray(ctx, blob); err != nil {
		return err
	}
	batch.ConfigurationID = blob.ID

	seedDef := model.NewJobDefinition(batch.ID, model.JobTypeSeed, batch.ID, batch.TenantID)
	monitorDef := model.NewJobDefinition(batch.ID, model.JobTypeMonitor, batch.ID, batch.TenantID)
	batchDef := model.NewJobDefinition(batch.ID, model.JobTypeBatch, batch.Type, batch.TenantID)
	for _, d := range []*model.JobDefinition{seedDef, monitorDef, batchDef} {
		if err := b.store.SaveJobDefinition(ctx, d); err != nil {
			return err
		}
	}
	batch.SeedJobDefinitionID = seedDef.ID
	batch.MonitorJobDefinitionID = monitorDef.ID
	batch.BatchJobDefinitionID = batchDef.ID

	seed := model.NewJob(model.JobTypeSeed, seedDef.ID, batch.ID, b.sizing.DefaultJobRetries, now)
	seed.TenantID = batch.TenantID
	batch.SeedJobID = seed.ID

	if err := b.store.SaveBatch(ctx, batch); err != nil {
		return err
	}
	if err := b.store.SaveJob(ctx, seed); err != nil {
		return err
	}
	if err := b.store.SaveHistoricBatch(ctx, model.NewHistoricBatch(batch)); err != nil {
		return err
	}

	props := []model.PropertyChange{
		{Name: "nrOfInstances", NewValue: len(cfg.Targets().IDs)},
		{Name: "async", NewValue: true},
	}
	return b.opLog.Write(ctx, port.OperationLogEntry{
		Operation:  model.OperationCreate,
		EntityType: "Batch",
		BatchID:    batch.ID,
		UserID:     batch.CreateUserID,
		Timestamp:  now,
		Properties: append(props, h.AuditProperties(cfg)...),
	})
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func dedupeMappings(mappings []model.IDMapping) []model.IDMapping {
	if len(mappings) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(mappings))
	out := make([]model.IDMapping, 0, len(mappings))
	for _, m := range mappings {
		if _, ok := seen[m.TargetID]; ok {
			continue
		}
		seen[m.TargetID] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Module provides the Builder.
var Module = fx.Options(
	fx.Provide(NewBuilder),
)
