package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/bulkop/pkg/batch/core/application/port"
	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
	"github.com/tigerroll/bulkop/pkg/batch/engine/builder"
	"github.com/tigerroll/bulkop/pkg/batch/engine/dispatch"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler/correlation"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler/deletion"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler/suspension"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler/variables"
	"github.com/tigerroll/bulkop/pkg/batch/engine/monitor"
	"github.com/tigerroll/bulkop/pkg/batch/engine/seed"
	"github.com/tigerroll/bulkop/pkg/batch/engine/worker"
	"github.com/tigerroll/bulkop/pkg/batch/infrastructure/repository/inmemory"
)

// Engine wires a complete engine over the in-memory store, a manual clock and recording fakes.
type Engine struct {
	Store     *inmemory.InMemoryStore
	TxManager *inmemory.TransactionManager
	Clock     *ManualClock
	Sizing    *config.BatchConfig
	Worker    *config.WorkerConfig

	Targets  *RecordingTargetService
	Checker  *RecordingPermissionChecker
	OpLog    *RecordingOperationLog
	Resolver *StaticQueryResolver
	Listener *RecordingListener

	Registry   *handler.Registry
	Builder    *builder.Builder
	Seed       *seed.Executor
	Monitor    *monitor.Executor
	Dispatcher *dispatch.Dispatcher
	Pool       *worker.Pool
}

// NewEngine creates an Engine using sizing. The worker pool runs four workers.
func NewEngine(t testing.TB, sizing *config.BatchConfig) *Engine {
	t.Helper()
	e := &Engine{
		Store:    inmemory.NewInMemoryStore(),
		Clock:    NewManualClock(Epoch),
		Sizing:   sizing,
		Worker:   &config.WorkerConfig{PoolSize: 4, AcquireSize: 10, IdleWaitMillis: 10, LockTimeSeconds: 300, LockOwner: "test-worker"},
		Targets:  NewRecordingTargetService(),
		Checker:  &RecordingPermissionChecker{},
		OpLog:    &RecordingOperationLog{},
		Resolver: &StaticQueryResolver{},
		Listener: &RecordingListener{},
	}
	e.TxManager = inmemory.NewTransactionManager(e.Store)

	registry, err := handler.NewRegistry(
		suspension.New(sizing, e.Targets),
		correlation.New(sizing, e.Targets),
		variables.New(sizing, e.Targets),
		deletion.New(sizing, e.Targets),
	)
	require.NoError(t, err)
	e.Registry = registry

	recorder := metrics.NewNoOpMetricRecorder()
	tracer := metrics.NewNoOpTracer()
	listeners := []port.BatchListener{e.Listener}

	e.Builder = builder.NewBuilder(builder.Params{
		Registry:  registry,
		Store:     e.Store,
		TxManager: e.TxManager,
		Checker:   e.Checker,
		OpLog:     e.OpLog,
		Sizing:    sizing,
		Clock:     e.Clock,
		Resolver:  e.Resolver,
		Listeners: listeners,
	})
	e.Seed = seed.NewExecutor(e.Store, registry, sizing, e.Clock, recorder)
	e.Monitor = monitor.NewExecutor(monitor.Params{
		Store:     e.Store,
		Sizing:    sizing,
		Clock:     e.Clock,
		Recorder:  recorder,
		Listeners: listeners,
	})
	e.Dispatcher = dispatch.NewDispatcher(dispatch.Params{
		Store:     e.Store,
		TxManager: e.TxManager,
		Registry:  registry,
		Seed:      e.Seed,
		Monitor:   e.Monitor,
		Sizing:    sizing,
		Clock:     e.Clock,
		Recorder:  recorder,
		Tracer:    tracer,
	})
	e.Pool = worker.NewPool(e.Store, e.TxManager, e.Dispatcher, e.Worker, e.Clock)
	return e
}

// SetVariablesRequest returns a set-variables request over ids that passes the permission check.
func SetVariablesRequest(ids ...string) builder.Request {
	return builder.Request{
		OperationType:      variables.OperationType,
		TargetIDs:          ids,
		Payload:            map[string]interface{}{"variables": map[string]interface{}{"approved": true}},
		RequiredCapability: &port.Capability{Resource: port.ResourceBatch, Permission: port.PermissionCreate},
	}
}

// MustBuild builds req and fails the test on error.
func (e *Engine) MustBuild(t testing.TB, req builder.Request) *model.Batch {
	t.Helper()
	batch, err := e.Builder.Build(context.Background(), req)
	require.NoError(t, err)
	return batch
}

// RunSeed executes the batch's seed job until seeding has finished.
func (e *Engine) RunSeed(t testing.TB, batchID string) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 10000; i++ {
		batch, err := e.Store.FindBatchByID(ctx, batchID)
		require.NoError(t, err)
		if batch.IsSeedFinished() {
			return
		}
		require.NoError(t, e.Dispatcher.Execute(ctx, batch.SeedJobID))
	}
	t.Fatalf("seeding of batch %s did not finish", batchID)
}

// WorkUnits returns the work units of a batch with their decoded target ids.
func (e *Engine) WorkUnits(t testing.TB, batchID string) ([]*model.Job, [][]string) {
	t.Helper()
	ctx := context.Background()
	batch, err := e.Store.FindBatchByID(ctx, batchID)
	require.NoError(t, err)
	h, err := e.Registry.Lookup(batch.Type)
	require.NoError(t, err)

	jobs, err := e.Store.FindJobsByBatchID(ctx, batchID, model.JobTypeBatch)
	require.NoError(t, err)
	partitions := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		blob, err := e.Store.FindByteArrayByID(ctx, j.ConfigurationID)
		require.NoError(t, err)
		cfg, err := h.Decode(blob.Bytes)
		require.NoError(t, err)
		partitions = append(partitions, cfg.Targets().IDs)
	}
	return jobs, partitions
}
