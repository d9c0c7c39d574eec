// Package dispatch executes due jobs.
//
// A Dispatcher loads a job, routes it to the executor of its type and, when the executor
// fails, undoes the executor's writes and records the failure on the job instead: the
// retry budget is decremented, the error message stored and the job rescheduled after
// the backoff of the retry policy. A job without retries left stays in place as an incident.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/bulkop/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/bulkop/pkg/batch/core/metrics"
	tx "github.com/tigerroll/bulkop/pkg/batch/core/tx"
	"github.com/tigerroll/bulkop/pkg/batch/engine/handler"
	"github.com/tigerroll/bulkop/pkg/batch/engine/monitor"
	"github.com/tigerroll/bulkop/pkg/batch/engine/retry"
	"github.com/tigerroll/bulkop/pkg/batch/engine/seed"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/clock"
	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

const (
	savepointName = "job_execution"
	// maxExceptionMessageLength bounds the stored failure message.
	maxExceptionMessageLength = 4000
)

// ExecutionError reports a job whose execution failed. The failure has been recorded on the job.
type ExecutionError struct {
	JobID   string
	JobType model.JobType
	// RetriesLeft is the remaining retry budget. Zero means the job is now an incident.
	RetriesLeft int
	Err         error
}

// Error implements error.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("job %s (%s) failed, %d retries left: %v", e.JobID, e.JobType, e.RetriesLeft, e.Err)
}

// Unwrap returns the error of the job.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsIncident reports whether the job has exhausted its retries.
func (e *ExecutionError) IsIncident() bool {
	return e.RetriesLeft <= 0
}

// Dispatcher routes jobs to their executors.
type Dispatcher struct {
	store     repository.Store
	txManager tx.TransactionManager
	executors map[model.JobType]JobExecutor
	sizing    *config.BatchConfig
	retry     retry.Policy
	clock     clock.Clock
	recorder  metrics.MetricRecorder
	tracer    metrics.Tracer
}

// Params collects the dependencies of a Dispatcher.
type Params struct {
	fx.In
	Store     repository.Store
	TxManager tx.TransactionManager
	Registry  *handler.Registry
	Seed      *seed.Executor
	Monitor   *monitor.Executor
	Sizing    *config.BatchConfig
	Clock     clock.Clock
	Recorder  metrics.MetricRecorder
	Tracer    metrics.Tracer
	// Retry defaults to retry.NewPolicy(Sizing).
	Retry retry.Policy `optional:"true"`
}

// NewDispatcher creates a Dispatcher routing seed, monitor and work unit jobs.
func NewDispatcher(p Params) *Dispatcher {
	policy := p.Retry
	if policy == nil {
		policy = retry.NewPolicy(p.Sizing)
	}
	return &Dispatcher{
		store:     p.Store,
		txManager: p.TxManager,
		executors: map[model.JobType]JobExecutor{
			model.JobTypeSeed:    p.Seed,
			model.JobTypeMonitor: p.Monitor,
			model.JobTypeBatch:   NewWorkUnitExecutor(p.Store, p.Registry),
		},
		sizing:   p.Sizing,
		retry:    policy,
		clock:    p.Clock,
		recorder: p.Recorder,
		tracer:   p.Tracer,
	}
}

// Execute runs the job with the given id in its own transaction. A job that no longer
// exists is ignored. When the executor fails the returned error is an *ExecutionError;
// any other error means nothing was recorded.
func (d *Dispatcher) Execute(ctx context.Context, jobID string) error {
	started := time.Now()
	var (
		job     *model.Job
		execErr error
		failure *ExecutionError
	)

	err := tx.Run(ctx, d.txManager, func(ctx context.Context) error {
		var err error
		job, err = d.store.FindJobByID(ctx, jobID)
		if err != nil {
			return err
		}
		t, ok := tx.FromContext(ctx)
		if !ok {
			return tx.ErrNoTransaction
		}
		if err := t.Savepoint(savepointName); err != nil {
			return err
		}

		execErr = d.run(ctx, job)
		if execErr == nil {
			return nil
		}
		if err := t.RollbackToSavepoint(savepointName); err != nil {
			return multierror.Append(execErr, fmt.Errorf("rollback to savepoint failed: %w", err))
		}
		failure, err = d.recordFailure(ctx, jobID, execErr)
		return err
	})
	if errors.Is(err, exception.ErrJobNotFound) && job == nil {
		logger.Debugf("Job '%s' no longer exists; skipping.", jobID)
		return nil
	}
	if err != nil {
		return exception.NewBatchErrorf("dispatch", "failed to execute job %s", jobID, err)
	}

	d.recorder.RecordJobExecuted(ctx, job, time.Since(started), execErr)
	if failure != nil {
		if failure.IsIncident() {
			logger.Errorf("Job '%s' of batch '%s' failed without retries left: %v", job.ID, job.BatchID, execErr)
			d.recorder.RecordIncident(ctx, job)
		} else {
			logger.Warnf("Job '%s' of batch '%s' failed, %d retries left: %v", job.ID, job.BatchID, failure.RetriesLeft, execErr)
		}
		return failure
	}
	return nil
}

func (d *Dispatcher) run(ctx context.Context, job *model.Job) (err error) {
	executor, ok := d.executors[job.Type]
	if !ok {
		return exception.NewBatchErrorf("dispatch", "no executor for job type '%s'", job.Type)
	}

	ctx, end := d.tracer.StartJobSpan(ctx, job)
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, p)
		}
		end(err)
	}()
	return executor.Execute(ctx, job)
}

// recordFailure re-reads the job, since the executor's changes to it were rolled back,
// and stores the failure on it.
func (d *Dispatcher) recordFailure(ctx context.Context, jobID string, execErr error) (*ExecutionError, error) {
	job, err := d.store.FindJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	switch {
	case job.Retries <= 0:
	case d.retry.ShouldRetry(execErr):
		job.Retries--
	default:
		job.Retries = 0
	}
	job.ExceptionMessage = truncate(exception.ExtractErrorMessage(execErr), maxExceptionMessageLength)
	// Retries may exceed the default after SetRetries; Backoff clamps the attempt to 1.
	attempt := d.sizing.DefaultJobRetries - job.Retries
	job.DueDate = d.clock.Now().Add(d.retry.Backoff(attempt))
	job.Unlock()
	if err := d.store.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	return &ExecutionError{JobID: job.ID, JobType: job.Type, RetriesLeft: job.Retries, Err: execErr}, nil
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Module provides the dispatcher and the executors it routes to.
var Module = fx.Options(
	seed.Module,
	monitor.Module,
	fx.Provide(NewDispatcher),
)
