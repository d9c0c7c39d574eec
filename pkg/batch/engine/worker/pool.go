// Package worker provides the in-process job executor: a pool that acquires due jobs
// from the store and executes them through the dispatcher.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	config "github.com/tigerroll/bulkop/pkg/batch/core/config"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/bulkop/pkg/batch/core/domain/repository"
	tx "github.com/tigerroll/bulkop/pkg/batch/core/tx"
	"github.com/tigerroll/bulkop/pkg/batch/engine/dispatch"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/clock"
	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// JobDispatcher executes a single job by id.
type JobDispatcher interface {
	Execute(ctx context.Context, jobID string) error
}

// Pool acquires and executes jobs. At most PoolSize jobs run at a time, and a job whose
// exclusivity key is held by another locked job is never acquired.
type Pool struct {
	jobs       repository.JobRepository
	txManager  tx.TransactionManager
	dispatcher JobDispatcher
	cfg        *config.WorkerConfig
	clock      clock.Clock
	sem        *semaphore.Weighted
	owner      string
}

// NewPool creates a Pool. An empty lock owner defaults to "<hostname>-<pid>".
func NewPool(jobs repository.JobRepository, txManager tx.TransactionManager, dispatcher JobDispatcher, cfg *config.WorkerConfig, clk clock.Clock) *Pool {
	size := cfg.PoolSize
	if size < 1 {
		size = 1
	}
	owner := cfg.LockOwner
	if owner == "" {
		host, _ := os.Hostname()
		owner = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return &Pool{
		jobs:       jobs,
		txManager:  txManager,
		dispatcher: dispatcher,
		cfg:        cfg,
		clock:      clk,
		sem:        semaphore.NewWeighted(int64(size)),
		owner:      owner,
	}
}

// Run acquires and executes jobs until ctx is cancelled. It waits IdleWaitMillis
// whenever a round finds nothing to do or fails.
func (p *Pool) Run(ctx context.Context) error {
	logger.Infof("Worker pool '%s' started with %d workers.", p.owner, p.cfg.PoolSize)
	idle := time.Duration(p.cfg.IdleWaitMillis) * time.Millisecond
	for {
		n, err := p.RunOnce(ctx)
		if ctx.Err() != nil {
			logger.Infof("Worker pool '%s' stopped.", p.owner)
			return nil
		}
		if err != nil {
			logger.Errorf("Worker pool round failed: %v", err)
		}
		if n > 0 && err == nil {
			continue
		}
		select {
		case <-ctx.Done():
			logger.Infof("Worker pool '%s' stopped.", p.owner)
			return nil
		case <-time.After(idle):
		}
	}
}

// RunOnce acquires one round of due jobs and executes them concurrently. It returns the
// number of jobs acquired. Failures of individual jobs are recorded on the jobs and do
// not fail the round. Other errors are collected and returned once every started job has
// ended. Jobs that were not started, or whose failure could not be recorded, are unlocked
// so the next round can pick them up.
func (p *Pool) RunOnce(ctx context.Context) (int, error) {
	jobs, err := p.acquire(ctx)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	var (
		g        errgroup.Group
		mu       sync.Mutex
		result   *multierror.Error
		unlocked []string
	)
	for i, job := range jobs {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			for _, skipped := range jobs[i:] {
				unlocked = append(unlocked, skipped.ID)
			}
			mu.Unlock()
			break
		}
		jobID := job.ID
		g.Go(func() error {
			defer p.sem.Release(1)
			err := p.dispatcher.Execute(ctx, jobID)
			var execErr *dispatch.ExecutionError
			if err == nil || errors.As(err, &execErr) {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			result = multierror.Append(result, err)
			unlocked = append(unlocked, jobID)
			return nil
		})
	}
	_ = g.Wait()

	if len(unlocked) > 0 {
		if err := p.release(context.WithoutCancel(ctx), unlocked); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return len(jobs), result.ErrorOrNil()
}

// release clears the lock this pool holds on each of jobIDs. A job that is gone or
// locked by another owner is left alone.
func (p *Pool) release(ctx context.Context, jobIDs []string) error {
	var result *multierror.Error
	for _, id := range jobIDs {
		err := tx.Run(ctx, p.txManager, func(ctx context.Context) error {
			job, err := p.jobs.FindJobByID(ctx, id)
			if err != nil {
				return err
			}
			if job.LockOwner != p.owner {
				return nil
			}
			job.Unlock()
			return p.jobs.UpdateJob(ctx, job)
		})
		if err != nil && !errors.Is(err, exception.ErrJobNotFound) {
			result = multierror.Append(result, fmt.Errorf("failed to release job %s: %w", id, err))
		}
	}
	if n := len(jobIDs); n > 0 {
		logger.Debugf("Worker pool '%s' released %d unfinished jobs.", p.owner, n)
	}
	return result.ErrorOrNil()
}

// Drain runs rounds until no job is due or maxRounds is reached, and returns the number of
// jobs executed. Jobs rescheduled into the future are not waited for.
func (p *Pool) Drain(ctx context.Context, maxRounds int) (int, error) {
	total := 0
	for i := 0; i < maxRounds; i++ {
		n, err := p.RunOnce(ctx)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
	return total, nil
}

func (p *Pool) acquire(ctx context.Context) ([]*model.Job, error) {
	now := p.clock.Now()
	req := model.AcquireRequest{
		LockOwner: p.owner,
		Now:       now,
		LockUntil: now.Add(time.Duration(p.cfg.LockTimeSeconds) * time.Second),
		MaxJobs:   p.cfg.AcquireSize,
	}
	var jobs []*model.Job
	err := tx.Run(ctx, p.txManager, func(ctx context.Context) error {
		var err error
		jobs, err = p.jobs.AcquireJobs(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to acquire jobs: %w", err)
	}
	if len(jobs) > 0 {
		logger.Debugf("Worker pool '%s' acquired %d jobs.", p.owner, len(jobs))
	}
	return jobs, nil
}

// Module provides the worker pool and runs it for the lifetime of the application.
var Module = fx.Options(
	fx.Provide(func(d *dispatch.Dispatcher) JobDispatcher { return d }),
	fx.Provide(func(s repository.Store) repository.JobRepository { return s }),
	fx.Provide(NewPool),
	fx.Invoke(RunWithLifecycle),
)

// RunWithLifecycle starts p when the application starts and stops it on shutdown.
func RunWithLifecycle(lc fx.Lifecycle, p *Pool) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				_ = p.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
