package sql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tigerroll/bulkop/pkg/batch/adapter/database"
	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/bulkop/pkg/batch/core/domain/repository"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
	"github.com/tigerroll/bulkop/pkg/batch/support/util/logger"
)

// acquireOverfetch scales the candidate query of AcquireJobs, since candidates whose
// exclusivity key is already taken are skipped.
const acquireOverfetch = 4

// SaveJobDefinition inserts or updates the job definition row.
func (s *SQLStore) SaveJobDefinition(ctx context.Context, definition *model.JobDefinition) error {
	return s.create(ctx, fromDomainJobDefinition(definition), "job definition", definition.ID)
}

// FindJobDefinitionsByBatchID returns the batch's job definitions.
func (s *SQLStore) FindJobDefinitionsByBatchID(ctx context.Context, batchID string) ([]*model.JobDefinition, error) {
	executor, err := s.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}
	var entities []JobDefinitionEntity
	if err := executor.ExecuteQueryAdvanced(ctx, &entities, map[string]interface{}{"batch_id": batchID}, "job_type", 0); err != nil {
		return nil, wrap(executor, err, "failed to find job definitions of batch %s", batchID)
	}
	defs := make([]*model.JobDefinition, 0, len(entities))
	for i := range entities {
		defs = append(defs, toDomainJobDefinition(&entities[i]))
	}
	return defs, nil
}

// UpdateJobDefinitionSuspensionState sets the suspension flag on the batch's definitions of jobType.
func (s *SQLStore) UpdateJobDefinitionSuspensionState(ctx context.Context, batchID string, jobType model.JobType, suspended bool) error {
	executor, err := s.getTxExecutor(ctx)
	if err != nil {
		return err
	}
	_, err = executor.ExecuteUpdateColumns(ctx, &JobDefinitionEntity{},
		map[string]interface{}{"suspended": suspended},
		map[string]interface{}{"batch_id": batchID, "job_type": jobType.String()})
	if err != nil {
		return wrap(executor, err, "failed to update suspension state of %s definitions of batch %s", jobType, batchID)
	}
	return nil
}

// DeleteJobDefinitionsByBatchID removes the batch's job definitions.
func (s *SQLStore) DeleteJobDefinitionsByBatchID(ctx context.Context, batchID string) error {
	return s.deleteWhere(ctx, &JobDefinitionEntity{}, map[string]interface{}{"batch_id": batchID})
}

// SaveJob inserts or updates the job row.
func (s *SQLStore) SaveJob(ctx context.Context, job *model.Job) error {
	return s.create(ctx, fromDomainJob(job), "job", job.ID)
}

// UpdateJob writes job guarded by its version. On success job.Version is incremented.
func (s *SQLStore) UpdateJob(ctx context.Context, job *model.Job) error {
	executor, err := s.getTxExecutor(ctx)
	if err != nil {
		return err
	}

	originalVersion := job.Version
	entity := fromDomainJob(job)
	entity.Version = originalVersion + 1

	rowsAffected, err := executor.ExecuteUpdate(ctx, entity, database.OperationUpdate, entity.TableName(),
		map[string]interface{}{"version": originalVersion})
	if err != nil {
		return wrap(executor, err, "failed to update job (ID: %s)", job.ID)
	}
	if rowsAffected == 0 {
		var current []JobEntity
		found, err := s.findOne(ctx, &current, map[string]interface{}{"id": job.ID}, func() int { return len(current) })
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", exception.ErrJobNotFound, job.ID)
		}
		return exception.NewOptimisticLockingFailureException(module,
			fmt.Sprintf("job %s was modified concurrently (expected version %d, found %d)", job.ID, originalVersion, current[0].Version), nil)
	}
	job.Version = entity.Version
	return nil
}

// FindJobByID returns the job or exception.ErrJobNotFound.
func (s *SQLStore) FindJobByID(ctx context.Context, id string) (*model.Job, error) {
	var entities []JobEntity
	found, err := s.findOne(ctx, &entities, map[string]interface{}{"id": id}, func() int { return len(entities) })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", exception.ErrJobNotFound, id)
	}
	return toDomainJob(&entities[0]), nil
}

func jobQuery(batchID string, jobType model.JobType) map[string]interface{} {
	query := map[string]interface{}{"batch_id": batchID}
	if jobType != "" {
		query["type"] = jobType.String()
	}
	return query
}

// FindJobsByBatchID returns the batch's jobs of jobType ordered by creation.
func (s *SQLStore) FindJobsByBatchID(ctx context.Context, batchID string, jobType model.JobType) ([]*model.Job, error) {
	executor, err := s.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}
	var entities []JobEntity
	if err := executor.ExecuteQueryAdvanced(ctx, &entities, jobQuery(batchID, jobType), "create_time, id", 0); err != nil {
		return nil, wrap(executor, err, "failed to find jobs of batch %s", batchID)
	}
	return toDomainJobs(entities), nil
}

// CountJobsByBatchID counts the batch's jobs of jobType.
func (s *SQLStore) CountJobsByBatchID(ctx context.Context, batchID string, jobType model.JobType) (int, error) {
	executor, err := s.getTxExecutor(ctx)
	if err != nil {
		return 0, err
	}
	count, err := executor.Count(ctx, &JobEntity{}, jobQuery(batchID, jobType))
	if err != nil {
		return 0, wrap(executor, err, "failed to count jobs of batch %s", batchID)
	}
	return int(count), nil
}

// CountIncidentsByBatchID counts the batch's jobs that have run out of retries.
func (s *SQLStore) CountIncidentsByBatchID(ctx context.Context, batchID string) (int, error) {
	executor, err := s.getTxExecutor(ctx)
	if err != nil {
		return 0, err
	}
	var entities []JobEntity
	err = executor.ExecuteQueryWhere(ctx, &entities, "batch_id = ? AND type = ? AND retries <= 0",
		[]interface{}{batchID, model.JobTypeBatch.String()}, "", 0)
	if err != nil {
		return 0, wrap(executor, err, "failed to count incidents of batch %s", batchID)
	}
	return len(entities), nil
}

// UpdateJobSuspensionState sets the suspension flag on the batch's jobs of jobType.
func (s *SQLStore) UpdateJobSuspensionState(ctx context.Context, batchID string, jobType model.JobType, suspended bool) error {
	executor, err := s.getTxExecutor(ctx)
	if err != nil {
		return err
	}
	// The version bump makes a worker holding a stale copy fail its next update.
	_, err = executor.ExecuteUpdateColumns(ctx, &JobEntity{},
		map[string]interface{}{"suspended": suspended, "version": gorm.Expr("version + 1")},
		map[string]interface{}{"batch_id": batchID, "type": jobType.String(), "suspended": !suspended})
	if err != nil {
		return wrap(executor, err, "failed to update suspension state of %s jobs of batch %s", jobType, batchID)
	}
	return nil
}

// DeleteJob removes a job. Deleting a missing job is not an error.
func (s *SQLStore) DeleteJob(ctx context.Context, id string) error {
	return s.deleteWhere(ctx, &JobEntity{}, map[string]interface{}{"id": id})
}

// AcquireJobs locks due jobs for req.LockOwner, oldest due date first.
//
// Each candidate is locked with a version guarded update, so a job raced away by
// another process is skipped rather than acquired twice.
func (s *SQLStore) AcquireJobs(ctx context.Context, req model.AcquireRequest) ([]*model.Job, error) {
	executor, err := s.getTxExecutor(ctx)
	if err != nil {
		return nil, err
	}
	now := utc(req.Now)

	var locked []JobEntity
	err = executor.ExecuteQueryWhere(ctx, &locked,
		"exclusivity_key <> '' AND lock_owner <> '' AND lock_expiration_time > ?",
		[]interface{}{now}, "", 0)
	if err != nil {
		return nil, wrap(executor, err, "failed to query locked jobs")
	}
	held := make(map[string]struct{}, len(locked))
	for _, e := range locked {
		held[e.ExclusivityKey] = struct{}{}
	}

	limit := 0
	if req.MaxJobs > 0 {
		limit = req.MaxJobs * acquireOverfetch
	}
	var candidates []JobEntity
	err = executor.ExecuteQueryWhere(ctx, &candidates,
		"suspended = ? AND retries > 0 AND due_date <= ? AND (lock_owner = '' OR lock_expiration_time IS NULL OR lock_expiration_time <= ?)",
		[]interface{}{false, now, now}, "due_date, id", limit)
	if err != nil {
		return nil, wrap(executor, err, "failed to query acquirable jobs")
	}

	var acquired []*model.Job
	for i := range candidates {
		if req.MaxJobs > 0 && len(acquired) >= req.MaxJobs {
			break
		}
		job := toDomainJob(&candidates[i])
		if job.ExclusivityKey != "" {
			if _, taken := held[job.ExclusivityKey]; taken {
				continue
			}
		}
		until := req.LockUntil
		job.LockOwner = req.LockOwner
		job.LockExpirationTime = &until
		if err := s.UpdateJob(ctx, job); err != nil {
			if errors.Is(err, exception.ErrOptimisticLockingFailure) || errors.Is(err, exception.ErrJobNotFound) {
				logger.Debugf("job %s was taken by another worker, skipping", job.ID)
				continue
			}
			return acquired, err
		}
		if job.ExclusivityKey != "" {
			held[job.ExclusivityKey] = struct{}{}
		}
		acquired = append(acquired, job)
	}
	return acquired, nil
}

func toDomainJobs(entities []JobEntity) []*model.Job {
	jobs := make([]*model.Job, 0, len(entities))
	for i := range entities {
		jobs = append(jobs, toDomainJob(&entities[i]))
	}
	return jobs
}

// SaveByteArray inserts or updates the blob.
func (s *SQLStore) SaveByteArray(ctx context.Context, blob *model.ByteArray) error {
	return s.create(ctx, fromDomainByteArray(blob), "byte array", blob.ID)
}

// FindByteArrayByID returns the blob or repository.ErrByteArrayNotFound.
func (s *SQLStore) FindByteArrayByID(ctx context.Context, id string) (*model.ByteArray, error) {
	var entities []ByteArrayEntity
	found, err := s.findOne(ctx, &entities, map[string]interface{}{"id": id}, func() int { return len(entities) })
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", repository.ErrByteArrayNotFound, id)
	}
	return toDomainByteArray(&entities[0]), nil
}

// DeleteByteArray removes the blob. Missing ids are ignored.
func (s *SQLStore) DeleteByteArray(ctx context.Context, id string) error {
	return s.deleteWhere(ctx, &ByteArrayEntity{}, map[string]interface{}{"id": id})
}
