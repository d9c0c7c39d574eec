package inmemory

import (
	"context"
	"fmt"
	"sort"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/bulkop/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/bulkop/pkg/batch/support/util/exception"
)

// SaveJobDefinition stores a copy of definition, replacing any with the same id.
func (r *InMemoryStore) SaveJobDefinition(ctx context.Context, definition *model.JobDefinition) error {
	return r.write(ctx, func(s *state) error {
		if _, exists := s.definitions[definition.ID]; exists {
			return fmt.Errorf("job definition with ID %s already exists", definition.ID)
		}
		s.definitions[definition.ID] = definition.Clone()
		return nil
	})
}

// FindJobDefinitionsByBatchID returns copies of the batch's job definitions.
func (r *InMemoryStore) FindJobDefinitionsByBatchID(ctx context.Context, batchID string) ([]*model.JobDefinition, error) {
	var defs []*model.JobDefinition
	err := r.read(ctx, func(s *state) error {
		for _, d := range s.definitions {
			if d.BatchID == batchID {
				defs = append(defs, d.Clone())
			}
		}
		return nil
	})
	sort.Slice(defs, func(i, j int) bool { return defs[i].JobType < defs[j].JobType })
	return defs, err
}

// UpdateJobDefinitionSuspensionState sets the suspension flag on the batch's definitions of jobType.
func (r *InMemoryStore) UpdateJobDefinitionSuspensionState(ctx context.Context, batchID string, jobType model.JobType, suspended bool) error {
	return r.write(ctx, func(s *state) error {
		for _, d := range s.definitions {
			if d.BatchID == batchID && d.JobType == jobType {
				d.Suspended = suspended
			}
		}
		return nil
	})
}

// DeleteJobDefinitionsByBatchID removes the batch's job definitions.
func (r *InMemoryStore) DeleteJobDefinitionsByBatchID(ctx context.Context, batchID string) error {
	return r.write(ctx, func(s *state) error {
		for id, d := range s.definitions {
			if d.BatchID == batchID {
				delete(s.definitions, id)
			}
		}
		return nil
	})
}

// SaveJob persists a new Job.
func (r *InMemoryStore) SaveJob(ctx context.Context, job *model.Job) error {
	return r.write(ctx, func(s *state) error {
		if _, exists := s.jobs[job.ID]; exists {
			return fmt.Errorf("job with ID %s already exists", job.ID)
		}
		s.jobs[job.ID] = job.Clone()
		return nil
	})
}

// UpdateJob updates an existing Job using optimistic locking.
func (r *InMemoryStore) UpdateJob(ctx context.Context, job *model.Job) error {
	return r.write(ctx, func(s *state) error {
		stored, exists := s.jobs[job.ID]
		if !exists {
			return fmt.Errorf("%w: %s", exception.ErrJobNotFound, job.ID)
		}
		if stored.Version != job.Version {
			return exception.NewOptimisticLockingFailureException("inmemory",
				fmt.Sprintf("job %s was modified concurrently (expected version %d, found %d)", job.ID, job.Version, stored.Version), nil)
		}
		job.Version++
		s.jobs[job.ID] = job.Clone()
		return nil
	})
}

// FindJobByID returns a copy of the job or exception.ErrJobNotFound.
func (r *InMemoryStore) FindJobByID(ctx context.Context, id string) (*model.Job, error) {
	var found *model.Job
	err := r.read(ctx, func(s *state) error {
		j, ok := s.jobs[id]
		if !ok {
			return fmt.Errorf("%w: %s", exception.ErrJobNotFound, id)
		}
		found = j.Clone()
		return nil
	})
	return found, err
}

// FindJobsByBatchID returns copies of the batch's jobs of jobType ordered by creation.
// An empty jobType matches every job.
func (r *InMemoryStore) FindJobsByBatchID(ctx context.Context, batchID string, jobType model.JobType) ([]*model.Job, error) {
	var jobs []*model.Job
	err := r.read(ctx, func(s *state) error {
		for _, j := range s.jobs {
			if j.BatchID == batchID && (jobType == "" || j.Type == jobType) {
				jobs = append(jobs, j.Clone())
			}
		}
		return nil
	})
	sortJobs(jobs, func(j *model.Job) int64 { return j.CreateTime.UnixNano() })
	return jobs, err
}

// CountJobsByBatchID counts the batch's jobs of jobType.
func (r *InMemoryStore) CountJobsByBatchID(ctx context.Context, batchID string, jobType model.JobType) (int, error) {
	count := 0
	err := r.read(ctx, func(s *state) error {
		for _, j := range s.jobs {
			if j.BatchID == batchID && (jobType == "" || j.Type == jobType) {
				count++
			}
		}
		return nil
	})
	return count, err
}

// CountIncidentsByBatchID counts the batch's jobs that have run out of retries.
func (r *InMemoryStore) CountIncidentsByBatchID(ctx context.Context, batchID string) (int, error) {
	count := 0
	err := r.read(ctx, func(s *state) error {
		for _, j := range s.jobs {
			if j.BatchID == batchID && j.Type == model.JobTypeBatch && j.IsIncident() {
				count++
			}
		}
		return nil
	})
	return count, err
}

// UpdateJobSuspensionState sets the suspension flag on the batch's jobs of jobType.
func (r *InMemoryStore) UpdateJobSuspensionState(ctx context.Context, batchID string, jobType model.JobType, suspended bool) error {
	return r.write(ctx, func(s *state) error {
		for _, j := range s.jobs {
			if j.BatchID == batchID && j.Type == jobType && j.Suspended != suspended {
				j.Suspended = suspended
				j.Version++
			}
		}
		return nil
	})
}

// DeleteJob removes a Job. Deleting a missing Job is not an error.
func (r *InMemoryStore) DeleteJob(ctx context.Context, id string) error {
	return r.write(ctx, func(s *state) error {
		delete(s.jobs, id)
		return nil
	})
}

// AcquireJobs locks due jobs for req.LockOwner, oldest due date first.
func (r *InMemoryStore) AcquireJobs(ctx context.Context, req model.AcquireRequest) ([]*model.Job, error) {
	var acquired []*model.Job
	err := r.write(ctx, func(s *state) error {
		held := make(map[string]struct{})
		var candidates []*model.Job
		for _, j := range s.jobs {
			if j.IsLocked(req.Now) {
				if j.ExclusivityKey != "" {
					held[j.ExclusivityKey] = struct{}{}
				}
				continue
			}
			if j.IsAcquirable(req.Now) {
				candidates = append(candidates, j)
			}
		}
		sortJobs(candidates, func(j *model.Job) int64 { return j.DueDate.UnixNano() })

		for _, j := range candidates {
			if req.MaxJobs > 0 && len(acquired) >= req.MaxJobs {
				break
			}
			if j.ExclusivityKey != "" {
				if _, taken := held[j.ExclusivityKey]; taken {
					continue
				}
				held[j.ExclusivityKey] = struct{}{}
			}
			until := req.LockUntil
			j.LockOwner = req.LockOwner
			j.LockExpirationTime = &until
			j.Version++
			acquired = append(acquired, j.Clone())
		}
		return nil
	})
	return acquired, err
}

func sortJobs(jobs []*model.Job, key func(*model.Job) int64) {
	sort.Slice(jobs, func(i, k int) bool {
		a, b := key(jobs[i]), key(jobs[k])
		if a == b {
			return jobs[i].ID < jobs[k].ID
		}
		return a < b
	})
}

// SaveByteArray stores a copy of blob.
func (r *InMemoryStore) SaveByteArray(ctx context.Context, blob *model.ByteArray) error {
	return r.write(ctx, func(s *state) error {
		if _, exists := s.byteArrays[blob.ID]; exists {
			return fmt.Errorf("byte array with ID %s already exists", blob.ID)
		}
		c := *blob
		c.Bytes = append([]byte(nil), blob.Bytes...)
		s.byteArrays[blob.ID] = &c
		return nil
	})
}

// FindByteArrayByID returns a copy of the blob or repository.ErrByteArrayNotFound.
func (r *InMemoryStore) FindByteArrayByID(ctx context.Context, id string) (*model.ByteArray, error) {
	var found *model.ByteArray
	err := r.read(ctx, func(s *state) error {
		b, ok := s.byteArrays[id]
		if !ok {
			return fmt.Errorf("%w: %s", repository.ErrByteArrayNotFound, id)
		}
		c := *b
		c.Bytes = append([]byte(nil), b.Bytes...)
		found = &c
		return nil
	})
	return found, err
}

// DeleteByteArray removes the blob. Missing ids are ignored.
func (r *InMemoryStore) DeleteByteArray(ctx context.Context, id string) error {
	return r.write(ctx, func(s *state) error {
		delete(s.byteArrays, id)
		return nil
	})
}
