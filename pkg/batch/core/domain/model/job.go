package model

import "time"

// JobType distinguishes the three kinds of schedulable work a batch owns.
type JobType string

const (
	// JobTypeSeed materializes work units in bounded steps.
	JobTypeSeed JobType = "batch-seed-job"
	// JobTypeMonitor polls until every work unit is gone and then finalizes the batch.
	JobTypeMonitor JobType = "batch-monitor-job"
	// JobTypeBatch is a work unit executing a slice of target ids.
	JobTypeBatch JobType = "batch-job"
)

// String returns the string representation of the JobType.
func (t JobType) String() string {
	return string(t)
}

// JobDefinition groups all jobs of one kind belonging to a batch.
// Suspending a batch suspends its definitions so newly created jobs start suspended.
type JobDefinition struct {
	ID      string
	BatchID string
	JobType JobType
	// Configuration holds the operation type for work unit definitions.
	Configuration string
	TenantID      string
	Suspended     bool
}

// NewJobDefinition creates a JobDefinition with a fresh id.
func NewJobDefinition(batchID string, jobType JobType, configuration, tenantID string) *JobDefinition {
	return &JobDefinition{
		ID:            NewID(),
		BatchID:       batchID,
		JobType:       jobType,
		Configuration: configuration,
		TenantID:      tenantID,
	}
}

// Clone returns a copy of d.
func (d *JobDefinition) Clone() *JobDefinition {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// Job is a schedulable unit picked up by the worker pool.
type Job struct {
	ID              string
	Type            JobType
	JobDefinitionID string
	BatchID         string
	// ConfigurationID references the partition configuration of a work unit. Empty for seed and monitor jobs.
	ConfigurationID string
	// ExclusivityKey, when set, forbids concurrent execution with any other job carrying the same key.
	ExclusivityKey string
	// DeploymentID is set when every target id of the work unit originates from the same deployment.
	DeploymentID string
	TenantID     string
	Suspended    bool
	Retries      int
	DueDate      time.Time
	// LockOwner and LockExpirationTime are set while a worker holds the job.
	LockOwner          string
	LockExpirationTime *time.Time
	ExceptionMessage   string
	CreateTime         time.Time
	Version            int
}

// NewJob creates a job of the given type with a fresh id, due immediately.
func NewJob(jobType JobType, definitionID, batchID string, retries int, now time.Time) *Job {
	return &Job{
		ID:              NewID(),
		Type:            jobType,
		JobDefinitionID: definitionID,
		BatchID:         batchID,
		Retries:         retries,
		DueDate:         now,
		CreateTime:      now,
	}
}

// IsIncident reports whether the job has exhausted its retries.
func (j *Job) IsIncident() bool {
	return j.Retries <= 0
}

// IsLocked reports whether a worker holds a lock that has not expired at now.
func (j *Job) IsLocked(now time.Time) bool {
	return j.LockOwner != "" && j.LockExpirationTime != nil && j.LockExpirationTime.After(now)
}

// IsAcquirable reports whether a worker may pick the job up at now.
func (j *Job) IsAcquirable(now time.Time) bool {
	return !j.Suspended && j.Retries > 0 && !j.DueDate.After(now) && !j.IsLocked(now)
}

// Unlock clears the worker lock.
func (j *Job) Unlock() {
	j.LockOwner = ""
	j.LockExpirationTime = nil
}

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	if j.LockExpirationTime != nil {
		t := *j.LockExpirationTime
		c.LockExpirationTime = &t
	}
	return &c
}

// ByteArray is an opaque persisted blob, used for encoded batch configurations.
type ByteArray struct {
	ID         string
	Name       string
	Bytes      []byte
	TenantID   string
	CreateTime time.Time
}

// NewByteArray creates a ByteArray with a fresh id.
func NewByteArray(name string, data []byte, tenantID string, now time.Time) *ByteArray {
	return &ByteArray{ID: NewID(), Name: name, Bytes: data, TenantID: tenantID, CreateTime: now}
}

// AcquireRequest describes one acquisition round of the worker pool.
type AcquireRequest struct {
	LockOwner string
	Now       time.Time
	LockUntil time.Time
	MaxJobs   int
}
