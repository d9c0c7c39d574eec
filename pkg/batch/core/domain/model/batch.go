// Package model defines the persistent entities of the batch operation engine.
package model

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a new random identifier for any entity.
func NewID() string {
	return uuid.New().String()
}

// Batch is a persisted bulk operation. It is created by the builder, grows work units
// through its seed job and is removed by its monitor job once every unit has completed.
type Batch struct {
	ID string
	// Type is the operation type naming the handler that executes the batch.
	Type string
	// TotalJobs is the number of work units the batch will have once fully seeded.
	TotalJobs int
	// JobsCreated is the number of work units materialized so far.
	JobsCreated int
	// BatchJobsPerSeed is the number of work units one seed step creates.
	BatchJobsPerSeed int
	// InvocationsPerBatchJob is the number of target ids per work unit.
	InvocationsPerBatchJob int
	// MaterializedUpTo is the seed cursor: target ids [0, MaterializedUpTo) have work units.
	MaterializedUpTo int
	// ConfigurationID references the byte array holding the encoded batch configuration.
	ConfigurationID string

	SeedJobDefinitionID    string
	MonitorJobDefinitionID string
	BatchJobDefinitionID   string

	// SeedJobID is empty once seeding has finished.
	SeedJobID string
	// MonitorJobID is empty until the first seed step has run.
	MonitorJobID string

	TenantID     string
	CreateUserID string
	Suspended    bool
	StartTime    time.Time
	Version      int
}

// NewBatch creates a Batch with a fresh id.
func NewBatch(operationType string, totalJobs, jobsPerSeed, invocationsPerJob int, startTime time.Time) *Batch {
	return &Batch{
		ID:                     NewID(),
		Type:                   operationType,
		TotalJobs:              totalJobs,
		BatchJobsPerSeed:       jobsPerSeed,
		InvocationsPerBatchJob: invocationsPerJob,
		StartTime:              startTime,
	}
}

// IsSeedFinished reports whether every work unit has been materialized.
func (b *Batch) IsSeedFinished() bool {
	return b.SeedJobID == ""
}

// Clone returns a copy that shares no mutable state with b.
func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// HistoricBatch is the audit record of a batch. It outlives the runtime Batch
// and carries an EndTime once the batch has completed or been cancelled.
type HistoricBatch struct {
	ID                     string
	Type                   string
	TotalJobs              int
	BatchJobsPerSeed       int
	InvocationsPerBatchJob int
	SeedJobDefinitionID    string
	MonitorJobDefinitionID string
	BatchJobDefinitionID   string
	TenantID               string
	CreateUserID           string
	StartTime              time.Time
	EndTime                *time.Time
	RemovalTime            *time.Time
}

// NewHistoricBatch derives the audit record from a freshly built batch.
func NewHistoricBatch(b *Batch) *HistoricBatch {
	return &HistoricBatch{
		ID:                     b.ID,
		Type:                   b.Type,
		TotalJobs:              b.TotalJobs,
		BatchJobsPerSeed:       b.BatchJobsPerSeed,
		InvocationsPerBatchJob: b.InvocationsPerBatchJob,
		SeedJobDefinitionID:    b.SeedJobDefinitionID,
		MonitorJobDefinitionID: b.MonitorJobDefinitionID,
		BatchJobDefinitionID:   b.BatchJobDefinitionID,
		TenantID:               b.TenantID,
		CreateUserID:           b.CreateUserID,
		StartTime:              b.StartTime,
	}
}

// Clone returns a deep copy of h.
func (h *HistoricBatch) Clone() *HistoricBatch {
	if h == nil {
		return nil
	}
	c := *h
	if h.EndTime != nil {
		t := *h.EndTime
		c.EndTime = &t
	}
	if h.RemovalTime != nil {
		t := *h.RemovalTime
		c.RemovalTime = &t
	}
	return &c
}

// BatchStatistics summarizes the progress of a running batch.
type BatchStatistics struct {
	BatchID       string
	Type          string
	TotalJobs     int
	JobsCreated   int
	RemainingJobs int
	CompletedJobs int
	FailedJobs    int
	Suspended     bool
}

// NewBatchStatistics derives progress counters from the batch and its pending work units.
// pending counts work units still stored; failed counts those without retries left.
func NewBatchStatistics(b *Batch, pending, failed int) *BatchStatistics {
	return &BatchStatistics{
		BatchID:       b.ID,
		Type:          b.Type,
		TotalJobs:     b.TotalJobs,
		JobsCreated:   b.JobsCreated,
		RemainingJobs: b.TotalJobs - b.JobsCreated + pending,
		CompletedJobs: b.JobsCreated - pending,
		FailedJobs:    failed,
		Suspended:     b.Suspended,
	}
}

// BatchFilter narrows a batch listing. Zero values match everything.
type BatchFilter struct {
	Type      string
	TenantID  string
	Suspended *bool
}

// Matches reports whether b satisfies the filter.
func (f BatchFilter) Matches(b *Batch) bool {
	if f.Type != "" && f.Type != b.Type {
		return false
	}
	if f.TenantID != "" && f.TenantID != b.TenantID {
		return false
	}
	if f.Suspended != nil && *f.Suspended != b.Suspended {
		return false
	}
	return true
}
