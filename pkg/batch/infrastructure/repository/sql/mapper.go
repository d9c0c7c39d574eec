package sql

import (
	"time"

	model "github.com/tigerroll/bulkop/pkg/batch/core/domain/model"
)

// Times are stored in UTC so that comparisons in SQL do not depend on the writer's zone.

func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func fromDomainBatch(b *model.Batch) *BatchEntity {
	return &BatchEntity{
		ID:                     b.ID,
		Type:                   b.Type,
		TotalJobs:              b.TotalJobs,
		JobsCreated:            b.JobsCreated,
		BatchJobsPerSeed:       b.BatchJobsPerSeed,
		InvocationsPerBatchJob: b.InvocationsPerBatchJob,
		MaterializedUpTo:       b.MaterializedUpTo,
		ConfigurationID:        b.ConfigurationID,
		SeedJobDefinitionID:    b.SeedJobDefinitionID,
		MonitorJobDefinitionID: b.MonitorJobDefinitionID,
		BatchJobDefinitionID:   b.BatchJobDefinitionID,
		SeedJobID:              b.SeedJobID,
		MonitorJobID:           b.MonitorJobID,
		TenantID:               b.TenantID,
		CreateUserID:           b.CreateUserID,
		Suspended:              b.Suspended,
		StartTime:              utc(b.StartTime),
		Version:                b.Version,
	}
}

func toDomainBatch(e *BatchEntity) *model.Batch {
	return &model.Batch{
		ID:                     e.ID,
		Type:                   e.Type,
		TotalJobs:              e.TotalJobs,
		JobsCreated:            e.JobsCreated,
		BatchJobsPerSeed:       e.BatchJobsPerSeed,
		InvocationsPerBatchJob: e.InvocationsPerBatchJob,
		MaterializedUpTo:       e.MaterializedUpTo,
		ConfigurationID:        e.ConfigurationID,
		SeedJobDefinitionID:    e.SeedJobDefinitionID,
		MonitorJobDefinitionID: e.MonitorJobDefinitionID,
		BatchJobDefinitionID:   e.BatchJobDefinitionID,
		SeedJobID:              e.SeedJobID,
		MonitorJobID:           e.MonitorJobID,
		TenantID:               e.TenantID,
		CreateUserID:           e.CreateUserID,
		Suspended:              e.Suspended,
		StartTime:              utc(e.StartTime),
		Version:                e.Version,
	}
}

func fromDomainHistoricBatch(h *model.HistoricBatch) *HistoricBatchEntity {
	return &HistoricBatchEntity{
		ID:                     h.ID,
		Type:                   h.Type,
		TotalJobs:              h.TotalJobs,
		BatchJobsPerSeed:       h.BatchJobsPerSeed,
		InvocationsPerBatchJob: h.InvocationsPerBatchJob,
		SeedJobDefinitionID:    h.SeedJobDefinitionID,
		MonitorJobDefinitionID: h.MonitorJobDefinitionID,
		BatchJobDefinitionID:   h.BatchJobDefinitionID,
		TenantID:               h.TenantID,
		CreateUserID:           h.CreateUserID,
		StartTime:              utc(h.StartTime),
		EndTime:                utcPtr(h.EndTime),
		RemovalTime:            utcPtr(h.RemovalTime),
	}
}

func toDomainHistoricBatch(e *HistoricBatchEntity) *model.HistoricBatch {
	return &model.HistoricBatch{
		ID:                     e.ID,
		Type:                   e.Type,
		TotalJobs:              e.TotalJobs,
		BatchJobsPerSeed:       e.BatchJobsPerSeed,
		InvocationsPerBatchJob: e.InvocationsPerBatchJob,
		SeedJobDefinitionID:    e.SeedJobDefinitionID,
		MonitorJobDefinitionID: e.MonitorJobDefinitionID,
		BatchJobDefinitionID:   e.BatchJobDefinitionID,
		TenantID:               e.TenantID,
		CreateUserID:           e.CreateUserID,
		StartTime:              utc(e.StartTime),
		EndTime:                utcPtr(e.EndTime),
		RemovalTime:            utcPtr(e.RemovalTime),
	}
}

func fromDomainJobDefinition(d *model.JobDefinition) *JobDefinitionEntity {
	return &JobDefinitionEntity{
		ID:            d.ID,
		BatchID:       d.BatchID,
		JobType:       d.JobType.String(),
		Configuration: d.Configuration,
		TenantID:      d.TenantID,
		Suspended:     d.Suspended,
	}
}

func toDomainJobDefinition(e *JobDefinitionEntity) *model.JobDefinition {
	return &model.JobDefinition{
		ID:            e.ID,
		BatchID:       e.BatchID,
		JobType:       model.JobType(e.JobType),
		Configuration: e.Configuration,
		TenantID:      e.TenantID,
		Suspended:     e.Suspended,
	}
}

func fromDomainJob(j *model.Job) *JobEntity {
	return &JobEntity{
		ID:                 j.ID,
		Type:               j.Type.String(),
		JobDefinitionID:    j.JobDefinitionID,
		BatchID:            j.BatchID,
		ConfigurationID:    j.ConfigurationID,
		ExclusivityKey:     j.ExclusivityKey,
		DeploymentID:       j.DeploymentID,
		TenantID:           j.TenantID,
		Suspended:          j.Suspended,
		Retries:            j.Retries,
		DueDate:            utc(j.DueDate),
		LockOwner:          j.LockOwner,
		LockExpirationTime: utcPtr(j.LockExpirationTime),
		ExceptionMessage:   j.ExceptionMessage,
		CreateTime:         utc(j.CreateTime),
		Version:            j.Version,
	}
}

func toDomainJob(e *JobEntity) *model.Job {
	return &model.Job{
		ID:                 e.ID,
		Type:               model.JobType(e.Type),
		JobDefinitionID:    e.JobDefinitionID,
		BatchID:            e.BatchID,
		ConfigurationID:    e.ConfigurationID,
		ExclusivityKey:     e.ExclusivityKey,
		DeploymentID:       e.DeploymentID,
		TenantID:           e.TenantID,
		Suspended:          e.Suspended,
		Retries:            e.Retries,
		DueDate:            utc(e.DueDate),
		LockOwner:          e.LockOwner,
		LockExpirationTime: utcPtr(e.LockExpirationTime),
		ExceptionMessage:   e.ExceptionMessage,
		CreateTime:         utc(e.CreateTime),
		Version:            e.Version,
	}
}

func fromDomainByteArray(b *model.ByteArray) *ByteArrayEntity {
	return &ByteArrayEntity{
		ID:         b.ID,
		Name:       b.Name,
		Bytes:      b.Bytes,
		TenantID:   b.TenantID,
		CreateTime: utc(b.CreateTime),
	}
}

func toDomainByteArray(e *ByteArrayEntity) *model.ByteArray {
	return &model.ByteArray{
		ID:         e.ID,
		Name:       e.Name,
		Bytes:      e.Bytes,
		TenantID:   e.TenantID,
		CreateTime: utc(e.CreateTime),
	}
}
