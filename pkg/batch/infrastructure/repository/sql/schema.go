package sql

import "time"

// Table names of the store. The DDL lives in the migration component.
const (
	TableBatch         = "bulkop_batch"
	TableHistoricBatch = "bulkop_historic_batch"
	TableJobDefinition = "bulkop_job_definition"
	TableJob           = "bulkop_job"
	TableByteArray     = "bulkop_byte_array"
	TableOperationLog  = "bulkop_operation_log"
)

// BatchEntity is the persistent form of model.Batch.
type BatchEntity struct {
	ID                     string    `gorm:"column:id;primaryKey"`
	Type                   string    `gorm:"column:type"`
	TotalJobs              int       `gorm:"column:total_jobs"`
	JobsCreated            int       `gorm:"column:jobs_created"`
	BatchJobsPerSeed       int       `gorm:"column:batch_jobs_per_seed"`
	InvocationsPerBatchJob int       `gorm:"column:invocations_per_batch_job"`
	MaterializedUpTo       int       `gorm:"column:materialized_up_to"`
	ConfigurationID        string    `gorm:"column:configuration_id"`
	SeedJobDefinitionID    string    `gorm:"column:seed_job_definition_id"`
	MonitorJobDefinitionID string    `gorm:"column:monitor_job_definition_id"`
	BatchJobDefinitionID   string    `gorm:"column:batch_job_definition_id"`
	SeedJobID              string    `gorm:"column:seed_job_id"`
	MonitorJobID           string    `gorm:"column:monitor_job_id"`
	TenantID               string    `gorm:"column:tenant_id"`
	CreateUserID           string    `gorm:"column:create_user_id"`
	Suspended              bool      `gorm:"column:suspended"`
	StartTime              time.Time `gorm:"column:start_time"`
	Version                int       `gorm:"column:version"`
}

// TableName returns the table of the entity.
func (BatchEntity) TableName() string { return TableBatch }

// HistoricBatchEntity is the persistent form of model.HistoricBatch.
type HistoricBatchEntity struct {
	ID                     string     `gorm:"column:id;primaryKey"`
	Type                   string     `gorm:"column:type"`
	TotalJobs              int        `gorm:"column:total_jobs"`
	BatchJobsPerSeed       int        `gorm:"column:batch_jobs_per_seed"`
	InvocationsPerBatchJob int        `gorm:"column:invocations_per_batch_job"`
	SeedJobDefinitionID    string     `gorm:"column:seed_job_definition_id"`
	MonitorJobDefinitionID string     `gorm:"column:monitor_job_definition_id"`
	BatchJobDefinitionID   string     `gorm:"column:batch_job_definition_id"`
	TenantID               string     `gorm:"column:tenant_id"`
	CreateUserID           string     `gorm:"column:create_user_id"`
	StartTime              time.Time  `gorm:"column:start_time"`
	EndTime                *time.Time `gorm:"column:end_time"`
	RemovalTime            *time.Time `gorm:"column:removal_time"`
}

// TableName returns the table of the entity.
func (HistoricBatchEntity) TableName() string { return TableHistoricBatch }

// JobDefinitionEntity is the persistent form of model.JobDefinition.
type JobDefinitionEntity struct {
	ID            string `gorm:"column:id;primaryKey"`
	BatchID       string `gorm:"column:batch_id"`
	JobType       string `gorm:"column:job_type"`
	Configuration string `gorm:"column:configuration"`
	TenantID      string `gorm:"column:tenant_id"`
	Suspended     bool   `gorm:"column:suspended"`
}

// TableName returns the table of the entity.
func (JobDefinitionEntity) TableName() string { return TableJobDefinition }

// JobEntity is the persistent form of model.Job.
type JobEntity struct {
	ID                 string     `gorm:"column:id;primaryKey"`
	Type               string     `gorm:"column:type"`
	JobDefinitionID    string     `gorm:"column:job_definition_id"`
	BatchID            string     `gorm:"column:batch_id"`
	ConfigurationID    string     `gorm:"column:configuration_id"`
	ExclusivityKey     string     `gorm:"column:exclusivity_key"`
	DeploymentID       string     `gorm:"column:deployment_id"`
	TenantID           string     `gorm:"column:tenant_id"`
	Suspended          bool       `gorm:"column:suspended"`
	Retries            int        `gorm:"column:retries"`
	DueDate            time.Time  `gorm:"column:due_date"`
	LockOwner          string     `gorm:"column:lock_owner"`
	LockExpirationTime *time.Time `gorm:"column:lock_expiration_time"`
	ExceptionMessage   string     `gorm:"column:exception_message"`
	CreateTime         time.Time  `gorm:"column:create_time"`
	Version            int        `gorm:"column:version"`
}

// TableName returns the table of the entity.
func (JobEntity) TableName() string { return TableJob }

// ByteArrayEntity is the persistent form of model.ByteArray.
type ByteArrayEntity struct {
	ID         string    `gorm:"column:id;primaryKey"`
	Name       string    `gorm:"column:name"`
	Bytes      []byte    `gorm:"column:bytes"`
	TenantID   string    `gorm:"column:tenant_id"`
	CreateTime time.Time `gorm:"column:create_time"`
}

// TableName returns the table of the entity.
func (ByteArrayEntity) TableName() string { return TableByteArray }

// OperationLogEntity is one property change of an operation log entry.
// Entries without properties are stored as a single row with an empty property.
type OperationLogEntity struct {
	ID          string    `gorm:"column:id;primaryKey"`
	OperationID string    `gorm:"column:operation_id"`
	Operation   string    `gorm:"column:operation"`
	EntityType  string    `gorm:"column:entity_type"`
	BatchID     string    `gorm:"column:batch_id"`
	UserID      string    `gorm:"column:user_id"`
	LogTime     time.Time `gorm:"column:log_time"`
	Property    string    `gorm:"column:property"`
	OrgValue    string    `gorm:"column:org_value"`
	NewValue    string    `gorm:"column:new_value"`
}

// TableName returns the table of the entity.
func (OperationLogEntity) TableName() string { return TableOperationLog }
