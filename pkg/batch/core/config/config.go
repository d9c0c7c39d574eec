package config

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// EmbeddedConfig holds the raw bytes of the application YAML, usually provided via go:embed.
type EmbeddedConfig []byte

// LogLevel is a named log level as accepted by logger.SetLogLevel.
type LogLevel string

const (
	LogLevelTrace  LogLevel = "TRACE"
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// Store kinds accepted by InfrastructureConfig.Store.
const (
	StoreInMemory = "inmemory"
	StoreSQL      = "sql"
)

// Exporter kinds accepted by the observability section.
const (
	ExporterNone       = "none"
	ExporterPrometheus = "prometheus"
	ExporterOTLPGRPC   = "otlp-grpc"
	ExporterOTLPHTTP   = "otlp-http"
)

// BatchConfig controls how batches are sized and how their jobs are scheduled.
type BatchConfig struct {
	// InvocationsPerBatchJob is the default number of target ids handled by one work unit.
	InvocationsPerBatchJob int `yaml:"invocations_per_batch_job"`
	// InvocationsPerBatchJobByBatchType overrides InvocationsPerBatchJob per operation type.
	InvocationsPerBatchJobByBatchType map[string]int `yaml:"invocations_per_batch_job_by_batch_type"`
	// BatchJobsPerSeed is the number of work units a single seed step materializes.
	BatchJobsPerSeed int `yaml:"batch_jobs_per_seed"`
	// BatchPollTimeSeconds is the delay between two monitor checks.
	BatchPollTimeSeconds int `yaml:"batch_poll_time_seconds"`
	// DefaultJobRetries is the retry budget of newly created jobs.
	DefaultJobRetries int `yaml:"default_job_retries"`
	// RetryBackoffSeconds delays a failed job before its next attempt.
	RetryBackoffSeconds int `yaml:"retry_backoff_seconds"`
	// RetryBackoffMaxSeconds, when above RetryBackoffSeconds, doubles the delay per attempt up to this bound.
	RetryBackoffMaxSeconds int `yaml:"retry_backoff_max_seconds"`
	// NonRetryableErrors names errors that turn a failed job into an incident at once.
	// Names are registered exception types, message fragments or Go type names.
	NonRetryableErrors []string `yaml:"non_retryable_errors"`
}

// WorkerConfig configures the job acquisition pool.
type WorkerConfig struct {
	PoolSize        int    `yaml:"pool_size"`
	AcquireSize     int    `yaml:"acquire_size"`
	IdleWaitMillis  int    `yaml:"idle_wait_millis"`
	LockTimeSeconds int    `yaml:"lock_time_seconds"`
	LockOwner       string `yaml:"lock_owner"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig selects the persistence backend.
type InfrastructureConfig struct {
	Store      string `yaml:"store"`        // "inmemory" or "sql"
	StoreDBRef string `yaml:"store_db_ref"` // key under bulkop.database used when Store is "sql"
	// AutoMigrate applies the embedded schema on start when Store is "sql".
	AutoMigrate bool `yaml:"auto_migrate"`
	// ExportStorageRef is the key under bulkop.storage used by the history exporter.
	ExportStorageRef string `yaml:"export_storage_ref"`
	// ExportCompression is the parquet codec of history exports: SNAPPY, GZIP or NONE.
	ExportCompression string `yaml:"export_compression"`
}

type TracingConfig struct {
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// ObservabilityConfig configures metrics and tracing exporters.
type ObservabilityConfig struct {
	ServiceName     string        `yaml:"service_name"`
	MetricsEnabled  bool          `yaml:"metrics_enabled"`
	MetricsExporter string        `yaml:"metrics_exporter"`
	MetricsEndpoint string        `yaml:"metrics_endpoint"`
	MetricsAddress  string        `yaml:"metrics_address"` // listen address of the Prometheus scrape endpoint
	// AsyncBufferSize, when positive, records metrics on a background goroutine with this queue size.
	AsyncBufferSize int           `yaml:"async_buffer_size"`
	Tracing         TracingConfig `yaml:"tracing"`
}

// QueryConfig is a named SQL query resolving batch targets.
type QueryConfig struct {
	// DBRef is the key under bulkop.database the query runs on.
	DBRef string `yaml:"db_ref"`
	// SQL selects the target id and optionally its deployment id, in a stable order.
	SQL string `yaml:"sql"`
}

type BulkopConfig struct {
	Batch          BatchConfig          `yaml:"batch"`
	Worker         WorkerConfig         `yaml:"worker"`
	System         SystemConfig         `yaml:"system"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Observability  ObservabilityConfig  `yaml:"observability"`
	// DatabaseConfigs maps a connection name to its raw settings. Decoded by the database adapter.
	DatabaseConfigs map[string]interface{} `yaml:"database"`
	// StorageConfigs maps a storage name to its raw settings. Decoded by the storage adapters.
	StorageConfigs map[string]interface{} `yaml:"storage"`
	// Queries maps a query name to the SQL resolving batch targets.
	Queries map[string]QueryConfig `yaml:"queries"`
}

// Config is the root of the application configuration.
type Config struct {
	Bulkop         BulkopConfig   `yaml:"bulkop"`
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Bulkop: BulkopConfig{
			Batch: BatchConfig{
				InvocationsPerBatchJob:            1,
				InvocationsPerBatchJobByBatchType: map[string]int{},
				BatchJobsPerSeed:                  100,
				BatchPollTimeSeconds:              30,
				DefaultJobRetries:                 3,
				RetryBackoffSeconds:               10,
			},
			Worker: WorkerConfig{
				PoolSize:        4,
				AcquireSize:     10,
				IdleWaitMillis:  500,
				LockTimeSeconds: 300,
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: string(LogLevelInfo), Format: "console"},
			},
			Infrastructure: InfrastructureConfig{
				Store:            StoreInMemory,
				StoreDBRef:       "metadata",
				ExportStorageRef: "history",
			},
			Observability: ObservabilityConfig{
				ServiceName:     "bulkop",
				MetricsExporter: ExporterPrometheus,
				MetricsAddress:  ":9090",
				Tracing:         TracingConfig{Exporter: ExporterNone},
			},
			DatabaseConfigs: map[string]interface{}{},
			StorageConfigs:  map[string]interface{}{},
			Queries:         map[string]QueryConfig{},
		},
	}
}

// InvocationsFor returns the number of target ids per work unit for an operation type.
func (c BatchConfig) InvocationsFor(operationType string) int {
	if n, ok := c.InvocationsPerBatchJobByBatchType[operationType]; ok && n > 0 {
		return n
	}
	return c.InvocationsPerBatchJob
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	b := c.Bulkop.Batch
	if b.InvocationsPerBatchJob < 1 {
		result = multierror.Append(result, fmt.Errorf("batch.invocations_per_batch_job must be >= 1, got %d", b.InvocationsPerBatchJob))
	}
	for opType, n := range b.InvocationsPerBatchJobByBatchType {
		if n < 1 {
			result = multierror.Append(result, fmt.Errorf("batch.invocations_per_batch_job_by_batch_type[%s] must be >= 1, got %d", opType, n))
		}
	}
	if b.BatchJobsPerSeed < 1 {
		result = multierror.Append(result, fmt.Errorf("batch.batch_jobs_per_seed must be >= 1, got %d", b.BatchJobsPerSeed))
	}
	if b.BatchPollTimeSeconds < 0 {
		result = multierror.Append(result, fmt.Errorf("batch.batch_poll_time_seconds must not be negative"))
	}
	if b.RetryBackoffSeconds < 0 || b.RetryBackoffMaxSeconds < 0 {
		result = multierror.Append(result, fmt.Errorf("batch.retry_backoff_seconds and batch.retry_backoff_max_seconds must not be negative"))
	}
	if b.DefaultJobRetries < 1 {
		result = multierror.Append(result, fmt.Errorf("batch.default_job_retries must be >= 1, got %d", b.DefaultJobRetries))
	}
	w := c.Bulkop.Worker
	if w.PoolSize < 1 {
		result = multierror.Append(result, fmt.Errorf("worker.pool_size must be >= 1, got %d", w.PoolSize))
	}
	if w.AcquireSize < 1 {
		result = multierror.Append(result, fmt.Errorf("worker.acquire_size must be >= 1, got %d", w.AcquireSize))
	}
	switch c.Bulkop.Infrastructure.Store {
	case StoreInMemory, StoreSQL:
	default:
		result = multierror.Append(result, fmt.Errorf("infrastructure.store must be '%s' or '%s', got '%s'", StoreInMemory, StoreSQL, c.Bulkop.Infrastructure.Store))
	}
	for name, q := range c.Bulkop.Queries {
		if q.DBRef == "" || q.SQL == "" {
			result = multierror.Append(result, fmt.Errorf("queries.%s needs db_ref and sql", name))
		}
	}
	switch c.Bulkop.Observability.Tracing.Exporter {
	case "", ExporterNone, ExporterOTLPGRPC, ExporterOTLPHTTP:
	default:
		result = multierror.Append(result, fmt.Errorf("observability.tracing.exporter '%s' is not supported", c.Bulkop.Observability.Tracing.Exporter))
	}
	switch c.Bulkop.Observability.MetricsExporter {
	case ExporterPrometheus, ExporterOTLPGRPC, ExporterOTLPHTTP:
	default:
		result = multierror.Append(result, fmt.Errorf("observability.metrics_exporter '%s' is not supported", c.Bulkop.Observability.MetricsExporter))
	}
	return result.ErrorOrNil()
}
