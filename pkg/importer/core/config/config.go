// Package config provides the configuration of the importer: defaults, the
// embedded application.yaml, an optional .env file and environment overrides.
package config

import "time"

// EmbeddedConfig holds the content of the configuration file, typically embedded by main.go.
type EmbeddedConfig []byte

// LogLevel names a logging level ("DEBUG", "INFO", ...). SILENT is only meaningful for the ORM logger.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelSilent LogLevel = "SILENT"
)

// BatchConfig controls how a job is split into batch tasks.
type BatchConfig struct {
	// DefaultBatchSize is used when Start is called without a batch size.
	DefaultBatchSize int `yaml:"default_batch_size"`
	// Queue is the queue class batch tasks are enqueued on.
	Queue string `yaml:"queue"`
	// TaskTimeoutSeconds is the time budget of one batch task.
	TaskTimeoutSeconds int `yaml:"task_timeout_seconds"`
}

// TaskTimeout returns the batch task budget as a duration.
func (c BatchConfig) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutSeconds) * time.Second
}

// QueueConfig configures the job queue.
type QueueConfig struct {
	// Mode is "local" (background worker pool) or "inline" (tasks run inside Enqueue).
	Mode string `yaml:"mode"`
	// Workers is the number of workers per queue class.
	Workers map[string]int `yaml:"workers"`
	// BufferSize is the capacity of each queue class.
	BufferSize int `yaml:"buffer_size"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// DatabaseLevel is the ORM log level ("SILENT", "ERROR", "WARN", "INFO").
	DatabaseLevel string `yaml:"database_level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig selects the storage backends.
type InfrastructureConfig struct {
	// RepositoryType is "sql" or "inmemory" for jobs and the import log.
	RepositoryType string `yaml:"repository_type"`
	// CacheType is "sql" or "inmemory" for checkpoints, unit cache and stop flags.
	CacheType string `yaml:"cache_type"`
	// DBRef is the key under importer.database used by the SQL backends and the record writer.
	DBRef string `yaml:"db_ref"`
	// MigrateOnStart applies the embedded schema migrations at startup.
	MigrateOnStart bool `yaml:"migrate_on_start"`
}

// KafkaConfig configures the Kafka event publisher.
type KafkaConfig struct {
	// Brokers is a comma-separated broker list.
	Brokers  string `yaml:"brokers"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// EventsConfig selects where progress and refresh events are delivered.
type EventsConfig struct {
	// Backends is a comma-separated list of "log", "broker" and "kafka".
	Backends string      `yaml:"backends"`
	Kafka    KafkaConfig `yaml:"kafka"`
	// BrokerBufferSize is the per-subscriber buffer of the in-process broker.
	BrokerBufferSize int `yaml:"broker_buffer_size"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Exporter is "none", "otlp-grpc" or "otlp-http".
	Exporter    string `yaml:"exporter"`
	Endpoint    string `yaml:"endpoint"`
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// MetricsConfig configures metric recording.
type MetricsConfig struct {
	// Exporter is "none", "prometheus", "otlp-grpc" or "otlp-http".
	Exporter string `yaml:"exporter"`
	// Endpoint is the OTLP endpoint for the otlp exporters.
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
	// ListenAddress serves /metrics when the prometheus exporter is selected. Empty disables the listener.
	ListenAddress string `yaml:"listen_address"`
	// AsyncBufferSize enables asynchronous recording when greater than zero.
	AsyncBufferSize int `yaml:"async_buffer_size"`
}

// SchemasConfig restricts and validates the reference schemas.
type SchemasConfig struct {
	// Blocked lists schemas that may not be imported into.
	Blocked []string `yaml:"blocked"`
	// Required lists the mandatory fields of each schema.
	Required map[string][]string `yaml:"required"`
}

// SourcesConfig configures how job sources are opened.
type SourcesConfig struct {
	// BaseDir resolves relative import file paths.
	BaseDir string `yaml:"base_dir"`
	// GCSEndpoint overrides the Cloud Storage endpoint (e.g. an emulator).
	GCSEndpoint string `yaml:"gcs_endpoint"`
	// GCSWithoutAuth disables credentials lookup for Cloud Storage.
	GCSWithoutAuth bool `yaml:"gcs_without_auth"`
	// HTTPTimeoutSeconds bounds Google Sheets downloads.
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds"`
	// DownloadMaxAttempts is the number of tries of a Google Sheets download.
	DownloadMaxAttempts int `yaml:"download_max_attempts"`
	// DownloadBackoffMillis is the wait before the first retry; it doubles on each further retry.
	DownloadBackoffMillis int `yaml:"download_backoff_millis"`
}

// ExportsConfig configures downloadable reports.
type ExportsConfig struct {
	// LogFormat is "parquet" or "csv".
	LogFormat string `yaml:"log_format"`
	// Compression is the parquet codec ("snappy", "gzip", "none").
	Compression string `yaml:"compression"`
}

// ImporterConfig holds everything under the "importer" top-level key.
type ImporterConfig struct {
	Batch          BatchConfig          `yaml:"batch"`
	Queue          QueueConfig          `yaml:"queue"`
	System         SystemConfig         `yaml:"system"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Events         EventsConfig         `yaml:"events"`
	Tracing        TracingConfig        `yaml:"tracing"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Schemas        SchemasConfig        `yaml:"schemas"`
	Sources        SourcesConfig        `yaml:"sources"`
	Exports        ExportsConfig        `yaml:"exports"`
	// DatabaseConfigs holds named database connections, decoded by the database adapter.
	DatabaseConfigs map[string]interface{} `yaml:"database"`
}

// Config is the root of the application configuration.
type Config struct {
	Importer ImporterConfig `yaml:"importer"`
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	return &Config{
		Importer: ImporterConfig{
			Batch: BatchConfig{
				DefaultBatchSize:   25,
				Queue:              "long",
				TaskTimeoutSeconds: 30000,
			},
			Queue: QueueConfig{
				Mode:       "local",
				Workers:    map[string]int{"long": 2, "default": 2, "short": 1},
				BufferSize: 100,
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO", DatabaseLevel: string(LogLevelSilent)},
			},
			Infrastructure: InfrastructureConfig{
				RepositoryType: "sql",
				CacheType:      "sql",
				DBRef:          "metadata",
				MigrateOnStart: true,
			},
			Events: EventsConfig{
				Backends:         "log,broker",
				Kafka:            KafkaConfig{Topic: "data_import_events", ClientID: "surfin-import"},
				BrokerBufferSize: 64,
			},
			Tracing: TracingConfig{Exporter: "none", ServiceName: "surfin-import"},
			Metrics: MetricsConfig{Exporter: "prometheus"},
			Schemas: SchemasConfig{
				Blocked:  []string{"ImportJob", "ImportLog", "User", "Role"},
				Required: map[string][]string{},
			},
			Sources: SourcesConfig{HTTPTimeoutSeconds: 60, DownloadMaxAttempts: 3, DownloadBackoffMillis: 500},
			Exports: ExportsConfig{LogFormat: "parquet", Compression: "snappy"},
			DatabaseConfigs: map[string]interface{}{
				"metadata": map[string]interface{}{
					"type":     "sqlite",
					"database": "surfin-import.db",
					"pool":     map[string]interface{}{"max_open_conns": 1, "max_idle_conns": 1},
				},
			},
		},
	}
}

// IsBlocked reports whether schema is listed in Schemas.Blocked.
func (c *Config) IsBlocked(schema string) bool {
	for _, blocked := range c.Importer.Schemas.Blocked {
		if blocked == schema {
			return true
		}
	}
	return false
}
