package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
importer:
  batch:
    default_batch_size: 10
  queue:
    workers:
      long: 3
  events:
    backends: "log"
    kafka:
      brokers: "${TEST_KAFKA_BROKERS}"
  schemas:
    blocked: ["Secret"]
    required:
      Customer: ["customer_name"]
  database:
    metadata:
      type: postgres
      host: db.internal
      port: 5432
`

func TestLoadConfig_MergesYAMLOntoDefaults(t *testing.T) {
	t.Setenv("TEST_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadConfig("testdata/missing.env", EmbeddedConfig(testYAML))
	require.NoError(t, err)

	c := cfg.Importer
	assert.Equal(t, 10, c.Batch.DefaultBatchSize)
	assert.Equal(t, "long", c.Batch.Queue, "default kept")
	assert.Equal(t, 30000, c.Batch.TaskTimeoutSeconds, "default kept")
	assert.Equal(t, 3, c.Queue.Workers["long"])
	assert.Equal(t, "log", c.Events.Backends)
	assert.Equal(t, "k1:9092,k2:9092", c.Events.Kafka.Brokers)
	assert.Equal(t, "data_import_events", c.Events.Kafka.Topic)
	assert.Equal(t, []string{"Secret"}, c.Schemas.Blocked)
	assert.Equal(t, []string{"customer_name"}, c.Schemas.Required["Customer"])
	assert.True(t, cfg.IsBlocked("Secret"))
	assert.False(t, cfg.IsBlocked("Customer"))

	db, ok := c.DatabaseConfigs["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "postgres", db["type"])
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("IMPORTER_BATCH_DEFAULT_BATCH_SIZE", "50")
	t.Setenv("IMPORTER_BATCH_TASK_TIMEOUT_SECONDS", "120")
	t.Setenv("IMPORTER_QUEUE_WORKERS_LONG", "8")
	t.Setenv("IMPORTER_INFRASTRUCTURE_MIGRATE_ON_START", "false")
	t.Setenv("IMPORTER_SCHEMAS_BLOCKED", "A, B")

	cfg, err := LoadConfig("testdata/missing.env", EmbeddedConfig(testYAML))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Importer.Batch.DefaultBatchSize)
	assert.Equal(t, 120, cfg.Importer.Batch.TaskTimeoutSeconds)
	assert.Equal(t, "2m0s", cfg.Importer.Batch.TaskTimeout().String())
	assert.Equal(t, 8, cfg.Importer.Queue.Workers["long"])
	assert.False(t, cfg.Importer.Infrastructure.MigrateOnStart)
	assert.Equal(t, []string{"A", "B"}, cfg.Importer.Schemas.Blocked)
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	t.Setenv("IMPORTER_BATCH_DEFAULT_BATCH_SIZE", "0")
	_, err := LoadConfig("testdata/missing.env", EmbeddedConfig(testYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_batch_size")
}

func TestLoadConfig_RejectsUnknownQueueMode(t *testing.T) {
	_, err := LoadConfig("testdata/missing.env", EmbeddedConfig("importer:\n  queue:\n    mode: celery\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue.mode")
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	_, err := LoadConfig("testdata/missing.env", EmbeddedConfig("importer: ["))
	require.Error(t, err)
}
