package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.Equal(t, 24*time.Hour, cfg.JobRetention)
	assert.Equal(t, "local", cfg.BlobBackend)
	assert.Equal(t, "asynq", cfg.QueueBackend)
	assert.Equal(t, "mongo", cfg.DocStoreBackend)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("JOB_RETENTION", "2h")
	t.Setenv("QUEUE_BACKEND", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 2*time.Hour, cfg.JobRetention)
	assert.Equal(t, "memory", cfg.QueueBackend)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			GeminiAPIKey:      "k",
			ChunkSize:         1000,
			ChunkOverlap:      100,
			DocStoreBackend:   "mongo",
			BlobBackend:       "local",
			QueueBackend:      "asynq",
			WorkerConcurrency: 2,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"missing key", func(c *Config) { c.GeminiAPIKey = "" }, false},
		{"overlap too large", func(c *Config) { c.ChunkOverlap = 1000 }, false},
		{"s3 without bucket", func(c *Config) { c.BlobBackend = "s3" }, false},
		{"unknown doc store", func(c *Config) { c.DocStoreBackend = "postgres" }, false},
		{"s3 with bucket", func(c *Config) { c.BlobBackend = "s3"; c.S3Bucket = "b" }, true},
		{"bad queue", func(c *Config) { c.QueueBackend = "kafka" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
