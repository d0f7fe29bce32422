package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "localhost", cfg.QdrantHost)
	assert.Equal(t, 6334, cfg.QdrantPort)
	assert.Equal(t, 1024, cfg.ChunkSize)
	assert.Equal(t, 100, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, time.Hour, cfg.JobTTL)
	assert.Equal(t, 10*time.Minute, cfg.JobCleanupInterval)
	assert.Equal(t, 50, cfg.CrawlMaxPages)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PORT", "9000")
	t.Setenv("QDRANT_HOST", "qdrant.internal")
	t.Setenv("CHUNK_SIZE", "512")
	t.Setenv("JOB_TTL", "30m")
	t.Setenv("EMBED_BATCH_SIZE", "not-a-number")

	cfg := Load()
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "qdrant.internal", cfg.QdrantHost)
	assert.Equal(t, 512, cfg.ChunkSize)
	assert.Equal(t, 30*time.Minute, cfg.JobTTL)
	assert.Equal(t, 500, cfg.EmbedBatch)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Port:         8080,
			QdrantHost:   "localhost",
			OpenAIAPIKey: "sk-test",
			ChunkSize:    1024,
			ChunkOverlap: 100,
		}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.OpenAIAPIKey = ""
	assert.ErrorContains(t, cfg.Validate(), "OPENAI_API_KEY")

	cfg = base()
	cfg.Port = 0
	assert.ErrorContains(t, cfg.Validate(), "PORT")

	cfg = base()
	cfg.ChunkOverlap = 2048
	assert.ErrorContains(t, cfg.Validate(), "CHUNK_OVERLAP")
}
