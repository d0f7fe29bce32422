// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds everything the server needs at startup.
type Config struct {
	// HTTP
	Port int

	// Vector store
	QdrantHost string
	QdrantPort int

	// OpenAI
	OpenAIAPIKey string
	ChatModel    string
	EmbedBatch   int
	SystemPrompt string

	// Chunking
	ChunkSize    int
	ChunkOverlap int

	// Retrieval
	TopK int

	// Jobs
	JobTTL             time.Duration
	JobCleanupInterval time.Duration

	// Crawling
	CrawlMaxPages int

	// Uploads
	UploadDir string
}

// Load reads configuration from the environment, applying defaults for
// everything but the OpenAI key.
func Load() Config {
	return Config{
		Port:               envInt("PORT", 8080),
		QdrantHost:         envOr("QDRANT_HOST", "localhost"),
		QdrantPort:         envInt("QDRANT_PORT", 6334),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		ChatModel:          envOr("CHAT_MODEL", ""),
		EmbedBatch:         envInt("EMBED_BATCH_SIZE", 500),
		SystemPrompt:       os.Getenv("SYSTEM_PROMPT"),
		ChunkSize:          envInt("CHUNK_SIZE", 1024),
		ChunkOverlap:       envInt("CHUNK_OVERLAP", 100),
		TopK:               envInt("RETRIEVAL_TOP_K", 5),
		JobTTL:             envDuration("JOB_TTL", time.Hour),
		JobCleanupInterval: envDuration("JOB_CLEANUP_INTERVAL", 10*time.Minute),
		CrawlMaxPages:      envInt("CRAWL_MAX_PAGES", 50),
		UploadDir:          envOr("UPLOAD_DIR", os.TempDir()),
	}
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d is out of range", c.Port)
	}
	if c.QdrantHost == "" {
		return fmt.Errorf("QDRANT_HOST is required")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
