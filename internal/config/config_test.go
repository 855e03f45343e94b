package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/contextual-rag/internal/storage"
)

var envKeys = []string{
	"OPENAI_API_KEY", "RAG_DB_PATH", "RAG_DATASET", "RAG_MODEL", "RAG_EMBEDDING_MODEL",
	"RAG_LOG_LEVEL", "RAG_MAX_TOKENS", "RAG_PARALLEL_REQUESTS", "RAG_TEMPERATURE",
	"RAG_DEBUG", "QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION", "PORT",
}

// clearEnv blanks every variable Load reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "./my_data", cfg.DBPath)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 0.0, cfg.Temperature)
	assert.Equal(t, 1000, cfg.MaxTokens)
	assert.Equal(t, 5, cfg.ParallelRequests)
	assert.False(t, cfg.Debug)
	assert.Equal(t, storage.DefaultIndexConfig(), cfg.IndexConfig())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
db_path: /var/lib/rag
model: gpt-4o-mini
temperature: 0.2
parallel_requests: 25
debug: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/rag", cfg.DBPath)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 0.2, cfg.Temperature)
	assert.Equal(t, 25, cfg.ParallelRequests)
	assert.True(t, cfg.Debug)
	assert.Equal(t, DebugDocumentLimit, cfg.DocumentLimit())

	// Untouched keys keep their defaults.
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1000, cfg.MaxTokens)
	assert.Equal(t, "/var/lib/rag/contextual_vector_db.bin", cfg.SnapshotPath())
}

func TestLoad_EmptyYAML(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLErrors(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "unknown_key: 1\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "max_tokens: lots\n"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "model: from-file\nmax_tokens: 200\n")

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("RAG_MODEL", "from-env")
	t.Setenv("RAG_TEMPERATURE", "0.5")
	t.Setenv("RAG_PARALLEL_REQUESTS", "12")
	t.Setenv("RAG_DEBUG", "1")
	t.Setenv("QDRANT_PORT", "7000")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "from-env", cfg.Model)
	assert.Equal(t, 200, cfg.MaxTokens)
	assert.Equal(t, 0.5, cfg.Temperature)
	assert.Equal(t, 12, cfg.ParallelRequests)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 7000, cfg.QdrantPort)
}

func TestLoad_MalformedEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("RAG_MAX_TOKENS", "many")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)

	clearEnv(t)
	t.Setenv("RAG_TEMPERATURE", "hot")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty model", func(c *Config) { c.Model = "" }},
		{"empty embedding model", func(c *Config) { c.EmbeddingModel = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"negative temperature", func(c *Config) { c.Temperature = -0.1 }},
		{"zero max tokens", func(c *Config) { c.MaxTokens = 0 }},
		{"zero parallel requests", func(c *Config) { c.ParallelRequests = 0 }},
		{"bad qdrant port", func(c *Config) { c.QdrantPort = 70000 }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	cfg.LogLevel = "DEBUG"
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	cfg.LogLevel = "error"
	assert.Equal(t, slog.LevelError, cfg.SlogLevel())
}
