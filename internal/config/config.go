// Package config resolves runtime settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bull/contextual-rag/internal/storage"
)

// ErrInvalidConfig is returned by Validate and by malformed overrides.
var ErrInvalidConfig = errors.New("invalid configuration")

// DebugDocumentLimit is how many documents are loaded in debug mode.
const DebugDocumentLimit = 2

// Config holds every setting of the contextual-rag commands.
type Config struct {
	DBPath           string  `yaml:"db_path"`
	Dataset          string  `yaml:"dataset"`
	Model            string  `yaml:"model"`
	EmbeddingModel   string  `yaml:"embedding_model"`
	Temperature      float64 `yaml:"temperature"`
	MaxTokens        int     `yaml:"max_tokens"`
	ParallelRequests int     `yaml:"parallel_requests"`
	Debug            bool    `yaml:"debug"`
	LogLevel         string  `yaml:"log_level"`

	// APIKey is only read from the environment.
	APIKey string `yaml:"-"`

	QdrantHost       string `yaml:"qdrant_host"`
	QdrantPort       int    `yaml:"qdrant_port"`
	QdrantCollection string `yaml:"qdrant_collection"`

	Port string `yaml:"port"`
}

// Default returns the built-in settings.
func Default() *Config {
	idx := storage.DefaultIndexConfig()
	return &Config{
		DBPath:           "./my_data",
		Dataset:          "my_data/processed_documents.jsonl",
		Model:            idx.Model,
		EmbeddingModel:   idx.EmbeddingModel,
		Temperature:      idx.Temperature,
		MaxTokens:        idx.MaxTokens,
		ParallelRequests: 5,
		LogLevel:         "info",
		QdrantHost:       "localhost",
		QdrantPort:       6334,
		QdrantCollection: storage.DefaultCollectionName,
		Port:             "8080",
	}
}

// Load applies, in increasing precedence:
//  1. Built-in defaults
//  2. The YAML file at path, when path is not empty
//  3. Environment variables (OPENAI_API_KEY, RAG_*, QDRANT_*, PORT)
//
// The result is not validated; callers validate after applying flags.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	// Decoding onto the defaults keeps every key the file leaves out,
	// explicit zero values included.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.APIKey = v
	}

	strs := map[string]*string{
		"RAG_DB_PATH":         &c.DBPath,
		"RAG_DATASET":         &c.Dataset,
		"RAG_MODEL":           &c.Model,
		"RAG_EMBEDDING_MODEL": &c.EmbeddingModel,
		"RAG_LOG_LEVEL":       &c.LogLevel,
		"QDRANT_HOST":         &c.QdrantHost,
		"QDRANT_COLLECTION":   &c.QdrantCollection,
		"PORT":                &c.Port,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"RAG_MAX_TOKENS":        &c.MaxTokens,
		"RAG_PARALLEL_REQUESTS": &c.ParallelRequests,
		"QDRANT_PORT":           &c.QdrantPort,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
			}
			*dst = n
		}
	}

	if v := os.Getenv("RAG_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%w: RAG_TEMPERATURE=%q is not a number", ErrInvalidConfig, v)
		}
		c.Temperature = f
	}
	if v := os.Getenv("RAG_DEBUG"); v != "" {
		c.Debug = strings.EqualFold(v, "true") || v == "1"
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case c.Model == "":
		return fmt.Errorf("%w: model must not be empty", ErrInvalidConfig)
	case c.EmbeddingModel == "":
		return fmt.Errorf("%w: embedding_model must not be empty", ErrInvalidConfig)
	case c.Temperature < 0:
		return fmt.Errorf("%w: temperature must be non-negative, got %g", ErrInvalidConfig, c.Temperature)
	case c.MaxTokens <= 0:
		return fmt.Errorf("%w: max_tokens must be positive, got %d", ErrInvalidConfig, c.MaxTokens)
	case c.ParallelRequests <= 0:
		return fmt.Errorf("%w: parallel_requests must be positive, got %d", ErrInvalidConfig, c.ParallelRequests)
	case c.QdrantPort <= 0 || c.QdrantPort > 65535:
		return fmt.Errorf("%w: qdrant_port out of range: %d", ErrInvalidConfig, c.QdrantPort)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level must be 'debug', 'info', 'warn', or 'error', got %s", ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// IndexConfig is the generation configuration persisted with the index.
func (c *Config) IndexConfig() storage.IndexConfig {
	return storage.IndexConfig{
		Model:          c.Model,
		EmbeddingModel: c.EmbeddingModel,
		Temperature:    c.Temperature,
		MaxTokens:      c.MaxTokens,
	}
}

// DocumentLimit is the number of documents to load, 0 meaning all.
func (c *Config) DocumentLimit() int {
	if c.Debug {
		return DebugDocumentLimit
	}
	return 0
}

// SnapshotPath is the snapshot file inside DBPath.
func (c *Config) SnapshotPath() string {
	return storage.SnapshotPath(c.DBPath)
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
