// Package main provides the contextual-rag CLI: build, query, serve and
// export a contextually enriched vector index.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/contextual-rag/internal/config"
	"github.com/bull/contextual-rag/internal/dataset"
	"github.com/bull/contextual-rag/internal/embedding"
	"github.com/bull/contextual-rag/internal/provider"
	"github.com/bull/contextual-rag/internal/storage"
	"github.com/bull/contextual-rag/internal/usage"
	"github.com/bull/contextual-rag/internal/vectordb"
)

var version = "dev"

var flags struct {
	configPath       string
	dbPath           string
	dataset          string
	model            string
	embeddingModel   string
	logLevel         string
	temperature      float64
	maxTokens        int
	parallelRequests int
	debug            bool
}

var rootCmd = &cobra.Command{
	Use:   "contextual-rag",
	Short: "Contextual retrieval vector index",
	Long: `Builds an in-memory vector index whose chunks are enriched with
LLM-generated situating context before embedding, and queries it.

Environment variables:
  OPENAI_API_KEY        OpenAI API key (required for build, search and context)
  RAG_DB_PATH           Directory holding contextual_vector_db.bin (default: ./my_data)
  RAG_DATASET           JSONL file or markdown directory to index
  RAG_MODEL             Chat model for context generation (default: gpt-4o)
  RAG_EMBEDDING_MODEL   Embedding model (default: text-embedding-3-small)
  RAG_PARALLEL_REQUESTS Concurrent context requests (default: 5)
  QDRANT_HOST           Qdrant hostname for export (default: localhost)
  QDRANT_PORT           Qdrant gRPC port for export (default: 6334)`,
	SilenceUsage: true,
	Version:      version,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML config file")
	pf.StringVar(&flags.dbPath, "db-path", "", "directory holding the snapshot")
	pf.StringVar(&flags.dataset, "dataset", "", "JSONL file or markdown directory")
	pf.StringVar(&flags.model, "model", "", "chat model for context generation")
	pf.StringVar(&flags.embeddingModel, "embedding-model", "", "embedding model")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.Float64Var(&flags.temperature, "temperature", 0, "sampling temperature")
	pf.IntVar(&flags.maxTokens, "max-tokens", 0, "max output tokens per context")
	pf.IntVar(&flags.parallelRequests, "parallel-requests", 0, "concurrent context requests")
	pf.BoolVar(&flags.debug, "debug", false, "only load the first two documents")

	rootCmd.AddCommand(buildCmd, searchCmd, contextCmd, serveCmd, exportCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries the resolved configuration shared by all commands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// newApp resolves defaults, the config file, the environment and then the
// flags set on cmd, in increasing precedence.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("db-path") {
		cfg.DBPath = flags.dbPath
	}
	if f.Changed("dataset") {
		cfg.Dataset = flags.dataset
	}
	if f.Changed("model") {
		cfg.Model = flags.model
	}
	if f.Changed("embedding-model") {
		cfg.EmbeddingModel = flags.embeddingModel
	}
	if f.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if f.Changed("temperature") {
		cfg.Temperature = flags.temperature
	}
	if f.Changed("max-tokens") {
		cfg.MaxTokens = flags.maxTokens
	}
	if f.Changed("parallel-requests") {
		cfg.ParallelRequests = flags.parallelRequests
	}
	if f.Changed("debug") {
		cfg.Debug = flags.debug
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Logs go to stderr so stdio MCP traffic and command output stay clean.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) providerClient() (*provider.Client, error) {
	client, err := provider.NewClient(a.cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Failed to create OpenAI client: %w", err)
	}
	return client, nil
}

// newIndex creates an empty index embedding through client. client may be
// nil for commands that never embed, such as export.
func (a *app) newIndex(client provider.EmbeddingCreator) *vectordb.Index {
	factory := func(model string) vectordb.Embedder {
		return embedding.NewEmbedder(client, model, 0) // Use default batch size
	}
	return vectordb.NewIndex(factory, a.cfg.IndexConfig(), a.logger)
}

func (a *app) newDB(index *vectordb.Index, builder vectordb.Builder) *vectordb.DB {
	return vectordb.NewDB(a.cfg.SnapshotPath(), index, builder, a.logger)
}

// openDB restores the snapshot into a fresh read-only database.
func (a *app) openDB(client provider.EmbeddingCreator) (*vectordb.DB, error) {
	db := a.newDB(a.newIndex(client), nil)
	if err := db.Open(); err != nil {
		return nil, fmt.Errorf("Failed to open vector database (run build first): %w", err)
	}
	return db, nil
}

// loadDataset reads cfg.Dataset as a markdown directory or a JSONL file.
func (a *app) loadDataset() ([]storage.Document, error) {
	info, err := os.Stat(a.cfg.Dataset)
	if err != nil {
		return nil, fmt.Errorf("Failed to read dataset: %w", err)
	}
	if info.IsDir() {
		return dataset.LoadMarkdownDir(a.cfg.Dataset, a.cfg.DocumentLimit())
	}
	return dataset.LoadJSONL(a.cfg.Dataset, a.cfg.DocumentLimit())
}

func printUsage(stats usage.Stats) {
	fmt.Println("Token usage:")
	fmt.Printf("  Total input tokens (uncached): %d\n", stats.Input)
	fmt.Printf("  Total output tokens: %d\n", stats.Output)
	fmt.Printf("  Total input tokens written to cache: %d\n", stats.CacheCreation)
	fmt.Printf("  Total input tokens read from cache: %d\n", stats.CacheRead)
	fmt.Printf("  Input tokens read from cache: %.2f%%\n", stats.CacheSavingsPercent())
}

func printResults(results []vectordb.SearchResult) {
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, r := range results {
		fmt.Printf("%d. [%.4f] %s (%s)\n", i+1, r.Similarity, r.Metadata.ChunkID, r.Metadata.DocID)
		fmt.Printf("   Context: %s\n", r.Metadata.ContextualizedContent)
		fmt.Printf("   Content: %s\n", truncate(r.Metadata.OriginalContent, 200))
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
