package vectordb

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bull/contextual-rag/internal/storage"
	"github.com/bull/contextual-rag/internal/usage"
)

// Builder enriches a dataset into contextual chunk records.
type Builder interface {
	Build(ctx context.Context, docs []storage.Document) ([]storage.ContextualChunk, error)
}

// LoadOutcome says how LoadData populated the index.
type LoadOutcome int

const (
	AlreadyLoaded LoadOutcome = iota
	Restored
	Built
)

func (o LoadOutcome) String() string {
	switch o {
	case AlreadyLoaded:
		return "already loaded"
	case Restored:
		return "restored"
	case Built:
		return "built"
	default:
		return fmt.Sprintf("LoadOutcome(%d)", int(o))
	}
}

// DB ties an Index to its snapshot file and the pipeline that builds it.
type DB struct {
	index   *Index
	builder Builder
	path    string
	logger  *slog.Logger
	usage   *usage.Counters

	mu sync.Mutex
}

// NewDB creates a database persisted at path. builder may be nil for
// read-only use, in which case LoadData can only restore.
func NewDB(path string, index *Index, builder Builder, logger *slog.Logger) *DB {
	if logger == nil {
		logger = slog.Default()
	}
	return &DB{
		index:   index,
		builder: builder,
		path:    path,
		logger:  logger,
	}
}

// ReportUsage makes LoadData log the token usage in c after a build.
func (db *DB) ReportUsage(c *usage.Counters) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.usage = c
}

// Index returns the underlying index.
func (db *DB) Index() *Index {
	return db.index
}

// Path returns the snapshot file path.
func (db *DB) Path() string {
	return db.path
}

// LoadData populates the index once. It does nothing if the index is already
// loaded, restores the snapshot if one exists, and otherwise builds the index
// from docs and saves it.
func (db *DB) LoadData(ctx context.Context, docs []storage.Document) (LoadOutcome, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.index.Loaded() {
		db.logger.Info("Vector database is already loaded, skipping data loading")
		return AlreadyLoaded, nil
	}

	if storage.Exists(db.path) {
		db.logger.Info("Loading vector database from disk", "path", db.path)
		if err := db.open(); err != nil {
			return 0, err
		}
		return Restored, nil
	}

	if db.builder == nil {
		return 0, fmt.Errorf("%w: %s", storage.ErrSnapshotNotFound, db.path)
	}

	start := time.Now()
	records, err := db.builder.Build(ctx, docs)
	if err != nil {
		return 0, fmt.Errorf("build records: %w", err)
	}
	if err := db.index.Populate(ctx, records); err != nil {
		return 0, fmt.Errorf("populate index: %w", err)
	}
	if err := db.save(); err != nil {
		return 0, err
	}

	db.logger.Info("Contextual vector database loaded and saved",
		"chunks", len(records),
		"path", db.path,
		"duration", time.Since(start),
	)
	if db.usage != nil {
		stats := db.usage.Snapshot()
		db.logger.Info("Token usage",
			"input", stats.Input,
			"output", stats.Output,
			"cache_creation", stats.CacheCreation,
			"cache_read", stats.CacheRead,
			"cache_savings_pct", fmt.Sprintf("%.2f", stats.CacheSavingsPercent()),
		)
	}
	return Built, nil
}

// Open replaces the index state with the snapshot on disk.
func (db *DB) Open() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.open()
}

func (db *DB) open() error {
	snap, err := storage.Load(db.path)
	if err != nil {
		return err
	}
	if err := db.index.Restore(snap); err != nil {
		return fmt.Errorf("restore %s: %w", db.path, err)
	}
	db.logger.Debug("Restored vector database",
		"entries", len(snap.Metadata),
		"cached_queries", len(snap.QueryCache),
	)
	return nil
}

// Save persists the current index state, query cache included.
func (db *DB) Save() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.save()
}

func (db *DB) save() error {
	if err := storage.Save(db.path, db.index.Snapshot()); err != nil {
		return fmt.Errorf("save vector database: %w", err)
	}
	return nil
}
