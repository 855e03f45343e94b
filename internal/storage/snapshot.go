package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// SnapshotPath returns the artifact path inside dbDir.
func SnapshotPath(dbDir string) string {
	return filepath.Join(dbDir, SnapshotFileName)
}

// Exists reports whether a snapshot artifact is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func lockFor(path string) *flock.Flock {
	return flock.New(path + ".lock")
}

// Save writes snap to path, creating parent directories as needed.
// The snapshot is written to a temporary file in the same directory and
// renamed over path, so readers see either the old or the new artifact.
func Save(path string, snap *Snapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	lock := lockFor(path)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock snapshot: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, "."+SnapshotFileName+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := Encode(tmp, snap); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot at path. It returns ErrSnapshotNotFound when no
// artifact exists there.
func Load(path string) (*Snapshot, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, path)
		}
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}

	lock := lockFor(path)
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock snapshot: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, path)
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	snap, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return snap, nil
}
