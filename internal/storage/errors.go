package storage

import "errors"

var (
	ErrSnapshotNotFound   = errors.New("vector database snapshot not found")
	ErrCorruptSnapshot    = errors.New("corrupt vector database snapshot")
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
	ErrMisalignedSnapshot = errors.New("embeddings and metadata are not aligned")
	ErrQdrantUnreachable  = errors.New("qdrant server unreachable")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
)
