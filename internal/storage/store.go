// Package storage persists intermediate and final wide-table artifacts on
// the local filesystem or in S3/GCS.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/source"
)

// Well-known keys relative to an output root.
const (
	IntermediatePrefix = "intermediate/"
	FinalTableKey      = "wide_table.parquet"
	ManifestKey        = "_manifest.json"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key     string
	Size    int64
	ETag    string // MD5 for S3/GCS, empty for local
	ModTime time.Time
}

// Move pairs a temporary key with its canonical key.
type Move struct {
	TempKey  string
	FinalKey string
}

// ArtifactStore abstracts reading and writing artifacts under one root.
type ArtifactStore interface {
	// Write stores data at key, replacing any existing object.
	Write(ctx context.Context, key string, data []byte) error

	// ReadAll returns the full contents of key.
	ReadAll(ctx context.Context, key string) ([]byte, error)

	// WriteTemp stores data at a unique temporary key derived from key.
	WriteTemp(ctx context.Context, key string, data []byte) (tempKey string, err error)

	// Finalize moves temp objects to their canonical keys. If any move
	// fails, already-published keys are rolled back and temps removed.
	Finalize(ctx context.Context, moves []Move) error

	// Abort removes temporary objects without publishing.
	Abort(ctx context.Context, tempKeys []string) error

	// Remove deletes keys. Missing keys are ignored.
	Remove(ctx context.Context, keys ...string) error

	// Exists reports whether key exists.
	Exists(ctx context.Context, key string) (bool, error)

	// Head returns metadata about a stored object.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// List returns all keys with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// URI returns the canonical URI for the given key.
	// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// Config configures the storage backend.
type Config struct {
	Root   string // local directory, s3://bucket/prefix or gs://bucket/prefix
	Bucket source.BucketConfig
}

// NewArtifactStore creates a storage backend for the configured root.
func NewArtifactStore(ctx context.Context, cfg Config) (ArtifactStore, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("storage root required")
	}
	loc, err := source.ParseLocation(cfg.Root)
	if err != nil {
		return nil, err
	}
	if !loc.IsRemote() {
		return NewLocalStore(loc.Key)
	}
	return OpenBlobStore(ctx, loc, cfg.Bucket)
}
