package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gocloud.dev/blob"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/category"
)

// ReaderAtCloser is an opened input file.
type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// DiscoverOptions configures Discover.
type DiscoverOptions struct {
	Bucket  BucketConfig
	Router  *category.Router
	Include string // substring a path must contain, e.g. "tripdata"
	Max     int    // keep only the first Max scheduled files; 0 keeps all
	Log     *slog.Logger
}

// Discover enumerates Parquet files under input (a file, directory, or
// bucket prefix) and returns them in scheduling order.
func Discover(ctx context.Context, input string, opts DiscoverOptions) ([]FileRef, error) {
	loc, err := ParseLocation(input)
	if err != nil {
		return nil, err
	}
	router := opts.Router
	if router == nil {
		router = category.MustDefault()
	}
	idx := NewFileIndex(router, opts.Include)

	if loc.IsRemote() {
		bucket, err := blob.OpenBucket(ctx, opts.Bucket.BucketURL(loc))
		if err != nil {
			return nil, fmt.Errorf("open bucket %s: %w", loc.Bucket, err)
		}
		defer bucket.Close()
		if err := indexRemote(ctx, bucket, loc, idx); err != nil {
			return nil, err
		}
	} else if err := indexLocal(loc.Key, idx); err != nil {
		return nil, err
	}

	idx.Sort()
	idx.Limit(opts.Max)

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("indexed input files",
		"input", input,
		"files", idx.Count(),
		"skipped", idx.Skipped(),
	)
	return idx.Files(), nil
}

// Opener opens input files by URI. Buckets are opened lazily and cached;
// an Opener is meant to be owned by a single worker.
type Opener struct {
	cfg     BucketConfig
	buckets map[string]*blob.Bucket
}

// NewOpener creates an opener.
func NewOpener(cfg BucketConfig) *Opener {
	return &Opener{cfg: cfg, buckets: make(map[string]*blob.Bucket)}
}

// Open opens uri for random access and returns its size in bytes.
func (o *Opener) Open(ctx context.Context, uri string) (ReaderAtCloser, int64, error) {
	loc, err := ParseLocation(uri)
	if err != nil {
		return nil, 0, err
	}
	if !loc.IsRemote() {
		return openLocal(loc.Key)
	}

	bucketURL := o.cfg.BucketURL(loc)
	bucket, ok := o.buckets[bucketURL]
	if !ok {
		bucket, err = blob.OpenBucket(ctx, bucketURL)
		if err != nil {
			return nil, 0, fmt.Errorf("open bucket %s: %w", loc.Bucket, err)
		}
		o.buckets[bucketURL] = bucket
	}
	return openRemote(ctx, bucket, loc.Key)
}

// Close releases every cached bucket.
func (o *Opener) Close() error {
	var first error
	for k, b := range o.buckets {
		if err := b.Close(); err != nil && first == nil {
			first = err
		}
		delete(o.buckets, k)
	}
	return first
}
