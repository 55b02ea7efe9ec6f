package source

import (
	"context"
	"fmt"
	"io"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	_ "gocloud.dev/blob/s3blob"  // S3 driver
)

// indexRemote lists every object under the location's prefix.
func indexRemote(ctx context.Context, bucket *blob.Bucket, loc Location, idx *FileIndex) error {
	if IsParquet(loc.Key) {
		ok, err := bucket.Exists(ctx, loc.Key)
		if err != nil {
			return fmt.Errorf("stat %s: %w", loc.URI(), err)
		}
		if ok {
			idx.AddFile(loc.URI())
			return nil
		}
	}

	iter := bucket.List(&blob.ListOptions{Prefix: loc.Key})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("list objects: %w", err)
		}
		if obj.IsDir {
			continue
		}
		idx.AddFile(Location{Scheme: loc.Scheme, Bucket: loc.Bucket, Key: obj.Key}.URI())
	}
	return nil
}

// rangeReaderAt serves ReadAt calls with ranged object reads, so Parquet
// footers and column chunks are fetched without downloading whole objects.
type rangeReaderAt struct {
	ctx    context.Context
	bucket *blob.Bucket
	key    string
	size   int64
}

func (r *rangeReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.size {
		return 0, io.EOF
	}
	length := int64(len(p))
	if off+length > r.size {
		length = r.size - off
	}
	rd, err := r.bucket.NewRangeReader(r.ctx, r.key, off, length, nil)
	if err != nil {
		return 0, fmt.Errorf("range read %s@%d: %w", r.key, off, err)
	}
	defer rd.Close()

	n, err := io.ReadFull(rd, p[:length])
	if err == nil && int(length) < len(p) {
		err = io.EOF
	}
	return n, err
}

func (r *rangeReaderAt) Close() error { return nil }

func openRemote(ctx context.Context, bucket *blob.Bucket, key string) (ReaderAtCloser, int64, error) {
	attrs, err := bucket.Attributes(ctx, key)
	if err != nil {
		return nil, 0, fmt.Errorf("attributes %s: %w", key, err)
	}
	return &rangeReaderAt{ctx: ctx, bucket: bucket, key: key, size: attrs.Size}, attrs.Size, nil
}
