package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
	_ "gocloud.dev/blob/s3blob"  // S3 driver
	"gocloud.dev/gcerrors"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/source"
)

// BlobStore keeps artifacts in an object store bucket under a prefix.
// Works with AWS S3, Backblaze B2, Cloudflare R2, MinIO and GCS.
type BlobStore struct {
	bucket *blob.Bucket
	scheme string
	name   string
	prefix string
}

// OpenBlobStore opens the bucket of loc. Keys are stored under loc.Key.
func OpenBlobStore(ctx context.Context, loc source.Location, cfg source.BucketConfig) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, cfg.BucketURL(loc))
	if err != nil {
		return nil, fmt.Errorf("open %s bucket %s: %w", loc.Scheme, loc.Bucket, err)
	}
	return NewBlobStore(bucket, loc.Scheme, loc.Bucket, loc.Key), nil
}

// NewBlobStore wraps an already opened bucket.
func NewBlobStore(bucket *blob.Bucket, scheme, name, prefix string) *BlobStore {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &BlobStore{bucket: bucket, scheme: scheme, name: name, prefix: prefix}
}

func (s *BlobStore) objectKey(key string) string {
	return s.prefix + key
}

// Write uploads data to key.
func (s *BlobStore) Write(ctx context.Context, key string, data []byte) error {
	return s.put(ctx, s.objectKey(key), data)
}

func (s *BlobStore) put(ctx context.Context, objKey string, data []byte) error {
	w, err := s.bucket.NewWriter(ctx, objKey, nil)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", objKey, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write data to %s: %w", objKey, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", objKey, err)
	}
	return nil
}

// ReadAll downloads the object at key.
func (s *BlobStore) ReadAll(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, s.objectKey(key))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// WriteTemp uploads data to a temporary key.
func (s *BlobStore) WriteTemp(ctx context.Context, key string, data []byte) (string, error) {
	tempKey := key + ".tmp." + uuid.New().String()
	if err := s.put(ctx, s.objectKey(tempKey), data); err != nil {
		return "", err
	}
	return tempKey, nil
}

// Finalize publishes temp objects using copy + delete.
func (s *BlobStore) Finalize(ctx context.Context, moves []Move) error {
	for i, m := range moves {
		if err := s.bucket.Copy(ctx, s.objectKey(m.FinalKey), s.objectKey(m.TempKey), nil); err != nil {
			for j := 0; j < i; j++ {
				s.bucket.Delete(ctx, s.objectKey(moves[j].FinalKey))
			}
			s.Abort(ctx, tempKeys(moves))
			return fmt.Errorf("finalize %s -> %s: %w", m.TempKey, m.FinalKey, err)
		}
	}
	for _, m := range moves {
		s.bucket.Delete(ctx, s.objectKey(m.TempKey)) // ignore errors
	}
	return nil
}

// Abort removes temporary objects without publishing.
func (s *BlobStore) Abort(ctx context.Context, keys []string) error {
	var lastErr error
	for _, key := range keys {
		if err := s.bucket.Delete(ctx, s.objectKey(key)); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			lastErr = err
		}
	}
	return lastErr
}

// Remove deletes objects. Missing objects are ignored.
func (s *BlobStore) Remove(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := s.bucket.Delete(ctx, s.objectKey(key)); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

// Exists checks if an object exists.
func (s *BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.bucket.Exists(ctx, s.objectKey(key))
}

// Head returns metadata about a stored object.
func (s *BlobStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	attrs, err := s.bucket.Attributes(ctx, s.objectKey(key))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("get attributes for %s: %w", key, err)
	}
	return &ObjectInfo{
		Key:     key,
		Size:    attrs.Size,
		ETag:    attrs.ETag,
		ModTime: attrs.ModTime,
	}, nil
}

// List returns all keys with the given prefix, relative to the store root.
func (s *BlobStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.bucket.List(&blob.ListOptions{Prefix: s.objectKey(prefix)})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		key := strings.TrimPrefix(obj.Key, s.prefix)
		if isTemp(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// URI returns the canonical URI for the given key.
func (s *BlobStore) URI(key string) string {
	return fmt.Sprintf("%s://%s/%s", s.scheme, s.name, s.objectKey(key))
}

// Close releases the bucket connection.
func (s *BlobStore) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}
