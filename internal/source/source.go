// Package source discovers trip-record Parquet files on local disk, S3 or
// GCS and streams them in bounded batches.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ErrUnsupportedScheme is returned for locations that are neither local
// paths nor s3:// or gs:// URIs.
var ErrUnsupportedScheme = errors.New("unsupported location scheme")

// ErrNotParquet is returned when a single-file input is not a Parquet file.
var ErrNotParquet = errors.New("not a parquet file")

// Location is a parsed input or output locator.
type Location struct {
	Scheme string // "file" | "s3" | "gs"
	Bucket string
	Key    string // object key or prefix for remote; absolute path for local
}

// IsRemote reports whether the location lives in an object store.
func (l Location) IsRemote() bool { return l.Scheme != "file" }

// URI renders the location back into its canonical string form.
func (l Location) URI() string {
	if !l.IsRemote() {
		return l.Key
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// Join appends a relative key to the location.
func (l Location) Join(elem string) Location {
	out := l
	if l.IsRemote() {
		out.Key = strings.TrimSuffix(l.Key, "/")
		if out.Key != "" {
			out.Key += "/"
		}
		out.Key += strings.TrimPrefix(elem, "/")
		return out
	}
	out.Key = filepath.Join(l.Key, elem)
	return out
}

// ParseLocation parses a local path, file:// URI, s3:// URI or gs:// URI.
func ParseLocation(raw string) (Location, error) {
	if raw == "" {
		return Location{}, errors.New("empty location")
	}
	if !strings.Contains(raw, "://") {
		abs, err := filepath.Abs(raw)
		if err != nil {
			return Location{}, fmt.Errorf("resolve %s: %w", raw, err)
		}
		return Location{Scheme: "file", Key: abs}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse %s: %w", raw, err)
	}
	switch u.Scheme {
	case "file":
		return Location{Scheme: "file", Key: filepath.Clean(u.Path)}, nil
	case "s3", "gs":
		if u.Host == "" {
			return Location{}, fmt.Errorf("%s: missing bucket", raw)
		}
		return Location{Scheme: u.Scheme, Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}, nil
	default:
		return Location{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

// BucketConfig carries S3-compatible endpoint settings. Works with AWS S3,
// Backblaze B2, Cloudflare R2, and MinIO.
type BucketConfig struct {
	S3Endpoint string
	S3Region   string
}

// BucketURL builds the gocloud.dev URL of the location's bucket.
func (c BucketConfig) BucketURL(l Location) string {
	bucketURL := fmt.Sprintf("%s://%s", l.Scheme, l.Bucket)
	if l.Scheme != "s3" {
		return bucketURL
	}

	params := url.Values{}
	if c.S3Region != "" {
		params.Set("region", c.S3Region)
	}
	if c.S3Endpoint != "" {
		params.Set("endpoint", c.S3Endpoint)
		params.Set("s3ForcePathStyle", "true")
	}
	if len(params) > 0 {
		bucketURL += "?" + params.Encode()
	}
	return bucketURL
}

// IsParquet reports whether a path has a .parquet extension.
func IsParquet(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".parquet")
}
