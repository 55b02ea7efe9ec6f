package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sharvaanit/Taxi-data-datapipeline/internal/source"
)

// Upload copies data to a single destination URI, which may be a local
// path or an s3:// or gs:// object. A destination naming a prefix or a
// directory receives the object as FinalTableKey inside it.
func Upload(ctx context.Context, destURI string, data []byte, cfg source.BucketConfig) error {
	loc, err := uploadTarget(destURI)
	if err != nil {
		return err
	}

	var (
		store ArtifactStore
		key   string
	)
	if loc.IsRemote() {
		dir, base := path.Split(loc.Key)
		store, err = OpenBlobStore(ctx, source.Location{Scheme: loc.Scheme, Bucket: loc.Bucket, Key: dir}, cfg)
		key = base
	} else {
		store, err = NewLocalStore(filepath.Dir(loc.Key))
		key = filepath.Base(loc.Key)
	}
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Write(ctx, key, data); err != nil {
		return fmt.Errorf("upload %s: %w", destURI, err)
	}
	return nil
}

// uploadTarget resolves destURI to the location of the object to write.
func uploadTarget(destURI string) (source.Location, error) {
	loc, err := source.ParseLocation(destURI)
	if err != nil {
		return source.Location{}, err
	}
	asDir := strings.HasSuffix(destURI, "/")
	if loc.IsRemote() {
		asDir = asDir || loc.Key == ""
	} else if fi, err := os.Stat(loc.Key); err == nil && fi.IsDir() {
		asDir = true
	}
	if asDir {
		loc = loc.Join(FinalTableKey)
	}
	return loc, nil
}
