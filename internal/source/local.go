package source

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// indexLocal walks root and adds every file to idx. A root that is itself a
// file is added directly.
func indexLocal(root string, idx *FileIndex) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("invalid local path %s: %w", root, err)
	}
	if !info.IsDir() {
		if !IsParquet(root) {
			return fmt.Errorf("%w: %s", ErrNotParquet, root)
		}
		idx.AddFile(root)
		return nil
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		idx.AddFile(path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk directory: %w", err)
	}
	return nil
}

// localFile is an opened local file.
type localFile struct {
	*os.File
}

func openLocal(path string) (ReaderAtCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return localFile{f}, info.Size(), nil
}
