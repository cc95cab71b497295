// Package store provides the filesystem image source: references are
// paths relative to a root directory (or absolute paths). Remote object
// stores implement types.ImageSource the same way.
package store

import (
	"os"
	"path/filepath"

	"imagededup/logging"
)

// FileStore reads image bytes from a directory tree.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at the given directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// FetchImageBytes loads the bytes behind a reference. Absent or
// unreadable files return nil; the caller treats that as "no image".
func (s *FileStore) FetchImageBytes(ref string) []byte {
	if ref == "" {
		return nil
	}

	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, ref)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logging.DebugLog("cannot read image %s: %v", path, err)
		return nil
	}
	return data
}
