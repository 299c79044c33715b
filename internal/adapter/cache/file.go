package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/couchcryptid/conagua-etl/internal/domain"
)

// FileCache keeps one file per archive key under a directory. Writes go to a
// temp file in the same directory and are renamed into place, so concurrent
// writers never expose a partial archive; the last rename wins.
type FileCache struct {
	dir string
}

// NewFileCache creates dir if needed and returns a cache rooted there.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string {
	return c.dir
}

func (c *FileCache) path(key domain.ArchiveKey) string {
	return filepath.Join(c.dir, key.CacheName())
}

func (c *FileCache) Get(_ context.Context, key domain.ArchiveKey) ([]byte, bool, error) {
	data, err := os.ReadFile(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached archive %s: %w", key, err)
	}
	return data, true, nil
}

func (c *FileCache) Put(_ context.Context, key domain.ArchiveKey, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, ".tmp-"+key.CacheName()+"-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, c.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// Delete removes the cached archive for key, if any.
func (c *FileCache) Delete(_ context.Context, key domain.ArchiveKey) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete cached archive %s: %w", key, err)
	}
	return nil
}

// CheckReadiness reports whether the cache directory is still usable.
func (c *FileCache) CheckReadiness(_ context.Context) error {
	info, err := os.Stat(c.dir)
	if err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cache dir %s is not a directory", c.dir)
	}
	return nil
}
