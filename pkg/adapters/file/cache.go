package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// CacheStore implements ports.CacheStore on the local filesystem, one file
// per hash. Cached results survive restarts without any external service.
type CacheStore struct {
	BasePath string
}

// NewCacheStore creates a new CacheStore rooted at basePath.
// If basePath is empty, it defaults to ".arbor/cache".
func NewCacheStore(basePath string) *CacheStore {
	if basePath == "" {
		basePath = filepath.Join(".arbor", "cache")
	}
	return &CacheStore{BasePath: basePath}
}

func (c *CacheStore) path(hash string) string {
	return filepath.Join(c.BasePath, hash+".json")
}

// Put persists the payload atomically: write to a temp file, fsync, rename.
// A crash mid-write leaves either the old entry or none, never a torn one.
func (c *CacheStore) Put(ctx context.Context, hash string, value []byte) error {
	if hash == "" {
		return fmt.Errorf("hash cannot be empty")
	}

	if err := os.MkdirAll(c.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure cache directory: %w", err)
	}

	destPath := c.path(hash)

	// Same directory as the destination keeps the rename on one filesystem.
	tmpFile, err := os.CreateTemp(c.BasePath, "tmp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // No-op once renamed
	}()

	if _, err := tmpFile.Write(value); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// os.Rename on Windows fails when the destination exists; remove first.
	// The delete+rename window is acceptable against torn writes.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing cache entry: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file into cache: %w", err)
	}
	return nil
}

// Get reads the payload for the hash; a missing file is a miss, not an error.
func (c *CacheStore) Get(ctx context.Context, hash string) ([]byte, bool, error) {
	if hash == "" {
		return nil, false, fmt.Errorf("hash cannot be empty")
	}

	data, err := os.ReadFile(c.path(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	return data, true, nil
}
