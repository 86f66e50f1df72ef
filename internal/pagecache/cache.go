package pagecache

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Key addresses one cached watermarked raster.
type Key struct {
	DocumentHash string
	ViewerToken  string
	Page         int
}

// Cache memoizes final watermarked page rasters on disk, alongside the
// converter's base pages. Entries carry no TTL; they are dropped wholesale
// when watermark settings change or a document is deleted. Concurrent
// renders for the same key may both write; the store is idempotent-overwrite
// so last writer wins and both responses stay correct.
type Cache struct {
	root   string
	logger *zap.Logger
}

// New constructs a cache rooted at the page cache directory.
func New(root string, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{root: root, logger: logger}
}

// GetOrRender returns the cached bytes for key, or invokes render, persists
// the result and returns it. The hit flag distinguishes the two. A failed
// cache write is logged and swallowed: freshly rendered bytes are always
// returned to the caller.
func (c *Cache) GetOrRender(key Key, render func() ([]byte, error)) ([]byte, bool, error) {
	path := c.entryPath(key)
	if data, err := os.ReadFile(path); err == nil {
		return data, true, nil
	}

	data, err := render()
	if err != nil {
		return nil, false, err
	}

	if writeErr := c.write(path, data); writeErr != nil {
		c.logger.Warn("page cache write failed",
			zap.String("path", path),
			zap.Error(writeErr))
	}
	return data, false, nil
}

// InvalidateAll deletes every cached watermarked page across all documents.
// The converter's base page rasters are left in place.
func (c *Cache) InvalidateAll() error {
	matches, err := filepath.Glob(filepath.Join(c.root, "*", "watermarked_*.png"))
	if err != nil {
		return err
	}
	return removeAll(matches)
}

// InvalidateDocument deletes the cached watermarked pages of one document.
func (c *Cache) InvalidateDocument(documentHash string) error {
	matches, err := filepath.Glob(filepath.Join(c.root, documentHash, "watermarked_*.png"))
	if err != nil {
		return err
	}
	return removeAll(matches)
}

func (c *Cache) entryPath(key Key) string {
	name := fmt.Sprintf("watermarked_%s_page_%d.png", key.ViewerToken, key.Page)
	return filepath.Join(c.root, key.DocumentHash, name)
}

// write lands the bytes via a temp file and rename so concurrent readers
// never observe a partial entry.
func (c *Cache) write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func removeAll(paths []string) error {
	var firstErr error
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
