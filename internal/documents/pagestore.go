package documents

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrPageImageMissing indicates the converted raster for a page is absent on disk.
var ErrPageImageMissing = errors.New("documents: page image missing")

// PageStore reads converted page rasters from the cache directory. The
// converter writes one PNG per page under the document's content hash.
type PageStore struct {
	root string
}

// NewPageStore constructs a store rooted at the cache directory.
func NewPageStore(root string) *PageStore {
	return &PageStore{root: root}
}

// PageDir returns the directory holding a document's converted pages.
func (s *PageStore) PageDir(fileHash string) string {
	return filepath.Join(s.root, fileHash)
}

// PagePath returns the raster path for one page, page numbers starting at 1.
func (s *PageStore) PagePath(fileHash string, page int) string {
	return filepath.Join(s.PageDir(fileHash), fmt.Sprintf("page_%d.png", page))
}

// ReadPage loads the raw PNG bytes of a converted page.
func (s *PageStore) ReadPage(fileHash string, page int) ([]byte, error) {
	data, err := os.ReadFile(s.PagePath(fileHash, page))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrPageImageMissing
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
