package documents

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrDocumentNotFound indicates no document matches the lookup key.
	ErrDocumentNotFound = errors.New("documents: document not found")
	// ErrPageOutOfRange indicates a page number outside 1..TotalPages.
	ErrPageOutOfRange = errors.New("documents: page out of range")
)

// ServiceConfig describes the dependencies of the document service.
type ServiceConfig struct {
	Database *gorm.DB
}

// Service provides document lookups for the viewer surface.
type Service struct {
	db *gorm.DB
}

// NewService constructs the document service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("documents: database connection required")
	}
	return &Service{db: cfg.Database}, nil
}

// FindByAccessToken resolves the document behind a share token.
func (s *Service) FindByAccessToken(ctx context.Context, accessToken string) (Document, error) {
	var doc Document
	err := s.db.WithContext(ctx).Where("access_token = ?", accessToken).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// FindByID loads a document row by primary key.
func (s *Service) FindByID(ctx context.Context, id int64) (Document, error) {
	var doc Document
	err := s.db.WithContext(ctx).First(&doc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// FindByHash loads a document by content hash, used for upload deduplication.
func (s *Service) FindByHash(ctx context.Context, hash string) (Document, error) {
	var doc Document
	err := s.db.WithContext(ctx).Where("file_hash = ?", hash).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Create persists a new document row.
func (s *Service) Create(ctx context.Context, doc *Document) error {
	return s.db.WithContext(ctx).Create(doc).Error
}

// Delete removes a document row. The caller is responsible for cleaning up
// the files on disk.
func (s *Service) Delete(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&Document{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// CheckPage validates a requested page number against the document.
func CheckPage(doc Document, page int) error {
	if page < 1 || page > doc.TotalPages {
		return ErrPageOutOfRange
	}
	return nil
}
