package watermark

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrStaticWatermarkNotFound indicates no active logo matches the id.
var ErrStaticWatermarkNotFound = errors.New("watermark: static watermark not found")

// StoreConfig describes the dependencies of the static watermark store.
type StoreConfig struct {
	Database *gorm.DB
}

// Store looks up stored logo references for the compositor's static layer.
type Store struct {
	db *gorm.DB
}

// NewStore constructs the static watermark store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("watermark: database connection required")
	}
	return &Store{db: cfg.Database}, nil
}

// FindActive loads a logo row by id, skipping soft-disabled entries.
func (s *Store) FindActive(ctx context.Context, id int64) (StaticWatermark, error) {
	var row StaticWatermark
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return StaticWatermark{}, ErrStaticWatermarkNotFound
	}
	if err != nil {
		return StaticWatermark{}, err
	}
	return row, nil
}
