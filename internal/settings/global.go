package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pagewall/pagewall/backend/internal/watermark"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Row is the single process-wide record holding the current watermark
// settings as JSON. It is mutated only by admin updates.
type Row struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SettingsJSON string    `gorm:"column:settings_json;type:text;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Row) TableName() string {
	return "global_watermark_settings"
}

// Invalidator deletes every cached watermarked page. Cache entries are not
// versioned, so a settings change must drop them wholesale.
type Invalidator interface {
	InvalidateAll() error
}

// ServiceConfig describes the dependencies of the settings service.
type ServiceConfig struct {
	Database *gorm.DB
	Cache    Invalidator
	Logger   *zap.Logger
}

// Service loads and mutates the global watermark settings row.
type Service struct {
	db     *gorm.DB
	cache  Invalidator
	logger *zap.Logger
}

// NewService constructs the settings service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("settings: database connection required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, cache: cfg.Cache, logger: logger}, nil
}

// Load returns the current global settings. A missing row or corrupted JSON
// never breaks the render path; both fall back to defaults.
func (s *Service) Load(ctx context.Context) watermark.Settings {
	var row Row
	err := s.db.WithContext(ctx).First(&row).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("global watermark settings load failed", zap.Error(err))
		}
		return watermark.DefaultSettings()
	}
	return watermark.ParseSettings(row.SettingsJSON)
}

// ForDocument resolves the effective settings for a render: the document's
// own override when present, the global row otherwise.
func (s *Service) ForDocument(ctx context.Context, override string) watermark.Settings {
	if override != "" {
		return watermark.ParseSettings(override)
	}
	return s.Load(ctx)
}

// Update persists new global settings and drops every cached watermarked
// page. A failed invalidation fails the update: without it stale stamps
// would be served indefinitely, since cache entries carry no version.
func (s *Service) Update(ctx context.Context, updated watermark.Settings) error {
	encoded, err := json.Marshal(updated.Normalized())
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}

	var row Row
	loadErr := s.db.WithContext(ctx).First(&row).Error
	switch {
	case errors.Is(loadErr, gorm.ErrRecordNotFound):
		row = Row{SettingsJSON: string(encoded)}
		if createErr := s.db.WithContext(ctx).Create(&row).Error; createErr != nil {
			return fmt.Errorf("settings: create row: %w", createErr)
		}
	case loadErr != nil:
		return fmt.Errorf("settings: load row: %w", loadErr)
	default:
		updateErr := s.db.WithContext(ctx).Model(&Row{}).
			Where("id = ?", row.ID).
			Update("settings_json", string(encoded)).Error
		if updateErr != nil {
			return fmt.Errorf("settings: update row: %w", updateErr)
		}
	}

	if s.cache != nil {
		if invErr := s.cache.InvalidateAll(); invErr != nil {
			return fmt.Errorf("settings: invalidate page cache: %w", invErr)
		}
	}
	s.logger.Info("global watermark settings updated")
	return nil
}
