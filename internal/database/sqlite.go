package database

import (
	"fmt"
	"os"
	"path/filepath"

	sqlite "github.com/glebarez/sqlite"
	"github.com/pagewall/pagewall/backend/internal/auth"
	"github.com/pagewall/pagewall/backend/internal/documents"
	"github.com/pagewall/pagewall/backend/internal/settings"
	"github.com/pagewall/pagewall/backend/internal/users"
	"github.com/pagewall/pagewall/backend/internal/viewing"
	"github.com/pagewall/pagewall/backend/internal/watermark"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// Migrate applies the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&users.User{},
		&documents.Document{},
		&viewing.Session{},
		&watermark.StaticWatermark{},
		&settings.Row{},
		&auth.AdminUser{},
	)
}
