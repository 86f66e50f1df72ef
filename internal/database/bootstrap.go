package database

import (
	"errors"

	"github.com/pagewall/pagewall/backend/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin123"
)

// EnsureDefaultAdmin seeds the admin table on first boot so the panel is
// reachable before any provisioning. The generated credentials are logged
// with an explicit warning to change them.
func EnsureDefaultAdmin(db *gorm.DB, logger *zap.Logger) error {
	var admin auth.AdminUser
	err := db.Where("username = ?", defaultAdminUsername).First(&admin).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := auth.HashPassword(defaultAdminPassword)
	if err != nil {
		return err
	}
	admin = auth.AdminUser{
		Username:       defaultAdminUsername,
		HashedPassword: hashed,
		IsActive:       true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	if logger != nil {
		logger.Warn("default admin created, change the password",
			zap.String("username", defaultAdminUsername))
	}
	return nil
}
