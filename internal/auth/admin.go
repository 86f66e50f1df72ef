package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// bcrypt ignores input past 72 bytes; truncate explicitly so hashing and
// verification agree on long passphrases.
const bcryptMaxPasswordBytes = 72

// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// AdminUser is a panel administrator with a bcrypt-hashed password.
type AdminUser struct {
	ID             int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Username       string    `gorm:"column:username;size:190;not null;uniqueIndex"`
	HashedPassword string    `gorm:"column:hashed_password;size:128;not null"`
	IsActive       bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (AdminUser) TableName() string {
	return "admin_users"
}

// HashPassword returns the bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(truncatePassword(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether the password matches the stored hash.
func VerifyPassword(password, hashedPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), truncatePassword(password)) == nil
}

func truncatePassword(password string) []byte {
	raw := []byte(password)
	if len(raw) > bcryptMaxPasswordBytes {
		raw = raw[:bcryptMaxPasswordBytes]
	}
	return raw
}

// AdminServiceConfig describes the dependencies of the admin service.
type AdminServiceConfig struct {
	Database *gorm.DB
}

// AdminService authenticates administrators against the admin_users table.
type AdminService struct {
	db *gorm.DB
}

// NewAdminService constructs the admin credential service.
func NewAdminService(cfg AdminServiceConfig) (*AdminService, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("auth: database connection required")
	}
	return &AdminService{db: cfg.Database}, nil
}

// Authenticate verifies username/password against the active admin rows.
func (s *AdminService) Authenticate(ctx context.Context, username, password string) (AdminUser, error) {
	var admin AdminUser
	err := s.db.WithContext(ctx).
		Where("username = ? AND is_active = ?", username, true).
		First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return AdminUser{}, ErrInvalidCredentials
	}
	if err != nil {
		return AdminUser{}, err
	}
	if !VerifyPassword(password, admin.HashedPassword) {
		return AdminUser{}, ErrInvalidCredentials
	}
	return admin, nil
}
