package users

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrInvalidEmail indicates the supplied address was empty after normalization.
var ErrInvalidEmail = errors.New("users: invalid email")

// ServiceConfig describes the dependencies required for user resolution.
type ServiceConfig struct {
	Database *gorm.DB
}

// Service resolves viewer users by their email natural key.
type Service struct {
	db *gorm.DB
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	return &Service{db: cfg.Database}, nil
}

// ResolveByEmail returns the user for the address, creating the row on first
// sight. Email is the natural key; the display name defaults to the local
// part of the address.
func (s *Service) ResolveByEmail(ctx context.Context, email string) (User, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return User{}, ErrInvalidEmail
	}

	var user User
	err := s.db.WithContext(ctx).Where("email = ?", normalized).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = User{
			Email:    normalized,
			Name:     displayNameFromEmail(normalized),
			IsActive: true,
		}
		if createErr := s.db.WithContext(ctx).Create(&user).Error; createErr != nil {
			return User{}, createErr
		}
		return user, nil
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// FindByID loads a user row, returning gorm.ErrRecordNotFound when absent.
func (s *Service) FindByID(ctx context.Context, id int64) (User, error) {
	var user User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return User{}, err
	}
	return user, nil
}
