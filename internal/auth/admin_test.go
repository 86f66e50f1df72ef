package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestAdminService(t *testing.T) (*AdminService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:auth_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&AdminUser{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewAdminService(AdminServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service, db
}

func seedAdmin(t *testing.T, db *gorm.DB, username, password string, active bool) {
	t.Helper()
	hashed, err := HashPassword(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	admin := AdminUser{Username: username, HashedPassword: hashed, IsActive: active}
	if err := db.Create(&admin).Error; err != nil {
		t.Fatalf("failed to seed admin: %v", err)
	}
}

func TestAuthenticateAcceptsValidCredentials(t *testing.T) {
	service, db := newTestAdminService(t)
	seedAdmin(t, db, "admin", "hunter2hunter2", true)

	admin, err := service.Authenticate(context.Background(), "admin", "hunter2hunter2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if admin.Username != "admin" {
		t.Fatalf("unexpected username %s", admin.Username)
	}
}

func TestAuthenticateRejectsWrongPassword(t *testing.T) {
	service, db := newTestAdminService(t)
	seedAdmin(t, db, "admin", "hunter2hunter2", true)

	if _, err := service.Authenticate(context.Background(), "admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateRejectsUnknownAndInactiveUsers(t *testing.T) {
	service, db := newTestAdminService(t)
	seedAdmin(t, db, "retired", "password123", false)

	if _, err := service.Authenticate(context.Background(), "nobody", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if _, err := service.Authenticate(context.Background(), "retired", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for inactive user, got %v", err)
	}
}

func TestPasswordHashingTruncatesConsistently(t *testing.T) {
	long := strings.Repeat("a", 100)
	hashed, err := HashPassword(long)
	if err != nil {
		t.Fatalf("unexpected hash error: %v", err)
	}

	if !VerifyPassword(long, hashed) {
		t.Fatalf("expected the original passphrase to verify")
	}
	// Only the first 72 bytes participate in the hash.
	if !VerifyPassword(strings.Repeat("a", 72), hashed) {
		t.Fatalf("expected the truncated passphrase to verify")
	}
	if VerifyPassword(strings.Repeat("a", 71), hashed) {
		t.Fatalf("expected a shorter passphrase to fail")
	}
}
