package users

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:users_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	service, err := NewService(ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

func TestResolveByEmailCreatesOnFirstSight(t *testing.T) {
	service := newTestService(t)

	user, err := service.ResolveByEmail(context.Background(), "Viewer@Example.COM")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Email != "viewer@example.com" {
		t.Fatalf("expected normalized email, got %s", user.Email)
	}
	if user.Name != "viewer" {
		t.Fatalf("expected display name from local part, got %s", user.Name)
	}
	if !user.IsActive {
		t.Fatalf("expected a new user to be active")
	}
}

func TestResolveByEmailIsIdempotent(t *testing.T) {
	service := newTestService(t)

	first, err := service.ResolveByEmail(context.Background(), "viewer@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := service.ResolveByEmail(context.Background(), "  viewer@example.com  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same user row, got %d and %d", first.ID, second.ID)
	}
}

func TestResolveByEmailRejectsBlankAddress(t *testing.T) {
	service := newTestService(t)

	if _, err := service.ResolveByEmail(context.Background(), "   "); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
}
