package viewing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/pagewall/pagewall/backend/internal/users"
	"gorm.io/gorm"
)

type adjustableClock struct {
	now time.Time
}

func (c *adjustableClock) Now() time.Time {
	return c.now
}

func (c *adjustableClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T, ttl time.Duration, clock *adjustableClock) (*Manager, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:viewing_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Session{}, &users.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build user service: %v", err)
	}

	manager, err := NewManager(ManagerConfig{
		Database: db,
		Users:    userService,
		TokenTTL: ttl,
		Clock:    clock.Now,
	})
	if err != nil {
		t.Fatalf("failed to build manager: %v", err)
	}
	return manager, db
}

func TestIssueTokenBindsUserAndExpiry(t *testing.T) {
	clock := &adjustableClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	manager, _ := newTestManager(t, time.Hour, clock)

	session, err := manager.IssueToken(context.Background(), 7, "viewer@example.com", "203.0.113.7", "agent/1.0")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}

	if session.Token == "" {
		t.Fatalf("expected a non-empty token")
	}
	if session.UserID == nil {
		t.Fatalf("expected the session to carry a user id")
	}
	if !session.ExpiresAt.Equal(clock.now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %v", session.ExpiresAt)
	}
	if session.IPAddress != "203.0.113.7" {
		t.Fatalf("unexpected ip %s", session.IPAddress)
	}
}

func TestIssueTokenWithoutEmailLeavesUserUnset(t *testing.T) {
	clock := &adjustableClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	manager, _ := newTestManager(t, time.Hour, clock)

	session, err := manager.IssueToken(context.Background(), 7, "", "203.0.113.7", "")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}
	if session.UserID != nil {
		t.Fatalf("expected anonymous session, got user %d", *session.UserID)
	}
}

func TestValidateRejectsUnknownToken(t *testing.T) {
	clock := &adjustableClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	manager, _ := newTestManager(t, time.Hour, clock)

	_, err := manager.Validate(context.Background(), "no-such-token", 0)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestValidateRejectsExpiredSession(t *testing.T) {
	clock := &adjustableClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	manager, _ := newTestManager(t, time.Hour, clock)

	session, err := manager.IssueToken(context.Background(), 7, "", "", "")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}

	clock.Advance(2 * time.Hour)

	_, err = manager.Validate(context.Background(), session.Token, 0)
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestValidateRejectsDocumentMismatch(t *testing.T) {
	clock := &adjustableClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	manager, _ := newTestManager(t, time.Hour, clock)

	session, err := manager.IssueToken(context.Background(), 7, "", "", "")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}

	_, err = manager.Validate(context.Background(), session.Token, 8)
	if !errors.Is(err, ErrDocumentMismatch) {
		t.Fatalf("expected ErrDocumentMismatch, got %v", err)
	}

	validated, err := manager.Validate(context.Background(), session.Token, 7)
	if err != nil {
		t.Fatalf("expected matching document to validate: %v", err)
	}
	if validated.ID != session.ID {
		t.Fatalf("expected the same session back")
	}
}

func TestValidateTouchesLastAccess(t *testing.T) {
	clock := &adjustableClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	manager, _ := newTestManager(t, time.Hour, clock)

	session, err := manager.IssueToken(context.Background(), 7, "", "", "")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}

	clock.Advance(30 * time.Minute)

	validated, err := manager.Validate(context.Background(), session.Token, 0)
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if !validated.LastAccess.Equal(clock.now) {
		t.Fatalf("expected last access %v, got %v", clock.now, validated.LastAccess)
	}
}

func TestIssuanceSweepsStaleSessions(t *testing.T) {
	clock := &adjustableClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	manager, db := newTestManager(t, time.Hour, clock)

	old, err := manager.IssueToken(context.Background(), 7, "", "", "")
	if err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}

	clock.Advance(8 * 24 * time.Hour)

	if _, err := manager.IssueToken(context.Background(), 7, "", "", ""); err != nil {
		t.Fatalf("unexpected issuance error: %v", err)
	}

	var count int64
	if err := db.Model(&Session{}).Where("session_token = ?", old.Token).Count(&count).Error; err != nil {
		t.Fatalf("failed to count sessions: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected the stale session to be swept")
	}
}
