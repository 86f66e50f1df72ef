package viewing

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/pagewall/pagewall/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// tokenEntropyBytes sets the raw entropy behind each viewer token.
	tokenEntropyBytes = 32
	// sessionRetention bounds how long session rows are kept. The sweep runs
	// opportunistically on every issuance.
	sessionRetention = 7 * 24 * time.Hour

	defaultTokenTTL = 24 * time.Hour
)

var (
	// ErrSessionNotFound indicates no session matches the presented token.
	ErrSessionNotFound = errors.New("viewing: session not found")
	// ErrSessionExpired indicates the session exists but is past its expiry.
	ErrSessionExpired = errors.New("viewing: session expired")
	// ErrDocumentMismatch indicates the session was issued for a different document.
	ErrDocumentMismatch = errors.New("viewing: session document mismatch")

	errMissingDatabase = errors.New("viewing: database handle is required")
)

// UserResolver locates or creates a viewer user by email.
type UserResolver interface {
	ResolveByEmail(ctx context.Context, email string) (users.User, error)
}

// ManagerConfig describes the dependencies of the session manager.
type ManagerConfig struct {
	Database *gorm.DB
	Users    UserResolver
	TokenTTL time.Duration
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Manager issues, validates and expires viewer sessions.
type Manager struct {
	db     *gorm.DB
	users  UserResolver
	ttl    time.Duration
	clock  func() time.Time
	logger *zap.Logger
}

// NewManager constructs a session manager with sane defaults.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		db:     cfg.Database,
		users:  cfg.Users,
		ttl:    ttl,
		clock:  clock,
		logger: logger,
	}, nil
}

// TokenTTL exposes the configured session lifetime.
func (m *Manager) TokenTTL() time.Duration {
	return m.ttl
}

// IssueToken creates a viewing session for the document. A non-empty
// userEmail is resolved (or created) so the watermark can carry it. Stale
// sessions are swept before the insert; sweep failures are logged and
// swallowed, never blocking issuance.
func (m *Manager) IssueToken(ctx context.Context, documentID int64, userEmail, clientIP, userAgent string) (Session, error) {
	var userID *int64
	if userEmail != "" {
		if m.users == nil {
			return Session{}, fmt.Errorf("viewing: user resolver required to bind %q", userEmail)
		}
		user, err := m.users.ResolveByEmail(ctx, userEmail)
		if err != nil {
			return Session{}, fmt.Errorf("viewing: resolve user: %w", err)
		}
		userID = &user.ID
	}

	now := m.clock().UTC()
	m.sweepStaleSessions(ctx, now)

	token, err := newToken()
	if err != nil {
		return Session{}, fmt.Errorf("viewing: generate token: %w", err)
	}

	session := Session{
		DocumentID: documentID,
		UserID:     userID,
		Token:      token,
		IPAddress:  clientIP,
		UserAgent:  userAgent,
		CreatedAt:  now,
		ExpiresAt:  now.Add(m.ttl),
		LastAccess: now,
	}
	if err := m.db.WithContext(ctx).Create(&session).Error; err != nil {
		return Session{}, fmt.Errorf("viewing: persist session: %w", err)
	}
	return session, nil
}

// Validate loads the session for a token. documentID > 0 additionally pins
// the session to that document. On success last_access is touched
// best-effort; a failed touch never fails the request.
func (m *Manager) Validate(ctx context.Context, token string, documentID int64) (Session, error) {
	var session Session
	err := m.db.WithContext(ctx).Where("session_token = ?", token).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("viewing: load session: %w", err)
	}

	now := m.clock().UTC()
	if session.Expired(now) {
		return Session{}, ErrSessionExpired
	}
	if documentID > 0 && session.DocumentID != documentID {
		return Session{}, ErrDocumentMismatch
	}

	touchErr := m.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", session.ID).
		Update("last_access", now).Error
	if touchErr != nil {
		m.logger.Warn("session touch failed", zap.Int64("session_id", session.ID), zap.Error(touchErr))
	} else {
		session.LastAccess = now
	}
	return session, nil
}

// sweepStaleSessions deletes rows older than the retention window. Deletions
// are idempotent, so concurrent sweeps from parallel issuance calls are safe.
func (m *Manager) sweepStaleSessions(ctx context.Context, now time.Time) {
	cutoff := now.Add(-sessionRetention)
	result := m.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&Session{})
	if result.Error != nil {
		m.logger.Warn("session sweep failed", zap.Error(result.Error))
		return
	}
	if result.RowsAffected > 0 {
		m.logger.Info("stale sessions deleted", zap.Int64("count", result.RowsAffected))
	}
}

// newToken returns a URL-safe bearer token with tokenEntropyBytes of entropy.
func newToken() (string, error) {
	raw := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
