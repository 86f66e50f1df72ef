package users

import (
	"strings"
	"time"
)

// User is a document viewer identified by email. Rows are created lazily the
// first time an email shows up on a token request; there is no signup flow.
type User struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Email     string    `gorm:"column:email;size:320;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;size:320"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// normalizeEmail lowercases and trims an address for natural-key lookups.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// displayNameFromEmail derives the default display name from the local part.
func displayNameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
