package viewing

import "time"

// Session is a time-bounded grant to view the pages of one document. The
// token is the sole bearer credential; the optional user reference and the
// recorded client address only feed the dynamic watermark.
type Session struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	DocumentID int64     `gorm:"column:document_id;not null;index"`
	UserID     *int64    `gorm:"column:user_id"`
	Token      string    `gorm:"column:session_token;size:64;not null;uniqueIndex"`
	IPAddress  string    `gorm:"column:ip_address;size:64"`
	UserAgent  string    `gorm:"column:user_agent;size:512"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
	ExpiresAt  time.Time `gorm:"column:expires_at;not null"`
	LastAccess time.Time `gorm:"column:last_access;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Session) TableName() string {
	return "viewing_sessions"
}

// Expired reports whether the session is past its expiry at the given time.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
