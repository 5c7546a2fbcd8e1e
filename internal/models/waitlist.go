package models

import "time"

// WaitlistSource tags every entry with the channel it arrived through.
// The API currently serves a single landing page, so the value is fixed.
const WaitlistSource = "website"

// WaitlistEntry is the sole persisted entity. The unique index on Email is
// the authoritative uniqueness guarantee: concurrent signups for the same
// normalized address resolve at the storage layer, not in application code.
type WaitlistEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Source    string    `gorm:"size:64;not null" json:"source"`
	IPAddress string    `gorm:"size:64" json:"-"`
	UserAgent string    `gorm:"size:512" json:"-"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
