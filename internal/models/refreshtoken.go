package models

import "time"

// RefreshTokenTTL is how long a refresh token value stays usable after it is issued.
const RefreshTokenTTL = 90 * 24 * time.Hour

// RefreshToken is one login session. The row is rewritten in place on every
// refresh, keeping the replaced value in PreviousID so that a client which
// lost the response can retry with the value it still holds.
type RefreshToken struct {
	ID                string    `gorm:"primarykey;size:256"`
	UserID            string    `gorm:"index;size:36;not null"` // with index, logout finds all sessions of a user
	User              *User     `gorm:"constraint:OnDelete:CASCADE"`
	PreviousID        string    `gorm:"index;size:256;not null"`
	PreviousCreatedAt time.Time `gorm:"not null"`
	CreatedAt         time.Time `gorm:"index;not null"`
}

func (t *RefreshToken) Expired(now time.Time) bool {
	return olderThanTTL(now, t.CreatedAt)
}

func (t *RefreshToken) PreviousExpired(now time.Time) bool {
	return olderThanTTL(now, t.PreviousCreatedAt)
}

func olderThanTTL(now, issuedAt time.Time) bool {
	d := now.Sub(issuedAt)
	if d < 0 {
		d = -d
	}
	return d > RefreshTokenTTL
}
