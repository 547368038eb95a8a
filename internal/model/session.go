package model

import "time"

// Session is a server-side login session.
//
// The browser only holds a signed token naming the session ID. The provider's
// access token stays here so it can be revoked on disconnect.
type Session struct {
	ID          string
	UserID      string
	Email       string
	AccessToken string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the session is past its expiry at time now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
