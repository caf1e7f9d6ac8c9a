package models

import "time"

// Session is a bearer token issued to a local account. The token doubles as
// the key of the caller's watchlist store.
type Session struct {
	Token       string    `json:"token"`
	AccountID   string    `json:"accountId"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	RefreshedAt time.Time `json:"refreshedAt,omitzero"`
	UserAgent   string    `json:"userAgent,omitempty"`
	IPAddress   string    `json:"ipAddress,omitempty"`
}

// ExpiredAt reports whether the session is no longer valid at now.
func (s Session) ExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
