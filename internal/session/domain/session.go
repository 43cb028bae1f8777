package domain

import "time"

// Session is an active operator session. The bearer token itself is never stored; TokenHash is
// its SHA-256.
type Session struct {
	ID             string
	EmployeeID     string
	BusinessID     string
	TokenHash      string
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	RevokedAt      *time.Time // nil when not revoked
	IPAddress      string
}

// Usable reports whether the session may authenticate a request at now:
// not revoked and not yet expired.
func (s *Session) Usable(now time.Time) bool {
	return s != nil && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
