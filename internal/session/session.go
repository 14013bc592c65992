package session

import "time"

// Session represents an authenticated session at the deduplication portal.
// A nil ValidUntil means the session stays valid until it is invalidated explicitly.
type Session struct {
	Token      string
	ObtainedAt time.Time
	ValidUntil *time.Time
}

// IsValid returns whether the session may still be used at the given point in time
func (session *Session) IsValid(now time.Time) bool {
	if session == nil || session.Token == "" {
		return false
	}
	return session.ValidUntil == nil || now.Before(*session.ValidUntil)
}

// redact shortens a token so that it can be logged without leaking the credential
func redact(token string) string {
	if len(token) <= 6 {
		return "***"
	}
	return token[:6] + "***"
}
