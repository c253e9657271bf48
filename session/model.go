package session

import (
	"time"

	"github.com/MrEthical07/authgate/identity"
)

// Session binds an opaque identifier to a verified identity.
//
// Fields are set exactly once by [Store.Create]; changing identity means
// destroying the session and creating a new one.
type Session struct {
	ID          string
	AccessToken string
	Username    string
	Role        identity.Role

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Authenticated reports whether the session carries a username and a known role.
func (s *Session) Authenticated() bool {
	return s != nil && s.Username != "" && s.Role.Valid()
}

// Expired reports whether the session lifetime has elapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// TTL returns the remaining lifetime at now, never negative.
func (s *Session) TTL(now time.Time) time.Duration {
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
