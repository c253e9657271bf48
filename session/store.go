package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authgate/identity"
	"github.com/MrEthical07/authgate/internal"
)

// DefaultTTL is the session lifetime when none is configured.
const DefaultTTL = 8 * time.Hour

var (
	// ErrNotFound is returned by Get when the session is absent or expired.
	ErrNotFound = errors.New("session not found")
	// ErrStoreUnavailable wraps backend failures. Callers must deny access.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrInvalidSession is returned by Create for claims that cannot back a session.
	ErrInvalidSession = errors.New("invalid session claims")
)

// Store persists sessions. Implementations must be safe for concurrent use
// and must never expose a partially written session.
type Store interface {
	// Create stores a new session under a fresh random id.
	Create(ctx context.Context, accessToken string, claims identity.Claims) (*Session, error)
	// Get returns ErrNotFound for absent or expired sessions.
	Get(ctx context.Context, id string) (*Session, error)
	// Destroy removes the session; absent ids are not an error.
	Destroy(ctx context.Context, id string) error
}

// newSession validates claims and builds the record written by Create.
// Times are truncated to whole seconds so every backend round-trips them
// exactly.
func newSession(accessToken string, claims identity.Claims, ttl time.Duration, now time.Time) (*Session, error) {
	username := strings.TrimSpace(claims.Username)
	if username == "" || !claims.Role.Valid() {
		return nil, ErrInvalidSession
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrInvalidSession
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	created := time.Unix(now.Unix(), 0)
	expires := created.Add(ttl)
	if !claims.ExpiresAt.IsZero() && claims.ExpiresAt.Before(expires) {
		expires = time.Unix(claims.ExpiresAt.Unix(), 0)
	}
	if !expires.After(created) {
		return nil, ErrInvalidSession
	}

	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}

	return &Session{
		ID:          sid.String(),
		AccessToken: accessToken,
		Username:    username,
		Role:        claims.Role,
		CreatedAt:   created,
		ExpiresAt:   expires,
	}, nil
}

func validID(id string) bool {
	_, err := internal.ParseSessionID(id)
	return err == nil
}
