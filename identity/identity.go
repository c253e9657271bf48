// Package identity holds the verified identity model shared by the token
// verifier, the session store, and the authorization decider.
//
// Values in this package are only ever constructed from verified token
// output. Nothing here parses client-supplied input into a [Role].
package identity

import (
	"strings"
	"time"
)

// Role is one of the two fixed gateway roles.
type Role string

const (
	// RoleAdmin may perform any method on protected resources.
	RoleAdmin Role = "admin"
	// RoleUser may perform read-only methods.
	RoleUser Role = "user"
)

// ParseRole maps a raw claim value onto a known [Role].
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.TrimSpace(raw)) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	default:
		return "", false
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

func (r Role) String() string {
	return string(r)
}

// Claims are the identity assertions decoded from a verified access token.
//
// Claims are immutable once returned by the verifier.
type Claims struct {
	Username  string
	Role      Role
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Complete reports whether claims carry both a username and a known role.
func (c Claims) Complete() bool {
	return c.Username != "" && c.Role.Valid()
}
