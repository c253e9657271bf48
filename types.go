package authgate

import (
	"github.com/MrEthical07/authgate/identity"
	"github.com/MrEthical07/authgate/session"
)

// Role is the gateway role carried by a session.
type Role = identity.Role

// Session is a server-side authenticated session.
type Session = session.Session

// Claims are the verified access-token assertions.
type Claims = identity.Claims

const (
	// RoleAdmin may perform any method.
	RoleAdmin = identity.RoleAdmin
	// RoleUser may perform GET only.
	RoleUser = identity.RoleUser
)
