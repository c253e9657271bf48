package authgate

import (
	"net/http"

	"github.com/MrEthical07/authgate/identity"
	"github.com/MrEthical07/authgate/session"
)

// Decision is the outcome of an authorization check. StatusOnDeny is zero
// when Allowed is true.
type Decision struct {
	Allowed      bool
	StatusOnDeny int
}

var (
	allow          = Decision{Allowed: true}
	denyUnauth     = Decision{StatusOnDeny: http.StatusUnauthorized}
	denyForbidden  = Decision{StatusOnDeny: http.StatusForbidden}
	denyStoreError = Decision{StatusOnDeny: http.StatusInternalServerError}
)

// Decide applies the role policy to a session and request method. It is pure.
func Decide(sess *session.Session, method string) Decision {
	if !sess.Authenticated() {
		return denyUnauth
	}

	switch sess.Role {
	case identity.RoleAdmin:
		return allow
	case identity.RoleUser:
		if readOnly(method) {
			return allow
		}
		return denyForbidden
	default:
		return denyUnauth
	}
}

func readOnly(method string) bool {
	return method == http.MethodGet
}
