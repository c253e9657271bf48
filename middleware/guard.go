package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/identity"
	"github.com/MrEthical07/authgate/session"
)

// SessionFromContext returns the session a guard admitted the request with.
func SessionFromContext(r *http.Request) (*session.Session, bool) {
	return authgate.SessionFromContext(r.Context())
}

// Guard admits requests whose session cookie passes the role policy.
func Guard(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				deny(w, http.StatusInternalServerError)
				return
			}

			sess, d := engine.Authorize(r)
			if !d.Allowed {
				deny(w, d.StatusOnDeny)
				return
			}

			next.ServeHTTP(w, r.WithContext(authgate.WithSession(r.Context(), sess)))
		})
	}
}

// RequireAdmin admits only admin sessions, whatever the method.
func RequireAdmin(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r)
			if !ok || sess.Role != identity.RoleAdmin {
				deny(w, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// RequireBearer admits requests carrying a valid provider access token in
// the Authorization header. The token is verified on every request and no
// session is stored; the context session has an empty ID.
func RequireBearer(engine *authgate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				deny(w, http.StatusInternalServerError)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				deny(w, http.StatusUnauthorized)
				return
			}

			claims, err := engine.Verify(r.Context(), token)
			if err != nil {
				deny(w, authgate.StatusFor(err))
				return
			}

			sess := &session.Session{
				AccessToken: token,
				Username:    claims.Username,
				Role:        claims.Role,
				CreatedAt:   time.Now(),
				ExpiresAt:   claims.ExpiresAt,
			}
			d := authgate.Decide(sess, r.Method)
			if !d.Allowed {
				deny(w, d.StatusOnDeny)
				return
			}

			next.ServeHTTP(w, r.WithContext(authgate.WithSession(r.Context(), sess)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func deny(w http.ResponseWriter, status int) {
	w.Header().Set("Cache-Control", "no-store")
	http.Error(w, http.StatusText(status), status)
}
