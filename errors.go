package authgate

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/keys"
	"github.com/MrEthical07/authgate/oauth"
	"github.com/MrEthical07/authgate/session"
)

var (
	// ErrUnauthenticated means the request carries no usable session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInsufficientPrivilege means the session role does not permit the method.
	ErrInsufficientPrivilege = errors.New("insufficient privilege")
	// ErrEngineNotReady is returned by a Builder used a second time.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrSessionNotFound re-exports session.ErrNotFound.
	ErrSessionNotFound = session.ErrNotFound
	// ErrStoreUnavailable re-exports session.ErrStoreUnavailable.
	ErrStoreUnavailable = session.ErrStoreUnavailable
	// ErrNetworkFailure re-exports oauth.ErrNetworkFailure.
	ErrNetworkFailure = oauth.ErrNetworkFailure
	// ErrKeyFetchFailed re-exports keys.ErrNetworkFailure.
	ErrKeyFetchFailed = keys.ErrNetworkFailure
	// ErrExchangeRejected re-exports oauth.ErrExchangeRejected.
	ErrExchangeRejected = oauth.ErrExchangeRejected
	// ErrMissingAccessToken re-exports oauth.ErrMissingAccessToken.
	ErrMissingAccessToken = oauth.ErrMissingAccessToken
	// ErrRateLimited re-exports oauth.ErrRateLimited.
	ErrRateLimited = oauth.ErrRateLimited
	// ErrInvalidToken matches every token verification failure.
	ErrInvalidToken = errors.New("invalid access token")
)

// StatusFor maps any gateway error to the HTTP status a client sees.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInsufficientPrivilege):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrInvalidToken),
		errors.Is(err, session.ErrNotFound):
		return http.StatusUnauthorized
	default:
		return oauth.StatusFor(err)
	}
}

// tokenError tags a token rejection with ErrInvalidToken while keeping the
// underlying *jwt.VerifyError reachable. Key fetch failures are not token
// rejections and stay untagged.
type tokenError struct {
	err error
}

func (e *tokenError) Error() string { return e.err.Error() }

func (e *tokenError) Unwrap() []error { return []error{ErrInvalidToken, e.err} }

func wrapVerifyError(err error) error {
	if kind := jwt.KindOf(err); kind == 0 || kind == jwt.KindKeyFetchFailed {
		return err
	}
	return &tokenError{err: err}
}
