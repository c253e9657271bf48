package oauth

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/keys"
	"github.com/MrEthical07/authgate/session"
)

var (
	// ErrNetworkFailure means the provider could not be reached or failed upstream.
	ErrNetworkFailure = errors.New("identity provider unreachable")
	// ErrExchangeRejected means the provider refused the authorization code.
	ErrExchangeRejected = errors.New("token exchange rejected")
	// ErrMissingAccessToken means the token response carried no access_token.
	ErrMissingAccessToken = errors.New("token response missing access_token")
	// ErrMissingCode means the callback carried no code parameter.
	ErrMissingCode = errors.New("callback missing code")
	// ErrProviderError means the provider redirected back with an error parameter.
	ErrProviderError = errors.New("provider returned an error")
	// ErrStateMismatch means the callback state did not match the state cookie.
	ErrStateMismatch = errors.New("oauth state mismatch")
	// ErrRateLimited means the client exceeded its failed-callback budget.
	ErrRateLimited = rate.ErrRateLimited
)

// StatusFor maps a flow error to the HTTP status reported to the client.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, rate.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrNetworkFailure),
		errors.Is(err, keys.ErrNetworkFailure),
		errors.Is(err, jwt.ErrKeyFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrStoreUnavailable):
		return http.StatusInternalServerError
	case errors.Is(err, ErrExchangeRejected),
		errors.Is(err, ErrMissingAccessToken),
		errors.Is(err, ErrMissingCode),
		errors.Is(err, ErrProviderError),
		errors.Is(err, ErrStateMismatch),
		errors.Is(err, session.ErrInvalidSession),
		jwt.KindOf(err) != 0:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// countsAgainstClient reports whether a failure is attributable to the
// caller and should be charged to its callback budget.
func countsAgainstClient(err error) bool {
	return StatusFor(err) == http.StatusUnauthorized
}
