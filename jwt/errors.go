package jwt

import "errors"

// Kind identifies why a token failed verification.
type Kind uint8

const (
	// KindInvalidSignature covers a bad signature and any algorithm other than RS256.
	KindInvalidSignature Kind = iota + 1
	// KindExpired is reported for tokens past exp, regardless of signature.
	KindExpired
	// KindMalformedToken covers undecodable tokens and failed issuer/audience/iat checks.
	KindMalformedToken
	// KindKeyFetchFailed means the provider key could not be obtained in time.
	KindKeyFetchFailed
	// KindMissingRoleClaim means the role claim is absent or not a known role.
	KindMissingRoleClaim
)

var (
	// ErrInvalidSignature matches VerifyError values of KindInvalidSignature.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired matches VerifyError values of KindExpired.
	ErrExpired = errors.New("token expired")
	// ErrMalformedToken matches VerifyError values of KindMalformedToken.
	ErrMalformedToken = errors.New("malformed token")
	// ErrKeyFetchFailed matches VerifyError values of KindKeyFetchFailed.
	ErrKeyFetchFailed = errors.New("public key fetch failed")
	// ErrMissingRoleClaim matches VerifyError values of KindMissingRoleClaim.
	ErrMissingRoleClaim = errors.New("missing role claim")
)

func (k Kind) String() string {
	switch k {
	case KindInvalidSignature:
		return "invalid_signature"
	case KindExpired:
		return "expired"
	case KindMalformedToken:
		return "malformed_token"
	case KindKeyFetchFailed:
		return "key_fetch_failed"
	case KindMissingRoleClaim:
		return "missing_role_claim"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidSignature:
		return ErrInvalidSignature
	case KindExpired:
		return ErrExpired
	case KindMalformedToken:
		return ErrMalformedToken
	case KindKeyFetchFailed:
		return ErrKeyFetchFailed
	case KindMissingRoleClaim:
		return ErrMissingRoleClaim
	default:
		return nil
	}
}

// VerifyError is the only error type returned by [Verifier.Verify].
type VerifyError struct {
	Kind Kind
	Err  error
}

func newVerifyError(kind Kind, err error) *VerifyError {
	return &VerifyError{Kind: kind, Err: err}
}

func (e *VerifyError) Error() string {
	if e.Err == nil {
		return e.Kind.sentinel().Error()
	}
	return e.Kind.sentinel().Error() + ": " + e.Err.Error()
}

func (e *VerifyError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the kind's sentinel.
func (e *VerifyError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf extracts the verification kind from err, or 0 when err is not a
// *VerifyError.
func KindOf(err error) Kind {
	var verr *VerifyError
	if errors.As(err, &verr) {
		return verr.Kind
	}
	return 0
}
