package jwt

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/authgate/identity"
	"github.com/MrEthical07/authgate/keys"
)

// Algorithm is the only accepted signing algorithm.
const Algorithm = "RS256"

const (
	defaultVerifyTimeout = 5 * time.Second
	defaultMaxFutureIAT  = 10 * time.Minute
	maxLeeway            = 2 * time.Minute
)

// Config tunes claim validation. Zero values select the defaults.
type Config struct {
	// Issuer, when set, must equal the token iss claim.
	Issuer string
	// Audience, when set, must be contained in the token aud claim.
	Audience string
	// Leeway tolerates clock skew on exp/nbf/iat. At most 2m.
	Leeway time.Duration
	// MaxFutureIAT rejects tokens issued too far in the future.
	MaxFutureIAT time.Duration
	// Timeout bounds the key lookup done by a single Verify call.
	Timeout time.Duration
}

// Verifier validates RS256 access tokens against the provider key.
//
// Verifier is safe for concurrent use.
type Verifier struct {
	config Config
	keys   keys.Source
	now    func() time.Time
}

type tokenClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewVerifier validates cfg and fills in defaults. It performs no I/O.
func NewVerifier(source keys.Source, cfg Config) (*Verifier, error) {
	if source == nil {
		return nil, errors.New("key source required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = defaultMaxFutureIAT
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultVerifyTimeout
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("invalid timeout configuration")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)

	return &Verifier{config: cfg, keys: source, now: time.Now}, nil
}

// Verify returns claims only for a token whose RS256 signature checks out
// against the current provider key, that is not expired, and that carries a
// known role. Every failure is a *VerifyError whose Kind says why.
func (v *Verifier) Verify(ctx context.Context, token string) (*identity.Claims, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.Count(token, ".") != 2 {
		return nil, newVerifyError(KindMalformedToken, errors.New("token is not a compact JWS"))
	}

	if err := v.precheck(token); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, v.config.Timeout)
	defer cancel()

	key, err := v.keys.PublicKey(ctx)
	if err != nil {
		return nil, newVerifyError(KindKeyFetchFailed, err)
	}

	parsed, err := v.parse(token, key)
	if err != nil && errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		// The provider may have rotated; try once more with a fresh key.
		if inv, ok := v.keys.(keys.Invalidator); ok {
			inv.Invalidate()
			if fresh, ferr := v.keys.PublicKey(ctx); ferr == nil && !fresh.Equal(key) {
				parsed, err = v.parse(token, fresh)
			}
		}
	}
	if err != nil {
		return nil, classify(err)
	}

	return v.claimsFrom(parsed)
}

// precheck inspects the unverified header and payload before any key
// lookup. Expiry wins over every other failure, whatever the algorithm.
func (v *Verifier) precheck(token string) error {
	unverified, _, err := jwt.NewParser().ParseUnverified(token, &tokenClaims{})
	// An unknown or missing alg still yields decoded claims.
	if err != nil && (unverified == nil || !errors.Is(err, jwt.ErrTokenUnverifiable)) {
		return newVerifyError(KindMalformedToken, err)
	}
	claims, ok := unverified.Claims.(*tokenClaims)
	if !ok {
		return newVerifyError(KindMalformedToken, jwt.ErrTokenInvalidClaims)
	}
	if claims.ExpiresAt != nil && !v.now().Before(claims.ExpiresAt.Time.Add(v.config.Leeway)) {
		return newVerifyError(KindExpired, jwt.ErrTokenExpired)
	}

	if err != nil {
		return newVerifyError(KindInvalidSignature, err)
	}
	if unverified.Method == nil || unverified.Method.Alg() != Algorithm {
		return newVerifyError(KindInvalidSignature, fmt.Errorf("unexpected signing algorithm: %v", unverified.Header["alg"]))
	}
	if claims.ExpiresAt == nil {
		return newVerifyError(KindMalformedToken, jwt.ErrTokenRequiredClaimMissing)
	}
	return nil
}

func (v *Verifier) parse(token string, key *rsa.PublicKey) (*tokenClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{Algorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(v.config.Leeway))
	}
	if v.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(v.config.Issuer))
	}
	if v.config.Audience != "" {
		options = append(options, jwt.WithAudience(v.config.Audience))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != Algorithm {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (v *Verifier) claimsFrom(claims *tokenClaims) (*identity.Claims, error) {
	role, ok := identity.ParseRole(claims.Role)
	if !ok {
		return nil, newVerifyError(KindMissingRoleClaim, fmt.Errorf("role claim %q is not a known role", claims.Role))
	}

	username := strings.TrimSpace(claims.Username)
	if username == "" {
		return nil, newVerifyError(KindMalformedToken, errors.New("missing username claim"))
	}

	out := &identity.Claims{
		Username:  username,
		Role:      role,
		Subject:   claims.Subject,
		Issuer:    claims.Issuer,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		if claims.IssuedAt.Time.After(v.now().Add(v.config.MaxFutureIAT)) {
			return nil, newVerifyError(KindMalformedToken, errors.New("token iat too far in the future"))
		}
		out.IssuedAt = claims.IssuedAt.Time
	}

	return out, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return newVerifyError(KindExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return newVerifyError(KindInvalidSignature, err)
	default:
		return newVerifyError(KindMalformedToken, err)
	}
}
