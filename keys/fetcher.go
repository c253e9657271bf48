package keys

import (
	"bytes"
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// ErrNetworkFailure is returned when the provider key endpoint cannot be
// reached, times out, or answers with a non-2xx status.
var ErrNetworkFailure = errors.New("public key fetch failed")

// ErrInvalidKey is returned when the provider answers with material that is
// not an RSA public key.
var ErrInvalidKey = errors.New("invalid public key material")

const (
	defaultFetchTimeout = 5 * time.Second
	maxKeyBodySize      = 64 << 10
)

// Source yields the identity provider's current signing key.
type Source interface {
	PublicKey(ctx context.Context) (*rsa.PublicKey, error)
}

// Invalidator is implemented by sources that can drop a cached key so the
// next lookup goes back to the provider.
type Invalidator interface {
	Invalidate()
}

// HTTPFetcher retrieves the provider key with a single GET per call.
// It performs no caching and no retries.
type HTTPFetcher struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPFetcher returns a fetcher for url. A nil client uses
// [http.DefaultClient]; a non-positive timeout uses 5s.
func NewHTTPFetcher(url string, client *http.Client, timeout time.Duration) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPFetcher{url: url, client: client, timeout: timeout}
}

// PublicKey performs the GET and parses the response body.
func (f *HTTPFetcher) PublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	req.Header.Set("Accept", "application/x-pem-file, application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrNetworkFailure, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeyBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}

	return ParsePublicKey(body)
}

// ParsePublicKey decodes PEM (PKIX, PKCS1, or an X.509 certificate) or a
// JSON JWK / JWK Set into an RSA public key.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidKey)
	}

	if bytes.HasPrefix(data, []byte("-----BEGIN")) {
		key, err := gjwt.ParseRSAPublicKeyFromPEM(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return key, nil
	}

	if !strings.HasPrefix(string(data), "{") {
		return nil, fmt.Errorf("%w: unrecognized format", ErrInvalidKey)
	}

	set, err := jwk.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		var raw any
		if err := jwk.Export(key, &raw); err != nil {
			continue
		}
		if pub, ok := raw.(*rsa.PublicKey); ok {
			return pub, nil
		}
	}

	return nil, fmt.Errorf("%w: no RSA key in set", ErrInvalidKey)
}
