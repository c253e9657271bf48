// Package testidp is an in-process identity provider that speaks the subset
// of the provider API authgate consumes: GET /pem, GET /.well-known/jwks.json,
// GET /oauth/authorize and POST /oauth/token.
//
// Authorize never shows a login page. It issues a one-time code for the
// provider's default grant and redirects straight back.
package testidp

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// Grant is what the provider asserts for an issued code.
type Grant struct {
	Username string
	Role     string
	TTL      time.Duration
	// AccessToken, when set, is returned verbatim instead of a signed JWT.
	AccessToken string
}

// Provider is a fake identity provider. It is safe for concurrent use.
type Provider struct {
	ClientID     string
	ClientSecret string
	Audience     string

	srv     *httptest.Server
	baseURL string

	mu           sync.Mutex
	key          *rsa.PrivateKey
	kid          string
	codes        map[string]Grant
	defaultGrant Grant
	tokenStatus  int
	keyStatus    int

	keyRequests   atomic.Int32
	tokenRequests atomic.Int32
}

// New starts a provider on a loopback listener. Call Close when done.
func New(clientID, clientSecret string) (*Provider, error) {
	p, err := NewUnstarted(clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	p.srv = httptest.NewServer(p.Handler())
	return p, nil
}

// NewUnstarted builds a provider without a listener, for callers that serve
// [Provider.Handler] themselves.
func NewUnstarted(clientID, clientSecret string) (*Provider, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &Provider{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Audience:     "authgate",
		key:          key,
		kid:          randomString(8),
		codes:        make(map[string]Grant),
		defaultGrant: Grant{Username: "alice", Role: "admin", TTL: time.Hour},
	}, nil
}

// URL is the provider base URL.
func (p *Provider) URL() string {
	if p.baseURL != "" {
		return p.baseURL
	}
	if p.srv == nil {
		return ""
	}
	return p.srv.URL
}

// SetBaseURL records where an unstarted provider is being served.
func (p *Provider) SetBaseURL(u string) {
	p.baseURL = u
}

// Close stops the listener started by New.
func (p *Provider) Close() {
	if p.srv != nil {
		p.srv.Close()
	}
}

// Handler returns the provider routes.
func (p *Provider) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/pem", p.handlePEM)
	r.Get("/.well-known/jwks.json", p.handleJWKS)
	r.Get("/oauth/authorize", p.handleAuthorize)
	r.Post("/oauth/token", p.handleToken)
	return r
}

// SetDefaultGrant changes the identity asserted by /oauth/authorize.
func (p *Provider) SetDefaultGrant(g Grant) {
	p.mu.Lock()
	p.defaultGrant = g
	p.mu.Unlock()
}

// IssueCode registers a one-time code for g.
func (p *Provider) IssueCode(g Grant) string {
	code := randomString(16)
	p.mu.Lock()
	p.codes[code] = g
	p.mu.Unlock()
	return code
}

// FailToken makes /oauth/token answer with status until reset with 0.
func (p *Provider) FailToken(status int) {
	p.mu.Lock()
	p.tokenStatus = status
	p.mu.Unlock()
}

// FailKeys makes /pem and the JWKS endpoint answer with status until reset with 0.
func (p *Provider) FailKeys(status int) {
	p.mu.Lock()
	p.keyStatus = status
	p.mu.Unlock()
}

// Rotate replaces the signing key.
func (p *Provider) Rotate() error {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.key = key
	p.kid = randomString(8)
	p.mu.Unlock()
	return nil
}

// PublicKey returns the current verification key.
func (p *Provider) PublicKey() *rsa.PublicKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &p.key.PublicKey
}

// KeyRequests counts hits on the key endpoints.
func (p *Provider) KeyRequests() int {
	return int(p.keyRequests.Load())
}

// TokenRequests counts hits on /oauth/token.
func (p *Provider) TokenRequests() int {
	return int(p.tokenRequests.Load())
}

// Sign issues an RS256 access token for the given identity.
func (p *Provider) Sign(username, role string, ttl time.Duration) (string, error) {
	p.mu.Lock()
	key, kid := p.key, p.kid
	p.mu.Unlock()

	now := time.Now()
	claims := gjwt.MapClaims{
		"iss": p.URL() + "/",
		"sub": "testidp|" + username,
		"aud": p.Audience,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if username != "" {
		claims["username"] = username
	}
	if role != "" {
		claims["role"] = role
	}

	token := gjwt.NewWithClaims(gjwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	return token.SignedString(key)
}

func (p *Provider) keyFailure(w http.ResponseWriter) bool {
	p.keyRequests.Add(1)
	p.mu.Lock()
	status := p.keyStatus
	p.mu.Unlock()
	if status != 0 {
		http.Error(w, http.StatusText(status), status)
		return true
	}
	return false
}

func (p *Provider) handlePEM(w http.ResponseWriter, _ *http.Request) {
	if p.keyFailure(w) {
		return
	}
	der, err := x509.MarshalPKIXPublicKey(p.PublicKey())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-pem-file")
	_ = pem.Encode(w, &pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

func (p *Provider) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	if p.keyFailure(w) {
		return
	}
	p.mu.Lock()
	pub, kid := &p.key.PublicKey, p.kid
	p.mu.Unlock()

	key, err := jwk.Import(pub)
	if err == nil {
		err = key.Set(jwk.KeyIDKey, kid)
	}
	if err == nil {
		err = key.Set(jwk.AlgorithmKey, "RS256")
	}
	if err == nil {
		err = key.Set(jwk.KeyUsageKey, "sig")
	}
	set := jwk.NewSet()
	if err == nil {
		err = set.AddKey(key)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (p *Provider) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("response_type") != "code" || q.Get("client_id") != p.ClientID {
		http.Error(w, "invalid_request", http.StatusBadRequest)
		return
	}
	redirect, err := url.Parse(q.Get("redirect_uri"))
	if err != nil || !redirect.IsAbs() {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	grant := p.defaultGrant
	p.mu.Unlock()

	back := redirect.Query()
	back.Set("code", p.IssueCode(grant))
	if state := q.Get("state"); state != "" {
		back.Set("state", state)
	}
	redirect.RawQuery = back.Encode()
	http.Redirect(w, r, redirect.String(), http.StatusFound)
}

type tokenResponse struct {
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (p *Provider) handleToken(w http.ResponseWriter, r *http.Request) {
	p.tokenRequests.Add(1)

	p.mu.Lock()
	status := p.tokenStatus
	p.mu.Unlock()
	if status != 0 {
		writeJSON(w, status, errorResponse{Error: "server_error"})
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request"})
		return
	}
	if r.PostForm.Get("grant_type") != "authorization_code" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unsupported_grant_type"})
		return
	}
	if r.PostForm.Get("client_id") != p.ClientID || r.PostForm.Get("client_secret") != p.ClientSecret {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid_client"})
		return
	}

	code := r.PostForm.Get("code")
	p.mu.Lock()
	grant, ok := p.codes[code]
	delete(p.codes, code)
	p.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_grant"})
		return
	}

	ttl := grant.TTL
	if ttl == 0 {
		ttl = time.Hour
	}
	token := grant.AccessToken
	if token == "" {
		var err error
		token, err = p.Sign(grant.Username, grant.Role, ttl)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "server_error"})
			return
		}
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl / time.Second),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func randomString(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(errors.New("testidp: crypto/rand unavailable"))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
