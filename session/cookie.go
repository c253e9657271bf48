package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"
)

// DefaultCookieName is the session cookie name when none is configured.
const DefaultCookieName = "authgate_session"

// MinSecretLength is the minimum session secret size in bytes.
const MinSecretLength = 32

// CookieConfig controls the attributes of issued cookies. HttpOnly is always set.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// Cookies signs and verifies cookie values of the form id.mac, where mac is
// base64url(HMAC-SHA256(id)) under a key derived from the session secret.
type Cookies struct {
	cfg CookieConfig
	key []byte
}

// NewCookies derives a per-cookie-name signing key from secret with HKDF.
func NewCookies(secret []byte, cfg CookieConfig) (*Cookies, error) {
	if len(secret) < MinSecretLength {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	if cfg.Name == "" {
		cfg.Name = DefaultCookieName
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}

	key := make([]byte, sha256.Size)
	kdf := hkdf.New(sha256.New, secret, nil, []byte("authgate cookie v1 "+cfg.Name))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}

	return &Cookies{cfg: cfg, key: key}, nil
}

// Name returns the cookie name.
func (c *Cookies) Name() string {
	return c.cfg.Name
}

// Encode returns the signed cookie value for value.
func (c *Cookies) Encode(value string) string {
	return value + "." + base64.RawURLEncoding.EncodeToString(c.mac(value))
}

// Decode verifies a signed value. Tampered or malformed values are reported
// as absent.
func (c *Cookies) Decode(signed string) (string, bool) {
	i := strings.LastIndexByte(signed, '.')
	if i <= 0 || i == len(signed)-1 {
		return "", false
	}
	value, sig := signed[:i], signed[i+1:]

	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(got, c.mac(value)) {
		return "", false
	}
	return value, true
}

// Read returns the verified value carried by the request, if any.
func (c *Cookies) Read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.cfg.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return c.Decode(cookie.Value)
}

// Set writes a signed cookie that lives for maxAge.
func (c *Cookies) Set(w http.ResponseWriter, value string, maxAge time.Duration) {
	secs := int(maxAge / time.Second)
	if secs <= 0 {
		secs = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.cfg.Name,
		Value:    c.Encode(value),
		Path:     c.cfg.Path,
		Domain:   c.cfg.Domain,
		MaxAge:   secs,
		Expires:  time.Now().Add(time.Duration(secs) * time.Second),
		Secure:   c.cfg.Secure,
		HttpOnly: true,
		SameSite: c.cfg.SameSite,
	})
}

// Clear expires the cookie on the client.
func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cfg.Name,
		Value:    "",
		Path:     c.cfg.Path,
		Domain:   c.cfg.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   c.cfg.Secure,
		HttpOnly: true,
		SameSite: c.cfg.SameSite,
	})
}

func (c *Cookies) mac(value string) []byte {
	h := hmac.New(sha256.New, c.key)
	h.Write([]byte(value))
	return h.Sum(nil)
}

// ParseSameSite maps lax, strict and none to their http.SameSite values.
func ParseSameSite(raw string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, errors.New("samesite must be one of lax, strict, none")
	}
}
