package authgate

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/authgate/session"
)

// Config is the complete gateway configuration.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Provider ProviderConfig
	Session  SessionConfig
	Keys     KeysConfig
	Token    TokenConfig
	Routes   RoutesConfig
	Callback CallbackConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
PROVIDER CONFIG
====================================
*/

// ProviderConfig is the OAuth2 client registration at the identity provider.
type ProviderConfig struct {
	// BaseURL is the provider root; /oauth/authorize, /oauth/token and
	// KeyPath are resolved against it.
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// Scope is a space-separated scope list.
	Scope    string
	Audience string
	// KeyPath serves the signing key as PEM or JWK.
	KeyPath         string
	ExchangeTimeout time.Duration
	// StateCheck binds a random state parameter to a signed cookie.
	StateCheck bool
	StateTTL   time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifetime, cookies and the Redis key space.
type SessionConfig struct {
	// Secret signs session cookies. At least 32 bytes.
	Secret []byte
	// TTL caps a session's lifetime. The access token exp caps it further.
	TTL          time.Duration
	CookieName   string
	CookiePath   string
	CookieDomain string
	CookieSecure bool
	// CookieSameSite is lax, strict or none.
	CookieSameSite string
	RedisPrefix    string
	// SweepInterval drives expiry of the in-memory store. Zero disables it.
	SweepInterval time.Duration
}

// KeysConfig bounds how the provider signing key is fetched and cached.
type KeysConfig struct {
	TTL                time.Duration
	MaxStale           time.Duration
	MinRefreshInterval time.Duration
	FetchTimeout       time.Duration
}

// TokenConfig drives access-token verification.
type TokenConfig struct {
	// Issuer, when set, must equal the iss claim.
	Issuer string
	// Audience, when set, must appear in aud. Defaults to Provider.Audience.
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	VerifyTimeout time.Duration
}

// RoutesConfig names the flow endpoints.
type RoutesConfig struct {
	Login      string
	Callback   string
	Logout     string
	Home       string
	AfterLogin string
}

// CallbackConfig throttles failed callbacks per client. Active only with
// a Redis client.
type CallbackConfig struct {
	MaxFailures int
	Cooldown    time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a configuration with every optional field set.
// Provider registration, including the scope, and the session secret must
// still be supplied.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			KeyPath:         "/pem",
			ExchangeTimeout: 10 * time.Second,
			StateTTL:        10 * time.Minute,
		},
		Session: SessionConfig{
			TTL:            session.DefaultTTL,
			CookieName:     session.DefaultCookieName,
			CookiePath:     "/",
			CookieSecure:   true,
			CookieSameSite: "lax",
			RedisPrefix:    "ag",
			SweepInterval:  time.Minute,
		},
		Keys: KeysConfig{
			TTL:                10 * time.Minute,
			MinRefreshInterval: 30 * time.Second,
			FetchTimeout:       5 * time.Second,
		},
		Token: TokenConfig{
			MaxFutureIAT:  10 * time.Minute,
			VerifyTimeout: 5 * time.Second,
		},
		Routes: RoutesConfig{
			Login:      "/auth",
			Callback:   "/callback",
			Logout:     "/logout",
			Home:       "/",
			AfterLogin: "/",
		},
		Callback: CallbackConfig{
			MaxFailures: 10,
			Cooldown:    15 * time.Minute,
		},
		Audit: AuditConfig{
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if len(cfg.Session.Secret) > 0 {
		out.Session.Secret = append([]byte(nil), cfg.Session.Secret...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first missing or invalid setting.
func (c *Config) Validate() error {
	// Provider
	if !absoluteHTTPURL(c.Provider.BaseURL) {
		return errors.New("Provider BaseURL must be an absolute http(s) URL")
	}
	if strings.TrimSpace(c.Provider.ClientID) == "" {
		return errors.New("Provider ClientID is required")
	}
	if strings.TrimSpace(c.Provider.ClientSecret) == "" {
		return errors.New("Provider ClientSecret is required")
	}
	if !absoluteHTTPURL(c.Provider.RedirectURI) {
		return errors.New("Provider RedirectURI must be an absolute http(s) URL")
	}
	if strings.TrimSpace(c.Provider.Scope) == "" {
		return errors.New("Provider Scope is required")
	}
	if strings.TrimSpace(c.Provider.Audience) == "" {
		return errors.New("Provider Audience is required")
	}
	if !localPath(c.Provider.KeyPath) {
		return errors.New("Provider KeyPath must start with /")
	}
	if c.Provider.ExchangeTimeout <= 0 {
		return errors.New("Provider ExchangeTimeout must be > 0")
	}
	if c.Provider.StateCheck && c.Provider.StateTTL <= 0 {
		return errors.New("Provider StateTTL must be > 0 when StateCheck is true")
	}

	// Session
	if len(c.Session.Secret) < session.MinSecretLength {
		return errors.New("Session Secret must be at least 32 bytes")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		return errors.New("Session CookieName is required")
	}
	if _, err := session.ParseSameSite(c.Session.CookieSameSite); err != nil {
		return errors.New("Session CookieSameSite must be lax, strict or none")
	}
	if strings.EqualFold(strings.TrimSpace(c.Session.CookieSameSite), "none") && !c.Session.CookieSecure {
		return errors.New("Session CookieSameSite none requires CookieSecure")
	}
	if c.Session.SweepInterval < 0 {
		return errors.New("Session SweepInterval must be >= 0")
	}

	// Keys
	if c.Keys.TTL <= 0 {
		return errors.New("Keys TTL must be > 0")
	}
	if c.Keys.MaxStale < 0 {
		return errors.New("Keys MaxStale must be >= 0")
	}
	if c.Keys.MinRefreshInterval < 0 {
		return errors.New("Keys MinRefreshInterval must be >= 0")
	}
	if c.Keys.FetchTimeout <= 0 {
		return errors.New("Keys FetchTimeout must be > 0")
	}

	// Token
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}
	if c.Token.MaxFutureIAT < 0 || c.Token.MaxFutureIAT > 24*time.Hour {
		return errors.New("Token MaxFutureIAT must be between 0 and 24h")
	}
	if c.Token.VerifyTimeout <= 0 {
		return errors.New("Token VerifyTimeout must be > 0")
	}

	// Routes
	for _, p := range []string{c.Routes.Login, c.Routes.Callback, c.Routes.Logout, c.Routes.Home, c.Routes.AfterLogin} {
		if !localPath(p) {
			return errors.New("Routes must be local paths starting with /")
		}
	}
	if c.Routes.Login == c.Routes.Callback || c.Routes.Login == c.Routes.Logout || c.Routes.Callback == c.Routes.Logout {
		return errors.New("Routes Login, Callback and Logout must differ")
	}

	// Callback
	if c.Callback.MaxFailures <= 0 {
		return errors.New("Callback MaxFailures must be > 0")
	}
	if c.Callback.Cooldown <= 0 {
		return errors.New("Callback Cooldown must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	return nil
}

func absoluteHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func localPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//")
}
