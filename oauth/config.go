package oauth

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAuthorizePath   = "/oauth/authorize"
	defaultTokenPath       = "/oauth/token"
	defaultExchangeTimeout = 10 * time.Second
	defaultStateTTL        = 10 * time.Minute
	defaultLoginPath       = "/auth"
	defaultAfterLoginPath  = "/"
)

// Config describes the provider client registration and flow routes.
type Config struct {
	ProviderURL  string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Scope is a space-separated scope list.
	Scope    string
	Audience string

	AuthorizePath string
	TokenPath     string

	ExchangeTimeout time.Duration

	// StateCheck binds a random state parameter to a signed cookie.
	StateCheck bool
	StateTTL   time.Duration

	LoginPath      string
	AfterLoginPath string
}

func (c *Config) setDefaults() {
	c.ProviderURL = strings.TrimRight(strings.TrimSpace(c.ProviderURL), "/")
	if c.AuthorizePath == "" {
		c.AuthorizePath = defaultAuthorizePath
	}
	if c.TokenPath == "" {
		c.TokenPath = defaultTokenPath
	}
	if c.ExchangeTimeout <= 0 {
		c.ExchangeTimeout = defaultExchangeTimeout
	}
	if c.StateTTL <= 0 {
		c.StateTTL = defaultStateTTL
	}
	if c.LoginPath == "" {
		c.LoginPath = defaultLoginPath
	}
	if c.AfterLoginPath == "" {
		c.AfterLoginPath = defaultAfterLoginPath
	}
}

// Validate reports the first missing or malformed setting.
func (c Config) Validate() error {
	if err := absoluteHTTPURL(c.ProviderURL); err != nil {
		return errors.New("oauth provider URL must be an absolute http(s) URL")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return errors.New("oauth client id is required")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		return errors.New("oauth client secret is required")
	}
	if err := absoluteHTTPURL(c.RedirectURL); err != nil {
		return errors.New("oauth redirect URI must be an absolute http(s) URL")
	}
	if strings.TrimSpace(c.Scope) == "" {
		return errors.New("oauth scope is required")
	}
	if strings.TrimSpace(c.Audience) == "" {
		return errors.New("oauth audience is required")
	}
	if !strings.HasPrefix(c.LoginPath, "/") && c.LoginPath != "" {
		return errors.New("oauth login path must start with /")
	}
	if !strings.HasPrefix(c.AfterLoginPath, "/") && c.AfterLoginPath != "" {
		return errors.New("oauth after-login path must be a local path")
	}
	if strings.HasPrefix(c.AfterLoginPath, "//") {
		return errors.New("oauth after-login path must be a local path")
	}
	return nil
}

func absoluteHTTPURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("not an absolute http(s) URL")
	}
	return nil
}
