package authgate

import (
	"strings"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Provider.BaseURL = "https://idp.example.com"
	cfg.Provider.ClientID = "client"
	cfg.Provider.ClientSecret = "secret"
	cfg.Provider.RedirectURI = "https://app.example.com/callback"
	cfg.Provider.Audience = "https://api.example.com"
	cfg.Provider.Scope = "openid profile"
	cfg.Session.Secret = []byte(strings.Repeat("x", 32))
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with registration",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "http provider allowed",
			mutate: func(c *Config) {
				c.Provider.BaseURL = "http://localhost:9000"
			},
			wantValid: true,
		},
		{
			name: "ftp provider invalid",
			mutate: func(c *Config) {
				c.Provider.BaseURL = "ftp://idp.example.com"
			},
			wantValid: false,
		},
		{
			name: "relative redirect invalid",
			mutate: func(c *Config) {
				c.Provider.RedirectURI = "/callback"
			},
			wantValid: false,
		},
		{
			name: "blank audience invalid",
			mutate: func(c *Config) {
				c.Provider.Audience = "   "
			},
			wantValid: false,
		},
		{
			name: "key path must be local",
			mutate: func(c *Config) {
				c.Provider.KeyPath = "https://elsewhere/pem"
			},
			wantValid: false,
		},
		{
			name: "state check needs ttl",
			mutate: func(c *Config) {
				c.Provider.StateCheck = true
				c.Provider.StateTTL = 0
			},
			wantValid: false,
		},
		{
			name: "31 byte secret invalid",
			mutate: func(c *Config) {
				c.Session.Secret = []byte(strings.Repeat("x", 31))
			},
			wantValid: false,
		},
		{
			name: "samesite strict valid",
			mutate: func(c *Config) {
				c.Session.CookieSameSite = "strict"
			},
			wantValid: true,
		},
		{
			name: "samesite invalid",
			mutate: func(c *Config) {
				c.Session.CookieSameSite = "sometimes"
			},
			wantValid: false,
		},
		{
			name: "samesite none requires secure",
			mutate: func(c *Config) {
				c.Session.CookieSameSite = "none"
				c.Session.CookieSecure = false
			},
			wantValid: false,
		},
		{
			name: "session ttl zero invalid",
			mutate: func(c *Config) {
				c.Session.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "key ttl zero invalid",
			mutate: func(c *Config) {
				c.Keys.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "token leeway valid",
			mutate: func(c *Config) {
				c.Token.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "token leeway invalid",
			mutate: func(c *Config) {
				c.Token.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "max future iat negative invalid",
			mutate: func(c *Config) {
				c.Token.MaxFutureIAT = -time.Second
			},
			wantValid: false,
		},
		{
			name: "protocol-relative route invalid",
			mutate: func(c *Config) {
				c.Routes.AfterLogin = "//evil.example.com"
			},
			wantValid: false,
		},
		{
			name: "colliding routes invalid",
			mutate: func(c *Config) {
				c.Routes.Logout = c.Routes.Login
			},
			wantValid: false,
		},
		{
			name: "callback budget zero invalid",
			mutate: func(c *Config) {
				c.Callback.MaxFailures = 0
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDefaultConfigNeedsRegistration(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without provider registration to fail")
	}
}

func TestDefaultConfigRequiresScope(t *testing.T) {
	cfg := validTestConfig()
	cfg.Provider.Scope = DefaultConfig().Provider.Scope
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "Scope") {
		t.Fatalf("expected missing scope to fail validation, got %v", err)
	}
}

func TestCloneConfigCopiesSecret(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)
	clone.Session.Secret[0] = 'y'
	if cfg.Session.Secret[0] != 'x' {
		t.Fatal("expected clone to own its secret")
	}
}
