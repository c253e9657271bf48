package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MrEthical07/authgate"
)

const envPrefix = "AUTHGATE"

// settings is everything the server needs beyond the gateway itself.
type settings struct {
	Gateway authgate.Config

	Address         string
	ShutdownTimeout time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	LogLevel        string
	LogFormat       string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	d := authgate.DefaultConfig()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.client_id", "")
	v.SetDefault("provider.client_secret", "")
	v.SetDefault("provider.redirect_uri", "")
	v.SetDefault("provider.scope", d.Provider.Scope)
	v.SetDefault("provider.audience", "")
	v.SetDefault("provider.key_path", d.Provider.KeyPath)
	v.SetDefault("provider.exchange_timeout", d.Provider.ExchangeTimeout)
	v.SetDefault("provider.state_check", d.Provider.StateCheck)
	v.SetDefault("provider.state_ttl", d.Provider.StateTTL)

	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.cookie_name", d.Session.CookieName)
	v.SetDefault("session.cookie_path", d.Session.CookiePath)
	v.SetDefault("session.cookie_domain", d.Session.CookieDomain)
	v.SetDefault("session.cookie_secure", d.Session.CookieSecure)
	v.SetDefault("session.cookie_samesite", d.Session.CookieSameSite)
	v.SetDefault("session.redis_prefix", d.Session.RedisPrefix)
	v.SetDefault("session.sweep_interval", d.Session.SweepInterval)

	v.SetDefault("keys.ttl", d.Keys.TTL)
	v.SetDefault("keys.max_stale", d.Keys.MaxStale)
	v.SetDefault("keys.min_refresh_interval", d.Keys.MinRefreshInterval)
	v.SetDefault("keys.fetch_timeout", d.Keys.FetchTimeout)

	v.SetDefault("token.issuer", d.Token.Issuer)
	v.SetDefault("token.audience", d.Token.Audience)
	v.SetDefault("token.leeway", d.Token.Leeway)
	v.SetDefault("token.max_future_iat", d.Token.MaxFutureIAT)
	v.SetDefault("token.verify_timeout", d.Token.VerifyTimeout)

	v.SetDefault("routes.login", d.Routes.Login)
	v.SetDefault("routes.callback", d.Routes.Callback)
	v.SetDefault("routes.logout", d.Routes.Logout)
	v.SetDefault("routes.home", d.Routes.Home)
	v.SetDefault("routes.after_login", d.Routes.AfterLogin)

	v.SetDefault("callback.max_failures", d.Callback.MaxFailures)
	v.SetDefault("callback.cooldown", d.Callback.Cooldown)

	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.buffer_size", d.Audit.BufferSize)
	v.SetDefault("audit.drop_if_full", d.Audit.DropIfFull)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.latency_histograms", false)
}

// mustBind panics on a flag binding error.
func mustBind(key string, err error) {
	if err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

// readConfigFile merges the --config YAML file, if any, under the
// environment.
func readConfigFile(v *viper.Viper) error {
	path := v.GetString("config")
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func loadSettings(v *viper.Viper) (settings, error) {
	cfg := authgate.DefaultConfig()

	cfg.Provider = authgate.ProviderConfig{
		BaseURL:         v.GetString("provider.base_url"),
		ClientID:        v.GetString("provider.client_id"),
		ClientSecret:    v.GetString("provider.client_secret"),
		RedirectURI:     v.GetString("provider.redirect_uri"),
		Scope:           v.GetString("provider.scope"),
		Audience:        v.GetString("provider.audience"),
		KeyPath:         v.GetString("provider.key_path"),
		ExchangeTimeout: v.GetDuration("provider.exchange_timeout"),
		StateCheck:      v.GetBool("provider.state_check"),
		StateTTL:        v.GetDuration("provider.state_ttl"),
	}
	cfg.Session = authgate.SessionConfig{
		Secret:         []byte(v.GetString("session.secret")),
		TTL:            v.GetDuration("session.ttl"),
		CookieName:     v.GetString("session.cookie_name"),
		CookiePath:     v.GetString("session.cookie_path"),
		CookieDomain:   v.GetString("session.cookie_domain"),
		CookieSecure:   v.GetBool("session.cookie_secure"),
		CookieSameSite: v.GetString("session.cookie_samesite"),
		RedisPrefix:    v.GetString("session.redis_prefix"),
		SweepInterval:  v.GetDuration("session.sweep_interval"),
	}
	cfg.Keys = authgate.KeysConfig{
		TTL:                v.GetDuration("keys.ttl"),
		MaxStale:           v.GetDuration("keys.max_stale"),
		MinRefreshInterval: v.GetDuration("keys.min_refresh_interval"),
		FetchTimeout:       v.GetDuration("keys.fetch_timeout"),
	}
	cfg.Token = authgate.TokenConfig{
		Issuer:        v.GetString("token.issuer"),
		Audience:      v.GetString("token.audience"),
		Leeway:        v.GetDuration("token.leeway"),
		MaxFutureIAT:  v.GetDuration("token.max_future_iat"),
		VerifyTimeout: v.GetDuration("token.verify_timeout"),
	}
	cfg.Routes = authgate.RoutesConfig{
		Login:      v.GetString("routes.login"),
		Callback:   v.GetString("routes.callback"),
		Logout:     v.GetString("routes.logout"),
		Home:       v.GetString("routes.home"),
		AfterLogin: v.GetString("routes.after_login"),
	}
	cfg.Callback = authgate.CallbackConfig{
		MaxFailures: v.GetInt("callback.max_failures"),
		Cooldown:    v.GetDuration("callback.cooldown"),
	}
	cfg.Audit = authgate.AuditConfig{
		Enabled:    v.GetBool("audit.enabled"),
		BufferSize: v.GetInt("audit.buffer_size"),
		DropIfFull: v.GetBool("audit.drop_if_full"),
	}
	cfg.Metrics = authgate.MetricsConfig{
		Enabled:                 v.GetBool("metrics.enabled"),
		EnableLatencyHistograms: v.GetBool("metrics.latency_histograms"),
	}

	s := settings{
		Gateway:         cfg,
		Address:         v.GetString("server.address"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		RedisAddr:       strings.TrimSpace(v.GetString("redis.addr")),
		RedisPassword:   v.GetString("redis.password"),
		RedisDB:         v.GetInt("redis.db"),
		LogLevel:        v.GetString("log.level"),
		LogFormat:       v.GetString("log.format"),
	}
	if s.Address == "" {
		return settings{}, errors.New("server address is required")
	}
	if s.ShutdownTimeout <= 0 {
		return settings{}, errors.New("server shutdown_timeout must be > 0")
	}
	return s, nil
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	var zc zap.Config
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		zc = zap.NewProductionConfig()
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("log format %q is not json or console", format)
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
