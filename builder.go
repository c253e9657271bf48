package authgate

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/keys"
	"github.com/MrEthical07/authgate/oauth"
	"github.com/MrEthical07/authgate/session"
)

const stateCookieSuffix = "_state"

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	sessions   session.Store
	keySource  keys.Source
	httpClient *http.Client
	logger     *zap.Logger
	auditSink  AuditSink

	// Metric toggles survive a later WithConfig.
	metricsEnabled *bool
	latencyEnabled *bool

	built bool
}

// New returns a Builder seeded with [DefaultConfig]. It performs no I/O.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Toggles set with
// WithMetricsEnabled or WithLatencyHistograms still win, in any order.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis stores sessions in Redis and enables failed-callback throttling.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionStore overrides the session backend. It takes precedence over
// WithRedis for sessions; the Redis client still backs throttling.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessions = store
	return b
}

// WithKeySource replaces the HTTP key fetcher. The source is still wrapped
// in the key cache.
func (b *Builder) WithKeySource(src keys.Source) *Builder {
	b.keySource = src
	return b
}

// WithHTTPClient sets the client used for key fetches and code exchange.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink only takes effect when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.metricsEnabled = &enabled
	return b
}

// WithLatencyHistograms toggles the verify latency histogram. It implies
// metrics.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.latencyEnabled = &enabled
	return b
}

// Build validates the configuration and wires every component. It fails fast
// on any missing required setting and performs no network I/O.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, fmt.Errorf("%w: builder already used", ErrEngineNotReady)
	}

	cfg := cloneConfig(b.config)
	if b.metricsEnabled != nil {
		cfg.Metrics.Enabled = *b.metricsEnabled
	}
	if b.latencyEnabled != nil {
		cfg.Metrics.EnableLatencyHistograms = *b.latencyEnabled
		if *b.latencyEnabled {
			cfg.Metrics.Enabled = true
		}
	}
	cfg.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Provider.BaseURL), "/")
	if cfg.Token.Audience == "" {
		cfg.Token.Audience = cfg.Provider.Audience
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := b.httpClient
	if client == nil {
		client = http.DefaultClient
	}

	// -------- KEYS --------
	source := b.keySource
	if source == nil {
		source = keys.NewHTTPFetcher(cfg.Provider.BaseURL+cfg.Provider.KeyPath, client, cfg.Keys.FetchTimeout)
	}
	keyCache, err := keys.NewCache(source, keys.CacheConfig{
		TTL:                cfg.Keys.TTL,
		MaxStale:           cfg.Keys.MaxStale,
		MinRefreshInterval: cfg.Keys.MinRefreshInterval,
	})
	if err != nil {
		return nil, err
	}

	// -------- VERIFIER --------
	verifier, err := jwt.NewVerifier(keyCache, jwt.Config{
		Issuer:       cfg.Token.Issuer,
		Audience:     cfg.Token.Audience,
		Leeway:       cfg.Token.Leeway,
		MaxFutureIAT: cfg.Token.MaxFutureIAT,
		Timeout:      cfg.Token.VerifyTimeout,
	})
	if err != nil {
		return nil, err
	}

	// -------- COOKIES --------
	sameSite, err := session.ParseSameSite(cfg.Session.CookieSameSite)
	if err != nil {
		return nil, err
	}
	cookieCfg := session.CookieConfig{
		Name:     cfg.Session.CookieName,
		Path:     cfg.Session.CookiePath,
		Domain:   cfg.Session.CookieDomain,
		Secure:   cfg.Session.CookieSecure,
		SameSite: sameSite,
	}
	cookies, err := session.NewCookies(cfg.Session.Secret, cookieCfg)
	if err != nil {
		return nil, err
	}
	var stateCookies *session.Cookies
	if cfg.Provider.StateCheck {
		stateCfg := cookieCfg
		stateCfg.Name = cfg.Session.CookieName + stateCookieSuffix
		stateCfg.Path = cfg.Routes.Callback
		if stateCookies, err = session.NewCookies(cfg.Session.Secret, stateCfg); err != nil {
			return nil, err
		}
	}

	// -------- SESSION STORE --------
	store := b.sessions
	if store == nil {
		if b.redis != nil {
			store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.TTL)
		} else {
			store = session.NewMemoryStore(cfg.Session.TTL)
		}
	}
	memory, _ := store.(*session.MemoryStore)

	var limiter *rate.Limiter
	if b.redis != nil {
		limiter = rate.New(b.redis, rate.Config{
			MaxCallbackFailures: cfg.Callback.MaxFailures,
			CallbackCooldown:    cfg.Callback.Cooldown,
		})
	}

	e := &Engine{
		config:   cfg,
		log:      logger.Named("authgate"),
		sessions: store,
		cookies:  cookies,
		keys:     keyCache,
		verifier: verifier,
		limiter:  limiter,
		metrics:  NewMetrics(cfg.Metrics),
		audit:    newAuditDispatcher(cfg.Audit, b.auditSink),
	}

	// -------- OAUTH FLOW --------
	controller, err := oauth.New(oauth.Config{
		ProviderURL:     cfg.Provider.BaseURL,
		ClientID:        cfg.Provider.ClientID,
		ClientSecret:    cfg.Provider.ClientSecret,
		RedirectURL:     cfg.Provider.RedirectURI,
		Scope:           cfg.Provider.Scope,
		Audience:        cfg.Provider.Audience,
		ExchangeTimeout: cfg.Provider.ExchangeTimeout,
		StateCheck:      cfg.Provider.StateCheck,
		StateTTL:        cfg.Provider.StateTTL,
		LoginPath:       cfg.Routes.Login,
		AfterLoginPath:  cfg.Routes.AfterLogin,
	}, oauth.Deps{
		Sessions:     store,
		Cookies:      cookies,
		StateCookies: stateCookies,
		Verifier:     engineVerifier{e},
		HTTPClient:   client,
		Limiter:      limiter,
		ClientIP:     clientIP,
		Logger:       logger,
		Hooks:        e.flowHooks(),
	})
	if err != nil {
		e.audit.Close()
		return nil, err
	}
	e.controller = controller

	if memory != nil && cfg.Session.SweepInterval > 0 {
		e.startSweeper(memory, cfg.Session.SweepInterval)
	}

	b.built = true
	return e, nil
}
