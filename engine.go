package authgate

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/MrEthical07/authgate/identity"
	"github.com/MrEthical07/authgate/internal"
	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/keys"
	"github.com/MrEthical07/authgate/oauth"
	"github.com/MrEthical07/authgate/session"
)

// Engine is the assembled gateway. Build it with [New] and [Builder.Build].
//
// Engine is safe for concurrent use.
type Engine struct {
	config     Config
	log        *zap.Logger
	sessions   session.Store
	cookies    *session.Cookies
	keys       *keys.Cache
	verifier   *jwt.Verifier
	controller *oauth.Controller
	limiter    *rate.Limiter
	metrics    *Metrics
	audit      *auditDispatcher

	sweepStop chan struct{}
	sweepDone chan struct{}
	closeOnce sync.Once
}

// Close stops background work and flushes buffered audit events. The engine
// keeps answering requests afterwards; only sweeping and auditing end.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		if e.sweepStop != nil {
			close(e.sweepStop)
			<-e.sweepDone
		}
		e.audit.Close()
	})
}

// AuditDropped returns the number of audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the gateway counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns the effective configuration with defaults applied.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// SessionFromRequest loads the session referenced by the request cookie.
// Absence is reported as [ErrSessionNotFound]; any other error is a backend
// failure.
func (e *Engine) SessionFromRequest(r *http.Request) (*session.Session, error) {
	return session.FromRequest(r, e.sessions, e.cookies)
}

// RequireAuthorization answers whether the request may reach a protected
// resource. It never allows on an error path.
func (e *Engine) RequireAuthorization(r *http.Request) Decision {
	_, d := e.Authorize(r)
	return d
}

// Authorize is RequireAuthorization that also returns the session it
// decided on. The session is nil unless the request is allowed.
func (e *Engine) Authorize(r *http.Request) (*session.Session, Decision) {
	sess, err := e.SessionFromRequest(r)
	if err != nil && !session.IsAbsent(err) {
		e.metricInc(MetricStoreFailure)
		e.log.Error("session lookup failed",
			zap.String("event", auditEventAccessDenied),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		e.emitAccessDenied(r, nil, denyStoreError, err)
		return nil, denyStoreError
	}

	d := Decide(sess, r.Method)
	switch {
	case d.Allowed:
		e.metricInc(MetricAccessAllowed)
		return sess, d
	case d.StatusOnDeny == http.StatusForbidden:
		e.metricInc(MetricAccessForbidden)
		e.emitAccessDenied(r, sess, d, ErrInsufficientPrivilege)
	default:
		e.metricInc(MetricAccessUnauthenticated)
		e.emitAccessDenied(r, sess, d, ErrUnauthenticated)
	}
	return nil, d
}

// Verify checks an access token against the provider key. Rejections match
// [ErrInvalidToken] and keep their *jwt.VerifyError.
func (e *Engine) Verify(ctx context.Context, token string) (*identity.Claims, error) {
	start := time.Now()
	claims, err := e.verifier.Verify(ctx, token)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		e.log.Debug("token rejected", zap.Stringer("kind", jwt.KindOf(err)))
		return nil, wrapVerifyError(err)
	}
	return claims, nil
}

// engineVerifier routes flow verification through Engine.Verify so it is
// measured.
type engineVerifier struct {
	e *Engine
}

func (v engineVerifier) Verify(ctx context.Context, token string) (*identity.Claims, error) {
	return v.e.Verify(ctx, token)
}

// HandleLogin redirects to the provider login page.
func (e *Engine) HandleLogin(w http.ResponseWriter, r *http.Request) {
	e.controller.HandleInitiate(w, r)
}

// HandleCallback completes the code exchange.
func (e *Engine) HandleCallback(w http.ResponseWriter, r *http.Request) {
	e.controller.HandleCallback(w, r)
}

// HandleLogout ends the session.
func (e *Engine) HandleLogout(w http.ResponseWriter, r *http.Request) {
	e.controller.HandleLogout(w, r)
}

// HandleHome reports the signed-in identity.
func (e *Engine) HandleHome(w http.ResponseWriter, r *http.Request) {
	e.controller.HandleHome(w, r)
}

// Mount registers the flow endpoints on r.
func (e *Engine) Mount(r chi.Router) {
	routes := e.config.Routes
	r.Get(routes.Login, e.HandleLogin)
	r.Get(routes.Callback, e.HandleCallback)
	r.Get(routes.Logout, e.HandleLogout)
	r.Post(routes.Logout, e.HandleLogout)
	r.Get(routes.Home, e.HandleHome)
}

// Handler returns a router serving only the flow endpoints.
func (e *Engine) Handler() http.Handler {
	r := chi.NewRouter()
	e.Mount(r)
	return r
}

// Ping checks the session backend when it supports health checks.
func (e *Engine) Ping(ctx context.Context) error {
	pinger, ok := e.sessions.(interface {
		Ping(context.Context) (time.Duration, error)
	})
	if !ok {
		return nil
	}
	_, err := pinger.Ping(ctx)
	return err
}

func (e *Engine) startSweeper(store *session.MemoryStore, every time.Duration) {
	e.sweepStop = make(chan struct{})
	e.sweepDone = make(chan struct{})

	go func() {
		defer close(e.sweepDone)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := store.Sweep(); n > 0 {
					e.log.Debug("expired sessions swept", zap.Int("count", n))
				}
			case <-e.sweepStop:
				return
			}
		}
	}()
}

func clientIP(r *http.Request) string {
	if ip := clientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return oauth.RemoteIP(r)
}

func redact(id string) string {
	if id == "" {
		return ""
	}
	return internal.RedactID(id)
}

// WarmKeys fetches the provider key into the cache so the first callback
// does not pay for it.
func (e *Engine) WarmKeys(ctx context.Context) error {
	_, err := e.keys.PublicKey(ctx)
	return err
}
