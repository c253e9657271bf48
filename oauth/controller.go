package oauth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/MrEthical07/authgate/identity"
	"github.com/MrEthical07/authgate/internal"
	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/session"
)

// TokenVerifier turns a provider access token into verified claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*identity.Claims, error)
}

// Hooks observe flow outcomes. Nil fields are skipped.
type Hooks struct {
	OnInitiate        func(r *http.Request)
	OnCallbackSuccess func(r *http.Request, sess *session.Session)
	OnCallbackFailure func(r *http.Request, err error)
	OnLogout          func(r *http.Request, sessionID string, err error)
}

// Deps captures controller dependencies.
type Deps struct {
	Sessions session.Store
	Cookies  *session.Cookies
	// StateCookies signs the state cookie. Required with StateCheck.
	StateCookies *session.Cookies
	Verifier     TokenVerifier
	HTTPClient   *http.Client
	// Limiter throttles failed callbacks per client. Optional.
	Limiter  *rate.Limiter
	ClientIP func(*http.Request) string
	Logger   *zap.Logger
	Hooks    Hooks
}

// Controller serves the login, callback, logout and home endpoints.
type Controller struct {
	cfg    Config
	deps   Deps
	oauth2 *oauth2.Config
	client *http.Client
	log    *zap.Logger
}

type homeResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// New validates cfg and returns a ready controller.
func New(cfg Config, deps Deps) (*Controller, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Sessions == nil {
		return nil, errors.New("oauth: session store required")
	}
	if deps.Cookies == nil {
		return nil, errors.New("oauth: session cookies required")
	}
	if deps.Verifier == nil {
		return nil, errors.New("oauth: token verifier required")
	}
	if cfg.StateCheck && deps.StateCookies == nil {
		return nil, errors.New("oauth: state cookies required when state check is enabled")
	}
	if deps.ClientIP == nil {
		deps.ClientIP = RemoteIP
	}

	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Controller{
		cfg:    cfg,
		deps:   deps,
		oauth2: newOAuth2Config(cfg),
		client: client,
		log:    log.Named("oauth"),
	}, nil
}

// Config returns the effective configuration, defaults applied.
func (c *Controller) Config() Config {
	return c.cfg
}

// HandleInitiate redirects the browser to the provider login.
func (c *Controller) HandleInitiate(w http.ResponseWriter, r *http.Request) {
	state := ""
	if c.cfg.StateCheck {
		var err error
		state, err = internal.NewState()
		if err != nil {
			c.log.Error("state generation failed", zap.Error(err))
			writeStatus(w, http.StatusInternalServerError)
			return
		}
		c.deps.StateCookies.Set(w, state, c.cfg.StateTTL)
	}

	if c.deps.Hooks.OnInitiate != nil {
		c.deps.Hooks.OnInitiate(r)
	}
	http.Redirect(w, r, c.AuthorizeURL(state), http.StatusFound)
}

// HandleCallback completes the code exchange and starts a session.
func (c *Controller) HandleCallback(w http.ResponseWriter, r *http.Request) {
	sess, err := c.Complete(w, r)
	if err != nil {
		status := StatusFor(err)
		c.log.Warn("callback failed",
			zap.Int("status", status),
			zap.Error(err),
		)
		if c.deps.Hooks.OnCallbackFailure != nil {
			c.deps.Hooks.OnCallbackFailure(r, err)
		}
		writeStatus(w, status)
		return
	}

	c.log.Info("callback succeeded",
		zap.String("username", sess.Username),
		zap.String("role", sess.Role.String()),
		zap.String("session", internal.RedactID(sess.ID)),
	)
	if c.deps.Hooks.OnCallbackSuccess != nil {
		c.deps.Hooks.OnCallbackSuccess(r, sess)
	}
	http.Redirect(w, r, c.cfg.AfterLoginPath, http.StatusFound)
}

// Complete runs the callback steps and sets the session cookie on success.
// No session exists when it returns an error.
func (c *Controller) Complete(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	ctx := r.Context()
	client := internal.HashKeyPart(c.deps.ClientIP(r))

	if c.deps.Limiter != nil {
		if err := c.deps.Limiter.CheckCallback(ctx, client); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return nil, err
			}
			c.log.Warn("callback limiter unavailable", zap.Error(err))
		}
	}

	sess, err := c.complete(w, r)
	if err != nil {
		if c.deps.Limiter != nil && countsAgainstClient(err) {
			if lerr := c.deps.Limiter.RecordCallbackFailure(ctx, client); lerr != nil && !errors.Is(lerr, rate.ErrRateLimited) {
				c.log.Warn("callback limiter unavailable", zap.Error(lerr))
			}
		}
		return nil, err
	}

	if c.deps.Limiter != nil {
		if err := c.deps.Limiter.ResetCallback(ctx, client); err != nil {
			c.log.Warn("callback limiter reset failed", zap.Error(err))
		}
	}
	return sess, nil
}

func (c *Controller) complete(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	ctx := r.Context()
	q := r.URL.Query()

	if q.Get("error") != "" {
		return nil, ErrProviderError
	}

	if c.cfg.StateCheck {
		expected, ok := c.deps.StateCookies.Read(r)
		c.deps.StateCookies.Clear(w)
		got := q.Get("state")
		if !ok || got == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
			return nil, ErrStateMismatch
		}
	}

	code := q.Get("code")
	if code == "" {
		return nil, ErrMissingCode
	}

	accessToken, err := c.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	claims, err := c.deps.Verifier.Verify(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	// One session per client: drop whatever the incoming cookie referenced.
	if previous, ok := c.deps.Cookies.Read(r); ok {
		if err := c.deps.Sessions.Destroy(ctx, previous); err != nil {
			c.log.Warn("previous session destroy failed",
				zap.String("session", internal.RedactID(previous)),
				zap.Error(err),
			)
		}
	}

	sess, err := c.deps.Sessions.Create(ctx, accessToken, *claims)
	if err != nil {
		return nil, err
	}

	c.deps.Cookies.Set(w, sess.ID, sess.TTL(sess.CreatedAt))
	return sess, nil
}

// HandleLogout destroys the session, clears the cookie and redirects to login.
// Store errors are logged and never block the redirect.
func (c *Controller) HandleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := c.deps.Cookies.Read(r)
	var err error
	if ok {
		err = c.deps.Sessions.Destroy(r.Context(), id)
		if err != nil {
			c.log.Error("logout destroy failed",
				zap.String("session", internal.RedactID(id)),
				zap.Error(err),
			)
		}
	}
	c.deps.Cookies.Clear(w)

	if c.deps.Hooks.OnLogout != nil {
		c.deps.Hooks.OnLogout(r, id, err)
	}
	http.Redirect(w, r, c.cfg.LoginPath, http.StatusFound)
}

// HandleHome shows the signed-in identity or sends the browser to login.
func (c *Controller) HandleHome(w http.ResponseWriter, r *http.Request) {
	sess, err := session.FromRequest(r, c.deps.Sessions, c.deps.Cookies)
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(homeResponse{Username: sess.Username, Role: sess.Role.String()})
	case session.IsAbsent(err):
		http.Redirect(w, r, c.cfg.LoginPath, http.StatusFound)
	default:
		c.log.Error("session lookup failed", zap.Error(err))
		writeStatus(w, http.StatusInternalServerError)
	}
}

// RemoteIP returns the host part of r.RemoteAddr.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeStatus(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}
