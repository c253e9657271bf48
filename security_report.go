package authgate

import (
	"time"

	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/session"
)

// SecurityReport is a read-only snapshot of the gateway's security posture,
// returned by [Engine.SecurityReport].
type SecurityReport struct {
	SigningAlgorithm       string
	SessionBackend         string
	SessionTTL             time.Duration
	CookieSecure           bool
	CookieSameSite         string
	StateCheckEnabled      bool
	CallbackThrottleActive bool
	IssuerPinned           bool
	AudiencePinned         bool
	TokenLeeway            time.Duration
	KeyMaxStale            time.Duration
	AuditEnabled           bool
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	backend := "custom"
	switch e.sessions.(type) {
	case *session.RedisStore:
		backend = "redis"
	case *session.MemoryStore:
		backend = "memory"
	}

	return SecurityReport{
		SigningAlgorithm:       jwt.Algorithm,
		SessionBackend:         backend,
		SessionTTL:             e.config.Session.TTL,
		CookieSecure:           e.config.Session.CookieSecure,
		CookieSameSite:         e.config.Session.CookieSameSite,
		StateCheckEnabled:      e.config.Provider.StateCheck,
		CallbackThrottleActive: e.limiter != nil && e.config.Callback.MaxFailures > 0,
		IssuerPinned:           e.config.Token.Issuer != "",
		AudiencePinned:         e.config.Token.Audience != "",
		TokenLeeway:            e.config.Token.Leeway,
		KeyMaxStale:            e.config.Keys.MaxStale,
		AuditEnabled:           e.config.Audit.Enabled,
	}
}
