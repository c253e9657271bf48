package authgate

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/oauth"
	"github.com/MrEthical07/authgate/session"
)

const (
	auditEventLoginInitiated  = "login_initiated"
	auditEventCallbackSuccess = "callback_success"
	auditEventCallbackFailure = "callback_failure"
	auditEventLogout          = "logout"
	auditEventAccessDenied    = "access_denied"
)

// AuditErrorCode is the coarse failure reason recorded in AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrUnauthenticated     AuditErrorCode = "unauthenticated"
	auditErrForbidden           AuditErrorCode = "forbidden"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrProviderUnavailable AuditErrorCode = "provider_unavailable"
	auditErrExchangeRejected    AuditErrorCode = "exchange_rejected"
	auditErrMissingAccessToken  AuditErrorCode = "missing_access_token"
	auditErrMissingCode         AuditErrorCode = "missing_code"
	auditErrProviderError       AuditErrorCode = "provider_error"
	auditErrStateMismatch       AuditErrorCode = "state_mismatch"
	auditErrInvalidToken        AuditErrorCode = "invalid_token"
	auditErrInvalidSession      AuditErrorCode = "invalid_session"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(r *http.Request, event AuditEvent, err error) {
	if e == nil || e.audit == nil {
		return
	}

	ctx := context.Background()
	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC()
	if r != nil {
		ctx = r.Context()
		event.IP = clientIP(r)
		event.Method = r.Method
		event.Path = r.URL.Path
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitAccessDenied(r *http.Request, sess *session.Session, d Decision, err error) {
	event := AuditEvent{
		EventType: auditEventAccessDenied,
		Status:    d.StatusOnDeny,
	}
	if sess != nil {
		event.Username = sess.Username
		event.Role = sess.Role.String()
		event.SessionID = redact(sess.ID)
	}
	e.emitAudit(r, event, err)
}

// flowHooks turns controller outcomes into metrics and audit events.
func (e *Engine) flowHooks() oauth.Hooks {
	return oauth.Hooks{
		OnInitiate: func(r *http.Request) {
			e.metricInc(MetricLoginInitiated)
			e.emitAudit(r, AuditEvent{EventType: auditEventLoginInitiated, Success: true}, nil)
		},
		OnCallbackSuccess: func(r *http.Request, sess *session.Session) {
			e.metricInc(MetricCallbackSuccess)
			e.emitAudit(r, AuditEvent{
				EventType: auditEventCallbackSuccess,
				Username:  sess.Username,
				Role:      sess.Role.String(),
				SessionID: redact(sess.ID),
				Status:    http.StatusFound,
				Success:   true,
			}, nil)
		},
		OnCallbackFailure: func(r *http.Request, err error) {
			status := StatusFor(err)
			switch status {
			case http.StatusTooManyRequests:
				e.metricInc(MetricCallbackRateLimited)
			case http.StatusUnauthorized:
				e.metricInc(MetricCallbackFailure)
			default:
				e.metricInc(MetricCallbackUpstreamFailure)
			}
			if errors.Is(err, session.ErrStoreUnavailable) {
				e.metricInc(MetricStoreFailure)
			}
			e.emitAudit(r, AuditEvent{EventType: auditEventCallbackFailure, Status: status}, err)
		},
		OnLogout: func(r *http.Request, sessionID string, err error) {
			e.metricInc(MetricLogout)
			if err != nil {
				e.metricInc(MetricStoreFailure)
			}
			e.emitAudit(r, AuditEvent{
				EventType: auditEventLogout,
				SessionID: redact(sessionID),
				Status:    http.StatusFound,
				Success:   err == nil,
			}, err)
		},
	}
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInsufficientPrivilege):
		return auditErrForbidden
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, oauth.ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, oauth.ErrNetworkFailure),
		errors.Is(err, ErrKeyFetchFailed),
		errors.Is(err, jwt.ErrKeyFetchFailed):
		return auditErrProviderUnavailable
	case errors.Is(err, oauth.ErrExchangeRejected):
		return auditErrExchangeRejected
	case errors.Is(err, oauth.ErrMissingAccessToken):
		return auditErrMissingAccessToken
	case errors.Is(err, oauth.ErrMissingCode):
		return auditErrMissingCode
	case errors.Is(err, oauth.ErrProviderError):
		return auditErrProviderError
	case errors.Is(err, oauth.ErrStateMismatch):
		return auditErrStateMismatch
	case jwt.KindOf(err) != 0:
		return auditErrInvalidToken
	case errors.Is(err, session.ErrInvalidSession):
		return auditErrInvalidSession
	case errors.Is(err, session.ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
