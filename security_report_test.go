package authgate

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestSecurityReportReflectsPosture(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		g := newGateway(t, nil)
		report := g.engine.SecurityReport()

		assert.Equal(t, "RS256", report.SigningAlgorithm)
		assert.Equal(t, "memory", report.SessionBackend)
		assert.False(t, report.CookieSecure)
		assert.Equal(t, "lax", report.CookieSameSite)
		assert.False(t, report.StateCheckEnabled)
		assert.False(t, report.CallbackThrottleActive)
		assert.True(t, report.IssuerPinned)
		assert.True(t, report.AudiencePinned)
		assert.False(t, report.AuditEnabled)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		g := newGateway(t, func(cfg *Config, b *Builder) {
			cfg.Provider.StateCheck = true
			cfg.Audit.Enabled = true
			b.WithRedis(client)
		})
		report := g.engine.SecurityReport()

		assert.Equal(t, "redis", report.SessionBackend)
		assert.True(t, report.StateCheckEnabled)
		assert.True(t, report.CallbackThrottleActive)
		assert.True(t, report.AuditEnabled)
	})

	t.Run("nil engine", func(t *testing.T) {
		var e *Engine
		assert.Equal(t, SecurityReport{}, e.SecurityReport())
	})
}
