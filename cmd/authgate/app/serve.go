package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MrEthical07/authgate"
	guard "github.com/MrEthical07/authgate/middleware"
	promexport "github.com/MrEthical07/authgate/metrics/export/prometheus"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 15 * time.Second
	serverIdleTimeout  = 60 * time.Second
	warmKeysTimeout    = 5 * time.Second
	healthTimeout      = 2 * time.Second
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		Long: `Start the gateway. It serves the login, callback, logout and home endpoints,
a demo user directory under /users, Prometheus metrics on /metrics and a
health check on /healthz.

Sessions live in Redis when redis.addr is set and in process memory otherwise.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(v)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), s)
		},
	}

	cmd.Flags().String("address", ":8080", "Address to listen on")
	cmd.Flags().String("redis-addr", "", "Redis address for sessions and callback throttling")
	mustBind("server.address", v.BindPFlag("server.address", cmd.Flags().Lookup("address")))
	mustBind("redis.addr", v.BindPFlag("redis.addr", cmd.Flags().Lookup("redis-addr")))
	return cmd
}

func runServe(ctx context.Context, s settings) error {
	logger, err := newLogger(s.LogLevel, s.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	b := authgate.New().
		WithConfig(s.Gateway).
		WithLogger(logger)

	if s.RedisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{s.RedisAddr},
			Password: s.RedisPassword,
			DB:       s.RedisDB,
		})
		defer func() { _ = client.Close() }()
		b = b.WithRedis(client)
		logger.Info("using redis session store", zap.String("addr", s.RedisAddr))
	} else {
		logger.Warn("redis.addr not set; sessions are kept in memory and callback throttling is off")
	}

	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("security posture",
		zap.String("session_backend", report.SessionBackend),
		zap.Bool("cookie_secure", report.CookieSecure),
		zap.String("cookie_samesite", report.CookieSameSite),
		zap.Bool("state_check", report.StateCheckEnabled),
		zap.Bool("callback_throttle", report.CallbackThrottleActive),
		zap.Bool("issuer_pinned", report.IssuerPinned),
		zap.Bool("audit", report.AuditEnabled),
	)
	if !report.CookieSecure {
		logger.Warn("session cookies are sent without the Secure attribute")
	}

	warmCtx, cancel := context.WithTimeout(ctx, warmKeysTimeout)
	if err := engine.WarmKeys(warmCtx); err != nil {
		logger.Warn("provider key not available at startup", zap.Error(err))
	}
	cancel()

	server := &http.Server{
		Addr:         s.Address,
		Handler:      newRouter(engine, newDirectory(defaultUsers()), logger),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", zap.String("address", s.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newRouter(engine *authgate.Engine, dir *directory, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	engine.Mount(r)

	r.Group(func(r chi.Router) {
		r.Use(guard.Guard(engine))
		r.Get("/users", dir.list)
		r.Get("/users/{id}", dir.get)
		r.Delete("/users/{id}", dir.delete)
	})

	r.Handle("/metrics", promexport.Handler(engine))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := engine.Ping(ctx); err != nil {
			logger.Warn("health check failed", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}
