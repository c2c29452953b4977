// Package server wires the auth core's HTTP surface: router, middleware
// chain, health probes, and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Trinity-Studio-01/logos-auth/internal/handler"
	"github.com/Trinity-Studio-01/logos-auth/internal/server/middleware"
	"github.com/Trinity-Studio-01/logos-auth/internal/service"
	"github.com/Trinity-Studio-01/logos-auth/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	SecureCookies   bool

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Two independent brute-force defenses: a per-IP window on the login
	// route plus a general per-IP API limit. The per-account lockout lives
	// in the auth service.
	LoginAttempts     int
	LoginWindow       time.Duration
	APIRequestsPerMin int
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8085,
		ShutdownTimeout:   30 * time.Second,
		CORSOrigins:       []string{"*"},
		SecureCookies:     true,
		AccessTTL:         24 * time.Hour,
		RefreshTTL:        7 * 24 * time.Hour,
		LoginAttempts:     5,
		LoginWindow:       15 * time.Minute,
		APIRequestsPerMin: 100,
	}
}

// Server is the top-level HTTP server for the auth core.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	auth       *service.AuthService
	tokens     *service.TokenService
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes and middleware wired, ready for
// ListenAndServe.
func New(cfg Config, st *store.Store, auth *service.AuthService, tokens *service.TokenService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  st,
		auth:   auth,
		tokens: tokens,
		logger: logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	authH := handler.NewAuthHandler(s.store, s.auth, s.tokens,
		s.cfg.AccessTTL, s.cfg.RefreshTTL, s.cfg.SecureCookies, s.logger)
	adminH := handler.NewAdminHandler(s.store, s.auth, s.logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.cfg.APIRequestsPerMin))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.LoginRateLimit(s.cfg.LoginAttempts, s.cfg.LoginWindow)).
				Post("/login", authH.Login)
			r.Post("/refresh", authH.Refresh)
			r.Post("/logout", authH.Logout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(s.tokens))
				r.Post("/logout-all", authH.LogoutAll)
				r.Get("/me", authH.Me)
				r.Post("/password", authH.ChangePassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.tokens))
			r.Use(middleware.RequireAdmin())

			r.Post("/admins", adminH.CreateAdmin)
			r.Get("/admins", adminH.ListAdmins)
			r.Delete("/admins/{adminID}", adminH.DeactivateAdmin)
			r.Get("/audit-log", adminH.ListAuditLog)
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the backing store is
// reachable, 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// ListenAndServe starts the HTTP server and blocks until SIGINT or SIGTERM,
// then drains in-flight requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying chi router, useful for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
