// Package core provides the HTTP chassis for the billing service: a chi
// router with the cross-cutting middleware (recovery, request ids, logging,
// CORS, metrics, rate limiting) applied before requests reach the domain
// handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"aigrowth/internal/config"
)

// MetricsCollector records API telemetry.
type MetricsCollector interface {
	RecordRequest(method, route, status string, duration time.Duration)
}

// RouteRegistrar mounts a group of routes on a router.
type RouteRegistrar func(r chi.Router)

// Server carries the dependencies shared by every request.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Validator    *Validator
	Metrics      MetricsCollector
	HealthProbes []HealthProbe

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler

	// PublicRouteRegistrars mount at the root (provider webhooks).
	PublicRouteRegistrars []RouteRegistrar
	// V1RouteRegistrars mount under /v1.
	V1RouteRegistrars []RouteRegistrar
	// LimitedRouteRegistrars mount under /v1 behind the payment rate limiter.
	LimitedRouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer validates its inputs and prepares an empty router. Callers add
// registrars and then call MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// HTTPServer builds the listener-facing server with timeouts derived from
// the configured request timeout.
func (s *Server) HTTPServer() *http.Server {
	timeout := s.requestTimeout()
	return &http.Server{
		Addr:              ":" + s.Config.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		WriteTimeout:      timeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Shutdown drains hs within ctx.
func (s *Server) Shutdown(ctx context.Context, hs *http.Server) error {
	s.Logger.Info("server shutdown initiated")
	if err := hs.Shutdown(ctx); err != nil {
		s.Logger.Error("http shutdown failed", "error", err)
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.Logger.Info("server shutdown complete")
	return nil
}
