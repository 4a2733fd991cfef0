// Package core provides the HTTP chassis for the notification data API. It
// builds a chi router, applies the cross-cutting middleware (recovery,
// request IDs, logging, metrics, compression) and serves health and metrics
// endpoints next to the versioned API routes.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fdm/internal/config"
	"fdm/internal/metrics"
)

// RouteRegistrar mounts a group of handlers on the /api/v1 router.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the dependencies of the HTTP API, allowing for easy
// injection during testing.
type Server struct {
	Config            *config.Config
	Logger            *slog.Logger
	Validator         *Validator
	HTTPMetrics       *metrics.HTTPMetrics
	HealthProbes      []HealthProbe
	V1RouteRegistrars []RouteRegistrar

	router *chi.Mux
}

// NewServer initializes the server and its router. Routes are mounted
// separately via MountRoutes so tests can customize registration.
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
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ListenAndServe serves on the configured port until ctx is cancelled, then
// drains in-flight requests within the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         net.JoinHostPort("", s.Config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.Config.Server.ReadTimeout,
		WriteTimeout: s.Config.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("HTTP server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Config.Server.ShutdownTimeout)
	defer cancel()
	s.Logger.Info("server shutdown initiated")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.Logger.Info("server shutdown complete")
	return nil
}
