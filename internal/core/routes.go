package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"fdm/internal/types"
)

// defaultRequestTimeout is the soft timeout applied to request contexts when
// the write timeout is not configured.
const defaultRequestTimeout = 29 * time.Second

// MountRoutes defines the top-level routing hierarchy: the global middleware
// chain, the /api/v1 group (when the API is enabled), /health and /metrics.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	if s.Config.Feature.APIEnabled {
		s.router.Route("/api/v1", s.mountV1)
	}

	s.router.Get("/health", s.HandleHealth)
	if s.HTTPMetrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.HTTPMetrics.Handler())
	}
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError(types.ErrCodeNotFoundRoute, "route not found", nil))
	})
}

// registerGlobalMiddleware applies middleware in strict order.
//
//  1. Recoverer       - outermost so every panic becomes a 500 envelope.
//  2. ContextTimeout  - soft deadline below the server write timeout.
//  3. RequestID       - generates/propagates X-Request-Id.
//  4. SecurityHeaders - present on every response, errors included.
//  5. RequestLogger   - one structured line per request with route and correlation id.
//  6. Metrics         - Prometheus request count and latency by route.
//  7. Gzip            - compresses responses for clients that accept it.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.requestTimeout()))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger))
	if s.HTTPMetrics != nil {
		s.router.Use(s.HTTPMetrics.Middleware)
	}
	s.router.Use(GzipMiddleware)
}

// mountV1 registers all v1 endpoints. Handler packages register themselves
// through V1RouteRegistrars, populated by main, to avoid an import cycle.
func (s *Server) mountV1(r chi.Router) {
	for _, registrar := range s.V1RouteRegistrars {
		registrar(r)
	}
}

func (s *Server) requestTimeout() time.Duration {
	if t := s.Config.Server.WriteTimeout; t > time.Second {
		return t - time.Second
	}
	return defaultRequestTimeout
}

// GzipMiddleware compresses response bodies when the client sends
// Accept-Encoding: gzip. Small bodies are left uncompressed.
func GzipMiddleware(next http.Handler) http.Handler {
	return gzhttp.GzipHandler(next)
}

// ContextTimeoutMiddleware sets a deadline on the request context.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDMiddleware reuses the incoming X-Request-Id header or generates a
// new random ID, stores it in the context and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := types.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID returns 16 random bytes hex encoded.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "fallback-" + hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(b)
}
