package core

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fdm/internal/types"
)

// correlationIDParam is the route parameter of the single-message endpoint.
const correlationIDParam = "correlationId"

// Recoverer turns a panic anywhere below it into a logged stack trace and a
// 500 error envelope. It is registered first.
func (s *Server) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}
			requestID := types.GetRequestID(r.Context())
			s.Logger.Error("panic recovered",
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", requestID,
				"panic", fmt.Sprint(rvr),
				"stack", string(debug.Stack()),
			)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(APIErrorResponse{
				Error:     "an unexpected error occurred",
				Code:      string(types.ErrCodeInternalUnexpected),
				RequestID: requestID,
			})
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestLogger hands each request a logger carrying its request_id and,
// once the handler returns, logs one "request completed" line with the
// matched route, the correlation id for single-message reads, status, bytes
// and duration. 5xx log at error level and 4xx at warn.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLogger := logger
			if id := types.GetRequestID(r.Context()); id != "" {
				reqLogger = logger.With("request_id", id)
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(types.WithLogger(r.Context(), reqLogger)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					args = append(args, "route", pattern)
				}
				if id := rctx.URLParam(correlationIDParam); id != "" {
					args = append(args, "correlation_id", id)
				}
			}

			switch {
			case status >= 500:
				reqLogger.ErrorContext(r.Context(), "request completed", args...)
			case status >= 400:
				reqLogger.WarnContext(r.Context(), "request completed", args...)
			default:
				reqLogger.InfoContext(r.Context(), "request completed", args...)
			}
		})
	}
}

// SecurityHeadersMiddleware sets nosniff and frame-deny on every response.
func (s *Server) SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}
