// Package api assembles the chi router for the HTTP transport mode.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vmbridge/vagrantmcp/internal/api/ctxkeys"
	apmiddleware "github.com/vmbridge/vagrantmcp/internal/api/middleware"
)

// NewRouter mounts the MCP endpoint behind bearer auth when a JWT secret is
// configured, plus an unauthenticated health probe. mcpHandler carries the
// streamable MCP session protocol; this layer only guards and routes it.
func NewRouter(mcpHandler http.Handler, jwtSecret []byte, log *slog.Logger) *chi.Mux {
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	// Health check, unauthenticated, used by probes and supervisors.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	r.Group(func(r chi.Router) {
		if len(jwtSecret) > 0 {
			r.Use(apmiddleware.NewAuthMiddleware(jwtSecret))
		}
		r.Use(requestLogger(log))
		r.Handle("/mcp", mcpHandler)
		r.Handle("/mcp/*", mcpHandler)
	})

	return r
}

// requestLogger logs each MCP request with the authenticated client id.
// Runs after auth so the context already carries the identity.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Info("mcp request",
				"method", r.Method,
				"path", r.URL.Path,
				"client", ctxkeys.ClientIDFrom(r.Context()),
				"duration", time.Since(start))
		})
	}
}
