// Package httpapi composes the public HTTP surface: the contacts API under the
// configured prefix plus health, readiness and metrics endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"contacts/internal/platform/metrics"
	"contacts/internal/platform/middleware"
	"contacts/pkg/platform/httputil"
)

// RouteRegistrar mounts a group of routes, e.g. the contact handler.
type RouteRegistrar interface {
	Register(r chi.Router)
}

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Config holds everything NewRouter wires together. APIMiddleware wraps the
// contacts routes only, e.g. the rate limiter.
type Config struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	APIPrefix      string
	Contacts       RouteRegistrar
	APIMiddleware  []func(http.Handler) http.Handler
	Readiness      []ReadinessCheck
}

const readinessTimeout = 2 * time.Second

func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readyHandler(cfg.Logger, cfg.Readiness))
	r.Handle("/metrics", metrics.Handler())

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	r.Route(prefix+"/contacts", func(cr chi.Router) {
		cr.Use(cfg.APIMiddleware...)
		cfg.Contacts.Register(cr)
	})
	return r
}

func readyHandler(logger *slog.Logger, checks []ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				logger.WarnContext(ctx, "readiness check failed",
					"request_id", middleware.GetRequestID(ctx),
					"check", c.Name,
					"error", err,
				)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"check":  c.Name,
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
