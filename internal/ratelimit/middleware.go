package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"contacts/internal/platform/middleware"
	dErrors "contacts/pkg/domain-errors"
	"contacts/pkg/platform/httputil"
	"contacts/pkg/requestcontext"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

// Middleware rejects requests from a client IP once it exceeds limit
// requests per window. Store failures let the request through.
type Middleware struct {
	store   Store
	logger  *slog.Logger
	limit   int
	window  time.Duration
	metrics *Metrics
}

type Option func(*Middleware)

func WithMetrics(m *Metrics) Option {
	return func(mw *Middleware) { mw.metrics = m }
}

func New(store Store, logger *slog.Logger, limit int, window time.Duration, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		logger: logger,
		limit:  limit,
		window: window,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)

		result, err := m.store.Allow(ctx, ip, m.limit, m.window)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to check rate limit",
				"request_id", middleware.GetRequestID(ctx),
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set(HeaderLimit, strconv.Itoa(result.Limit))
		h.Set(HeaderRemaining, strconv.Itoa(result.Remaining))
		h.Set(HeaderReset, strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			m.metrics.IncDenied()
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"request_id", middleware.GetRequestID(ctx),
				"client_ip", ip,
			)
			h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(result.RetryAfter)))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "Too many requests, try again later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfterSeconds rounds up to whole seconds, at least one.
func retryAfterSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}
