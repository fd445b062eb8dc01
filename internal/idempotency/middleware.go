package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"time"

	"contacts/internal/platform/middleware"
	dErrors "contacts/pkg/domain-errors"
	"contacts/pkg/platform/httputil"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"

	maxKeyLength = 255
	defaultTTL   = 24 * time.Hour
)

// Middleware records the outcome of POST, PUT and DELETE requests carrying an
// Idempotency-Key and replays it for repeats of the same (method, path, key).
type Middleware struct {
	store  Store
	logger *slog.Logger
	ttl    time.Duration
}

type Option func(*Middleware)

func WithTTL(ttl time.Duration) Option {
	return func(m *Middleware) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		logger: logger,
		ttl:    defaultTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderKey)
		if key == "" || !mutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		requestID := middleware.GetRequestID(ctx)

		if len(key) > maxKeyLength {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Idempotency-Key is too long"))
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, httputil.MaxBodyBytes))
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		scope := r.Method + " " + r.URL.Path + " " + key
		fingerprint := fingerprintOf(body)

		existing, reserved, err := m.store.Reserve(ctx, scope, fingerprint, m.ttl)
		if err != nil {
			// Fail open: the request runs without replay protection.
			m.logger.ErrorContext(ctx, "failed to reserve idempotency key",
				"request_id", requestID,
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}
		if !reserved {
			m.replay(ctx, w, existing, fingerprint)
			return
		}

		rec := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		completed := false
		defer func() {
			if !completed {
				m.release(context.WithoutCancel(ctx), scope, requestID)
			}
		}()

		next.ServeHTTP(rec, r)

		if rec.status >= http.StatusInternalServerError {
			return
		}
		err = m.store.Complete(context.WithoutCancel(ctx), scope, Record{
			State:       StateDone,
			Fingerprint: fingerprint,
			Response: &Response{
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			},
		}, m.ttl)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to record idempotent response",
				"request_id", requestID,
				"error", err,
			)
			return
		}
		completed = true
	})
}

func (m *Middleware) replay(ctx context.Context, w http.ResponseWriter, rec *Record, fingerprint string) {
	if rec.Fingerprint != fingerprint {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Idempotency-Key was used with a different request body"))
		return
	}
	if rec.State != StateDone || rec.Response == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeIdempotencyInProgress, "a request with this Idempotency-Key is in progress"))
		return
	}

	m.logger.InfoContext(ctx, "replaying idempotent response",
		"request_id", middleware.GetRequestID(ctx),
		"status", rec.Response.Status,
	)
	if rec.Response.ContentType != "" {
		w.Header().Set("Content-Type", rec.Response.ContentType)
	}
	w.Header().Set(HeaderReplayed, "true")
	w.WriteHeader(rec.Response.Status)
	_, _ = w.Write(rec.Response.Body)
}

func (m *Middleware) release(ctx context.Context, scope, requestID string) {
	if err := m.store.Release(ctx, scope); err != nil {
		m.logger.WarnContext(ctx, "failed to release idempotency key",
			"request_id", requestID,
			"error", err,
		)
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// captureWriter tees the response so it can be stored.
type captureWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (c *captureWriter) WriteHeader(status int) {
	if c.wroteHeader {
		return
	}
	c.status = status
	c.wroteHeader = true
	c.ResponseWriter.WriteHeader(status)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *captureWriter) Unwrap() http.ResponseWriter { return c.ResponseWriter }
