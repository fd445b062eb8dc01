package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/mssola/useragent"
)

// Logger logs one line per request after it completes.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			ctx := r.Context()
			attrs := []any{
				"request_id", GetRequestID(ctx),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.Status(),
				"bytes", rec.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			attrs = append(attrs, clientAttrs(r.UserAgent())...)

			switch {
			case rec.Status() >= http.StatusInternalServerError:
				logger.ErrorContext(ctx, "request completed", attrs...)
			case rec.Status() >= http.StatusBadRequest:
				logger.WarnContext(ctx, "request completed", attrs...)
			default:
				logger.InfoContext(ctx, "request completed", attrs...)
			}
		})
	}
}

func clientAttrs(raw string) []any {
	if raw == "" {
		return nil
	}
	ua := useragent.New(raw)
	browser, version := ua.Browser()
	return []any{
		"ua_browser", browser,
		"ua_version", version,
		"ua_os", ua.OS(),
		"ua_bot", ua.Bot(),
	}
}
