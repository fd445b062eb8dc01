// Package requestcontext carries request-scoped values that services read
// without importing net/http: the request id, the client's IP and
// User-Agent, and the time the request arrived.
//
// The HTTP middleware sets them; tests set them directly, e.g.
//
//	ctx = requestcontext.WithTime(ctx, fixed)
package requestcontext

import (
	"context"
	"time"
)

type key int

const (
	requestIDKey key = iota
	clientKey
	timeKey
)

type client struct {
	ip        string
	userAgent string
}

// WithRequestID returns ctx carrying requestID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id, or "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithClientMetadata returns ctx carrying the caller's IP and User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey, client{ip: clientIP, userAgent: userAgent})
}

func ClientIP(ctx context.Context) string {
	c, _ := ctx.Value(clientKey).(client)
	return c.ip
}

func UserAgent(ctx context.Context) string {
	c, _ := ctx.Value(clientKey).(client)
	return c.userAgent
}

// WithTime pins the request time returned by Now.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, timeKey, t)
}

// Now returns the pinned request time, or time.Now() when none is set.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(timeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}
