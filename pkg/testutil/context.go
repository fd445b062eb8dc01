package testutil

import "net/http"

// WithIdempotencyKey sets the Idempotency-Key header.
func WithIdempotencyKey(req *http.Request, key string) *http.Request {
	req.Header.Set("Idempotency-Key", key)
	return req
}
