// Package idempotency replays the stored outcome of a mutating request when a
// client repeats it with the same Idempotency-Key.
package idempotency

import (
	"context"
	"errors"
	"time"
)

// State of a recorded key.
type State string

const (
	StatePending State = "pending"
	StateDone    State = "done"
)

// ErrNotReserved is returned by Complete when the key was not held.
var ErrNotReserved = errors.New("idempotency key not reserved")

// Response is the part of an HTTP response that is replayed.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Record is what a Store keeps per key.
type Record struct {
	State       State     `json:"state"`
	Fingerprint string    `json:"fingerprint"`
	Response    *Response `json:"response,omitempty"`
}

// Store records idempotency keys. Reserve must be atomic: exactly one caller
// wins a fresh key.
type Store interface {
	// Reserve claims key for ttl. When the key is already held, the existing
	// record is returned with reserved=false.
	Reserve(ctx context.Context, key, fingerprint string, ttl time.Duration) (existing *Record, reserved bool, err error)
	// Complete stores the final response for a reserved key.
	Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error
	// Release drops a reservation so the request can be retried.
	Release(ctx context.Context, key string) error
}
