package audit

import (
	"context"
	"time"
)

// Action names a contact mutation.
type Action string

const (
	ActionContactCreated Action = "contact_created"
	ActionContactUpdated Action = "contact_updated"
	ActionContactDeleted Action = "contact_deleted"
)

// Event records one mutation. It carries the contact id only; names, emails
// and phone numbers never enter the audit trail.
type Event struct {
	Action    Action    `json:"action"`
	ContactID string    `json:"contact_id"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink persists or forwards events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}
