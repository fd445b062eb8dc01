package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "contacts/pkg/domain-errors"
)

// ContactID identifies a contact. IDs are UUIDv7 so they sort by creation
// time and are never reused.
type ContactID uuid.UUID

// NilContactID is the zero value; it never identifies a stored contact.
var NilContactID ContactID

// NewContactID mints a fresh time-ordered id.
func NewContactID() (ContactID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return NilContactID, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate contact id")
	}
	return ContactID(u), nil
}

// ParseContactID validates s at a trust boundary. Empty, malformed and nil
// UUIDs are rejected with CodeBadRequest.
func ParseContactID(s string) (ContactID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NilContactID, dErrors.New(dErrors.CodeBadRequest, "contact id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return NilContactID, dErrors.New(dErrors.CodeBadRequest, "invalid contact id")
	}
	if u == uuid.Nil {
		return NilContactID, dErrors.New(dErrors.CodeBadRequest, "invalid contact id")
	}
	return ContactID(u), nil
}

func (id ContactID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether id is the zero UUID.
func (id ContactID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id ContactID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *ContactID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*id = ContactID(u)
	return nil
}
