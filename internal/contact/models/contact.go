package models

import (
	"strings"
	"time"

	id "contacts/pkg/domain"
	dErrors "contacts/pkg/domain-errors"
)

// Contact is a person's entry in the address book.
//
// Invariants:
//   - Name, Email and Phone are non-empty after trimming
//   - Email is stored lower-cased and is unique across all contacts
//   - ID never changes and is never reused
type Contact struct {
	ID        id.ContactID `json:"id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Phone     string       `json:"phone"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// NormalizeEmail trims and lower-cases an address for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewContact builds a contact from already-normalized fields.
func NewContact(contactID id.ContactID, name, email, phone string, now time.Time) (*Contact, error) {
	c := &Contact{
		ID:        contactID,
		Name:      name,
		Email:     email,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if contactID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contact id is required")
	}
	if err := c.checkFields(); err != nil {
		return nil, err
	}
	return c, nil
}

// ApplyUpdate replaces the supplied fields and bumps UpdatedAt. The contact is
// left untouched when the result would break an invariant.
func (c *Contact) ApplyUpdate(req UpdateContactRequest, now time.Time) error {
	next := *c
	if req.Name != nil {
		next.Name = *req.Name
	}
	if req.Email != nil {
		next.Email = *req.Email
	}
	if req.Phone != nil {
		next.Phone = *req.Phone
	}
	if err := next.checkFields(); err != nil {
		return err
	}
	next.UpdatedAt = now
	*c = next
	return nil
}

func (c *Contact) checkFields() error {
	if missing := missingFields(c.Name, c.Email, c.Phone); missing != "" {
		return dErrors.New(dErrors.CodeInvariantViolation, missing)
	}
	return nil
}

// missingFields names every empty field, e.g. "name and phone are required".
func missingFields(name, email, phone string) string {
	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if phone == "" {
		missing = append(missing, "phone")
	}
	switch len(missing) {
	case 0:
		return ""
	case 1:
		return missing[0] + " is required"
	default:
		return strings.Join(missing[:len(missing)-1], ", ") + " and " + missing[len(missing)-1] + " are required"
	}
}
