package models

import (
	"strings"

	dErrors "contacts/pkg/domain-errors"
)

// CreateContactRequest is the POST body.
type CreateContactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (r *CreateContactRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
}

func (r *CreateContactRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if missing := missingFields(r.Name, r.Email, r.Phone); missing != "" {
		return dErrors.New(dErrors.CodeValidation, missing)
	}
	return nil
}

// UpdateContactRequest is the PUT body. Nil fields are left unchanged.
type UpdateContactRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

func (r *UpdateContactRequest) Normalize() {
	if r == nil {
		return
	}
	trim := func(p *string) {
		if p != nil {
			*p = strings.TrimSpace(*p)
		}
	}
	trim(r.Name)
	trim(r.Phone)
	if r.Email != nil {
		*r.Email = NormalizeEmail(*r.Email)
	}
}

// Validate rejects fields that were supplied but are blank.
func (r *UpdateContactRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	var blank []string
	if r.Name != nil && *r.Name == "" {
		blank = append(blank, "name")
	}
	if r.Email != nil && *r.Email == "" {
		blank = append(blank, "email")
	}
	if r.Phone != nil && *r.Phone == "" {
		blank = append(blank, "phone")
	}
	if len(blank) > 0 {
		return dErrors.New(dErrors.CodeValidation, strings.Join(blank, ", ")+" cannot be empty")
	}
	return nil
}

// Empty reports whether no field was supplied.
func (r *UpdateContactRequest) Empty() bool {
	return r == nil || (r.Name == nil && r.Email == nil && r.Phone == nil)
}
