package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"contacts/internal/contact/models"
	id "contacts/pkg/domain"
	"contacts/pkg/platform/sentinel"
)

// InMemory is a process-local contact store. All methods are safe for
// concurrent use; returned contacts are copies.
type InMemory struct {
	mu       sync.RWMutex
	contacts map[id.ContactID]*models.Contact
	emails   map[string]id.ContactID
}

func NewInMemory() *InMemory {
	return &InMemory{
		contacts: make(map[id.ContactID]*models.Contact),
		emails:   make(map[string]id.ContactID),
	}
}

func (s *InMemory) Create(_ context.Context, c *models.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.emails[c.Email]; taken {
		return sentinel.ErrAlreadyUsed
	}
	if _, exists := s.contacts[c.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	cp := *c
	s.contacts[c.ID] = &cp
	s.emails[c.Email] = c.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, contactID id.ContactID) (*models.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contacts[contactID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// Execute loads the contact, lets fn mutate a copy and stores the result,
// all under the write lock. An error from fn aborts without changes.
func (s *InMemory) Execute(_ context.Context, contactID id.ContactID, fn func(*models.Contact) error) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.contacts[contactID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	next := *current
	if err := fn(&next); err != nil {
		return nil, err
	}
	if next.Email != current.Email {
		if owner, taken := s.emails[next.Email]; taken && owner != contactID {
			return nil, sentinel.ErrAlreadyUsed
		}
		delete(s.emails, current.Email)
		s.emails[next.Email] = contactID
	}
	s.contacts[contactID] = &next
	out := next
	return &out, nil
}

func (s *InMemory) Delete(_ context.Context, contactID id.ContactID) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[contactID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.contacts, contactID)
	delete(s.emails, c.Email)
	return c, nil
}

func (s *InMemory) List(_ context.Context, search string, offset, limit int) ([]*models.Contact, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(search)
	matches := make([]*models.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		if needle == "" || strings.Contains(strings.ToLower(c.Name), needle) {
			matches = append(matches, c)
		}
	}
	slices.SortFunc(matches, func(a, b *models.Contact) int {
		return cmp.Or(
			strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			strings.Compare(a.ID.String(), b.ID.String()),
		)
	})

	total := len(matches)
	if offset < 0 || offset >= total {
		return []*models.Contact{}, total, nil
	}
	end := min(offset+limit, total)
	page := make([]*models.Contact, 0, end-offset)
	for _, c := range matches[offset:end] {
		cp := *c
		page = append(page, &cp)
	}
	return page, total, nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contacts), nil
}

func (s *InMemory) Ping(context.Context) error { return nil }
