// Package storetest is the behavioural contract every contact store must meet.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/suite"

	"contacts/internal/contact/models"
	id "contacts/pkg/domain"
	"contacts/pkg/platform/sentinel"
)

// Store mirrors the service's view of a contact store.
type Store interface {
	Create(ctx context.Context, c *models.Contact) error
	FindByID(ctx context.Context, contactID id.ContactID) (*models.Contact, error)
	Execute(ctx context.Context, contactID id.ContactID, fn func(*models.Contact) error) (*models.Contact, error)
	Delete(ctx context.Context, contactID id.ContactID) (*models.Contact, error)
	List(ctx context.Context, search string, offset, limit int) ([]*models.Contact, int, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// Suite runs the contract against a fresh store per test. Embed it and set
// NewStore, or construct it with New.
type Suite struct {
	suite.Suite
	NewStore func() Store

	store Store
	ctx   context.Context
	clock time.Time
}

func New(newStore func() Store) *Suite {
	return &Suite{NewStore: newStore}
}

func (s *Suite) SetupTest() {
	s.store = s.NewStore()
	s.ctx = context.Background()
	s.clock = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) newContact(name, email string) *models.Contact {
	cid, err := id.NewContactID()
	s.Require().NoError(err)
	s.clock = s.clock.Add(time.Second)
	c, err := models.NewContact(cid, name, email, "555-0100", s.clock)
	s.Require().NoError(err)
	return c
}

func (s *Suite) mustCreate(name, email string) *models.Contact {
	c := s.newContact(name, email)
	s.Require().NoError(s.store.Create(s.ctx, c))
	return c
}

func (s *Suite) TestCreateAndFind() {
	s.Run("round-trips every field", func() {
		c := s.mustCreate("Ann Smith", "ann@example.com")

		found, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(c, found)
	})

	s.Run("unknown id is ErrNotFound", func() {
		cid, _ := id.NewContactID()
		_, err := s.store.FindByID(s.ctx, cid)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned contact is not aliased", func() {
		c := s.mustCreate("Alias", "alias@example.com")
		found, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		found.Name = "changed"

		again, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal("Alias", again.Name)
	})
}

func (s *Suite) TestEmailUniqueness() {
	s.mustCreate("First", "dup@example.com")
	before, err := s.store.Count(s.ctx)
	s.Require().NoError(err)

	err = s.store.Create(s.ctx, s.newContact("Second", "dup@example.com"))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	after, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(before, after)
}

func (s *Suite) TestExecute() {
	s.Run("persists mutation", func() {
		c := s.mustCreate("Bob", "bob@example.com")
		later := c.UpdatedAt.Add(time.Minute)

		updated, err := s.store.Execute(s.ctx, c.ID, func(cur *models.Contact) error {
			cur.Phone = "555-0199"
			cur.UpdatedAt = later
			return nil
		})
		s.Require().NoError(err)
		s.Equal("555-0199", updated.Phone)

		found, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal("555-0199", found.Phone)
		s.Equal(c.Email, found.Email)
		s.Equal(c.CreatedAt, found.CreatedAt)
		s.Equal(later, found.UpdatedAt)
	})

	s.Run("callback error aborts", func() {
		c := s.mustCreate("Carl", "carl@example.com")
		boom := errors.New("boom")

		_, err := s.store.Execute(s.ctx, c.ID, func(cur *models.Contact) error {
			cur.Name = "ignored"
			return boom
		})
		s.ErrorIs(err, boom)

		found, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal("Carl", found.Name)
	})

	s.Run("unknown id is ErrNotFound and callback not run", func() {
		cid, _ := id.NewContactID()
		called := false
		_, err := s.store.Execute(s.ctx, cid, func(*models.Contact) error {
			called = true
			return nil
		})
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.False(called)
	})

	s.Run("taking another contact's email is ErrAlreadyUsed", func() {
		s.mustCreate("Dana", "dana@example.com")
		eve := s.mustCreate("Eve", "eve@example.com")

		_, err := s.store.Execute(s.ctx, eve.ID, func(cur *models.Contact) error {
			cur.Email = "dana@example.com"
			return nil
		})
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)

		found, err := s.store.FindByID(s.ctx, eve.ID)
		s.Require().NoError(err)
		s.Equal("eve@example.com", found.Email)
	})

	s.Run("keeping own email is allowed", func() {
		c := s.mustCreate("Fay", "fay@example.com")
		_, err := s.store.Execute(s.ctx, c.ID, func(cur *models.Contact) error {
			cur.Email = "fay@example.com"
			cur.Name = "Fay B"
			return nil
		})
		s.NoError(err)
	})

	s.Run("released email can be reused", func() {
		c := s.mustCreate("Gil", "gil@example.com")
		_, err := s.store.Execute(s.ctx, c.ID, func(cur *models.Contact) error {
			cur.Email = "gil2@example.com"
			return nil
		})
		s.Require().NoError(err)
		s.NoError(s.store.Create(s.ctx, s.newContact("Other Gil", "gil@example.com")))
	})
}

func (s *Suite) TestDelete() {
	c := s.mustCreate("Hank", "hank@example.com")

	deleted, err := s.store.Delete(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c, deleted)

	_, err = s.store.FindByID(s.ctx, c.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Delete(s.ctx, c.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.NoError(s.store.Create(s.ctx, s.newContact("Hank again", "hank@example.com")), "email is released")
}

func (s *Suite) TestListPagination() {
	for i := range 12 {
		s.mustCreate(fmt.Sprintf("Person %02d", i), fmt.Sprintf("p%02d@example.com", i))
	}

	page, total, err := s.store.List(s.ctx, "", 0, 5)
	s.Require().NoError(err)
	s.Equal(12, total)
	s.Len(page, 5)
	s.Equal("Person 00", page[0].Name)

	last, total, err := s.store.List(s.ctx, "", 10, 5)
	s.Require().NoError(err)
	s.Equal(12, total)
	s.Len(last, 2)
	s.Equal("Person 11", last[1].Name)

	beyond, total, err := s.store.List(s.ctx, "", 20, 5)
	s.Require().NoError(err)
	s.Equal(12, total)
	s.NotNil(beyond)
	s.Empty(beyond)
}

func (s *Suite) TestListOrdering() {
	s.mustCreate("carol", "carol@example.com")
	s.mustCreate("Bob", "bob@example.com")
	s.mustCreate("alice", "alice@example.com")

	first, total, err := s.store.List(s.ctx, "", 0, 2)
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Equal([]string{"alice", "Bob"}, names(first))

	second, _, err := s.store.List(s.ctx, "", 2, 2)
	s.Require().NoError(err)
	s.Equal([]string{"carol"}, names(second))
}

func (s *Suite) TestListOrderingTieBreaksOnID() {
	a := s.mustCreate("Same", "same1@example.com")
	b := s.mustCreate("same", "same2@example.com")

	page, _, err := s.store.List(s.ctx, "", 0, 10)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(a.ID, page[0].ID, "UUIDv7 ids sort by creation")
	s.Equal(b.ID, page[1].ID)
}

func (s *Suite) TestListSearch() {
	s.mustCreate("Anna", "anna@example.com")
	s.mustCreate("Hannah", "hannah@example.com")
	s.mustCreate("Bob", "bob@example.com")
	s.mustCreate("100% Real", "real@example.com")
	s.mustCreate("snake_case", "snake@example.com")

	page, total, err := s.store.List(s.ctx, "ann", 0, 10)
	s.Require().NoError(err)
	s.Equal(2, total)
	s.ElementsMatch([]string{"Anna", "Hannah"}, names(page))

	page, total, err = s.store.List(s.ctx, "ANN", 0, 10)
	s.Require().NoError(err)
	s.Equal(2, total, "search is case-insensitive")
	s.Len(page, 2)

	page, _, err = s.store.List(s.ctx, "%", 0, 10)
	s.Require().NoError(err)
	s.Equal([]string{"100% Real"}, names(page), "percent matches literally")

	page, _, err = s.store.List(s.ctx, "_", 0, 10)
	s.Require().NoError(err)
	s.Equal([]string{"snake_case"}, names(page), "underscore matches literally")

	page, total, err = s.store.List(s.ctx, "zzz", 0, 10)
	s.Require().NoError(err)
	s.Equal(0, total)
	s.Empty(page)
}

func (s *Suite) TestListSearchFoldsUnicode() {
	s.mustCreate("Émile", "emile@example.com")
	s.mustCreate("Zoë", "zoe@example.com")
	s.mustCreate("Ölaf", "olaf@example.com")
	s.mustCreate("Oscar", "oscar@example.com")

	for _, needle := range []string{"émile", "ÉMILE", "Émile", "ölaf", "ÖLAF", "zoë", "ZOË"} {
		page, total, err := s.store.List(s.ctx, needle, 0, 10)
		s.Require().NoError(err, needle)
		s.Equal(1, total, needle)
		s.Len(page, 1, needle)
	}

	page, _, err := s.store.List(s.ctx, "o", 0, 10)
	s.Require().NoError(err)
	s.Equal([]string{"Oscar", "Zoë"}, names(page), "ö is not o")
}

func (s *Suite) TestListOrderingFoldsUnicode() {
	s.mustCreate("zed", "zed@example.com")
	s.mustCreate("Émile", "emile@example.com")
	s.mustCreate("ézra", "ezra@example.com")
	s.mustCreate("Adam", "adam@example.com")

	page, _, err := s.store.List(s.ctx, "", 0, 10)
	s.Require().NoError(err)
	s.Equal([]string{"Adam", "zed", "Émile", "ézra"}, names(page), "folded names sort by code point")
}

func (s *Suite) TestListFarOffsetIsEmpty() {
	s.mustCreate("Ivy", "ivy@example.com")

	page, total, err := s.store.List(s.ctx, "", math.MaxInt, 10)
	s.Require().NoError(err)
	s.Equal(1, total)
	s.NotNil(page)
	s.Empty(page)
}

func (s *Suite) TestConcurrentCreateSameEmail() {
	const goroutines = 20
	var wg sync.WaitGroup
	var ok, conflicts atomic.Int32

	contacts := make([]*models.Contact, goroutines)
	for i := range contacts {
		contacts[i] = s.newContact(fmt.Sprintf("Racer %d", i), "race@example.com")
	}
	for _, c := range contacts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(s.ctx, c)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), ok.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *Suite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}

func names(cs []*models.Contact) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}
