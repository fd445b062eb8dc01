package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "contacts/pkg/domain"
	dErrors "contacts/pkg/domain-errors"
)

func ptr(s string) *string { return &s }

func newID(t *testing.T) id.ContactID {
	t.Helper()
	cid, err := id.NewContactID()
	require.NoError(t, err)
	return cid
}

func TestNewContactInvariants(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("valid", func(t *testing.T) {
		c, err := NewContact(newID(t), "Ann", "ann@x.io", "555", now)
		require.NoError(t, err)
		assert.Equal(t, now, c.CreatedAt)
		assert.Equal(t, now, c.UpdatedAt)
	})

	t.Run("nil id", func(t *testing.T) {
		_, err := NewContact(id.NilContactID, "Ann", "ann@x.io", "555", now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("missing fields are named", func(t *testing.T) {
		_, err := NewContact(newID(t), "", "ann@x.io", "", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		assert.Contains(t, err.Error(), "name and phone are required")
	})
}

func TestApplyUpdate(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)

	t.Run("replaces only supplied fields", func(t *testing.T) {
		c, err := NewContact(newID(t), "Ann", "ann@x.io", "555", created)
		require.NoError(t, err)

		require.NoError(t, c.ApplyUpdate(UpdateContactRequest{Phone: ptr("777")}, later))
		assert.Equal(t, "Ann", c.Name)
		assert.Equal(t, "ann@x.io", c.Email)
		assert.Equal(t, "777", c.Phone)
		assert.Equal(t, created, c.CreatedAt)
		assert.Equal(t, later, c.UpdatedAt)
	})

	t.Run("rejected update leaves contact unchanged", func(t *testing.T) {
		c, err := NewContact(newID(t), "Ann", "ann@x.io", "555", created)
		require.NoError(t, err)
		before := *c

		err = c.ApplyUpdate(UpdateContactRequest{Name: ptr("")}, later)
		require.Error(t, err)
		assert.Equal(t, before, *c)
	})
}

func TestCreateContactRequest(t *testing.T) {
	req := &CreateContactRequest{Name: "  Ann ", Email: " ANN@X.IO ", Phone: " 555 "}
	req.Normalize()
	assert.Equal(t, CreateContactRequest{Name: "Ann", Email: "ann@x.io", Phone: "555"}, *req)
	assert.NoError(t, req.Validate())

	blank := &CreateContactRequest{Name: "   ", Email: "a@b.c"}
	blank.Normalize()
	err := blank.Validate()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Equal(t, "name and phone are required", err.Error())

	var nilReq *CreateContactRequest
	assert.True(t, dErrors.HasCode(nilReq.Validate(), dErrors.CodeBadRequest))
}

func TestUpdateContactRequest(t *testing.T) {
	req := &UpdateContactRequest{Email: ptr(" Bob@X.io "), Name: ptr("  ")}
	req.Normalize()
	assert.Equal(t, "bob@x.io", *req.Email)
	assert.Equal(t, "", *req.Name)

	err := req.Validate()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Contains(t, err.Error(), "name")

	assert.True(t, (&UpdateContactRequest{}).Empty())
	assert.False(t, (&UpdateContactRequest{Phone: ptr("1")}).Empty())
}

func TestListQueryNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   ListQuery
		want ListQuery
	}{
		{"defaults", ListQuery{}, ListQuery{Page: 1, Limit: 5}},
		{"negative falls back", ListQuery{Page: -2, Limit: -1}, ListQuery{Page: 1, Limit: 5}},
		{"clamped", ListQuery{Page: 3, Limit: 500}, ListQuery{Page: 3, Limit: 100}},
		{"search trimmed", ListQuery{Search: "  ann "}, ListQuery{Page: 1, Limit: 5, Search: "ann"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize(5, 100))
		})
	}
}

func TestListQueryOffset(t *testing.T) {
	tests := []struct {
		name string
		in   ListQuery
		want int
	}{
		{"first page", ListQuery{Page: 1, Limit: 5}, 0},
		{"third page", ListQuery{Page: 3, Limit: 5}, 10},
		{"unnormalized", ListQuery{}, 0},
		{"overflowing page saturates", ListQuery{Page: 100000000000000001, Limit: 100}, math.MaxInt},
		{"largest page", ListQuery{Page: math.MaxInt, Limit: 2}, math.MaxInt},
		{"last addressable page", ListQuery{Page: math.MaxInt/100 + 1, Limit: 100}, math.MaxInt / 100 * 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Offset())
		})
	}
}

func TestPageCount(t *testing.T) {
	assert.Equal(t, 1, PageCount(0, 5))
	assert.Equal(t, 1, PageCount(5, 5))
	assert.Equal(t, 3, PageCount(12, 5))
	assert.Equal(t, 2, PageCount(3, 2))
}
