package client

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"contacts/internal/contact/handler"
	"contacts/internal/contact/models"
	"contacts/internal/contact/service"
	"contacts/internal/contact/store"
	httpapi "contacts/internal/http"
	"contacts/internal/idempotency"
	"contacts/internal/platform/metrics"
	dErrors "contacts/pkg/domain-errors"
)

// ClientSuite runs the client against the real router over an in-memory
// store.
type ClientSuite struct {
	suite.Suite
	ctx    context.Context
	server *httptest.Server
	client *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.ctx = context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(store.NewInMemory(), service.WithLogger(logger))
	idem := idempotency.New(idempotency.NewInMemoryStore(), logger)
	h := handler.New(svc, logger, metrics.NewWithRegistry(prometheus.NewRegistry()),
		handler.WithMutationMiddleware(idem.Handler))
	s.server = httptest.NewServer(httpapi.NewRouter(httpapi.Config{
		Logger:         logger,
		AllowedOrigins: []string{"*"},
		APIPrefix:      "/api",
		Contacts:       h,
	}))
	s.client = New(s.server.URL + "/api/contacts")
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) TestCRUDRoundTrip() {
	created, err := s.client.Create(s.ctx, models.CreateContactRequest{Name: "Alice", Email: "alice@example.com", Phone: "1"})
	s.Require().NoError(err)
	s.Equal("Alice", created.Name)

	got, err := s.client.Get(s.ctx, created.ID.String())
	s.Require().NoError(err)
	s.Equal(created.ID, got.ID)

	phone := "555-9999"
	updated, err := s.client.Update(s.ctx, created.ID.String(), models.UpdateContactRequest{Phone: &phone})
	s.Require().NoError(err)
	s.Equal("555-9999", updated.Phone)
	s.Equal("alice@example.com", updated.Email)

	deleted, err := s.client.Delete(s.ctx, created.ID.String())
	s.Require().NoError(err)
	s.Equal(models.DeletedMessage, deleted.Message)
	s.Equal(created.ID, deleted.DeletedContact.ID)

	_, err = s.client.Get(s.ctx, created.ID.String())
	s.Equal(dErrors.CodeNotFound, KindOf(err))
}

func (s *ClientSuite) TestListPagesAndSearch() {
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		_, err := s.client.Create(s.ctx, models.CreateContactRequest{Name: name, Email: name + "@example.com", Phone: "1"})
		s.Require().NoError(err)
	}

	page, err := s.client.List(s.ctx, models.ListQuery{Page: 1, Limit: 2})
	s.Require().NoError(err)
	s.Equal(3, page.Total)
	s.Equal(2, page.Pages)
	s.Equal([]string{"Alice", "Bob"}, contactNames(page))

	page, err = s.client.List(s.ctx, models.ListQuery{Page: 2, Limit: 2})
	s.Require().NoError(err)
	s.Equal([]string{"Carol"}, contactNames(page))

	page, err = s.client.List(s.ctx, models.ListQuery{Search: "car ol"})
	s.Require().NoError(err)
	s.Equal(0, page.Total)

	page, err = s.client.List(s.ctx, models.ListQuery{Search: "AR"})
	s.Require().NoError(err)
	s.Equal([]string{"Carol"}, contactNames(page))
}

func (s *ClientSuite) TestErrorsCarryKind() {
	_, err := s.client.Create(s.ctx, models.CreateContactRequest{Name: "Alice", Email: "a@x.com"})
	s.Equal(dErrors.CodeValidation, KindOf(err))
	s.EqualError(err, "phone is required")

	_, err = s.client.Create(s.ctx, models.CreateContactRequest{Name: "A", Email: "a@x.com", Phone: "1"})
	s.Require().NoError(err)
	_, err = s.client.Create(s.ctx, models.CreateContactRequest{Name: "B", Email: "A@X.com", Phone: "2"})
	var apiErr *APIError
	s.Require().ErrorAs(err, &apiErr)
	s.Equal(http.StatusBadRequest, apiErr.Status)
	s.Equal(dErrors.CodeConflict, apiErr.Kind)
	s.Equal("email already exists", apiErr.Message)

	_, err = s.client.Delete(s.ctx, "not-an-id")
	s.Equal(dErrors.CodeNotFound, KindOf(err))
}

func (s *ClientSuite) TestRepeatedKeyIsReplayed() {
	c := New(s.server.URL+"/api/contacts", WithKeyGenerator(func() string { return "fixed" }))
	req := models.CreateContactRequest{Name: "Alice", Email: "alice@example.com", Phone: "1"}

	first, err := c.Create(s.ctx, req)
	s.Require().NoError(err)
	second, err := c.Create(s.ctx, req)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	page, err := c.List(s.ctx, models.ListQuery{})
	s.Require().NoError(err)
	s.Equal(1, page.Total)
}

func contactNames(page *models.ContactPage) []string {
	names := make([]string, 0, len(page.Contacts))
	for _, c := range page.Contacts {
		names = append(names, c.Name)
	}
	return names
}

func TestMutationsSendFreshIdempotencyKeys(t *testing.T) {
	var mu sync.Mutex
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.Create(context.Background(), models.CreateContactRequest{})
	require.NoError(t, err)
	_, err = c.Create(context.Background(), models.CreateContactRequest{})
	require.NoError(t, err)
	_, err = c.List(context.Background(), models.ListQuery{})
	require.NoError(t, err)

	require.Len(t, keys, 3)
	assert.NotEmpty(t, keys[0])
	assert.NotEqual(t, keys[0], keys[1])
	assert.Empty(t, keys[2])
}

func TestErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Get(context.Background(), "x")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, dErrors.CodeInternal, apiErr.Kind)
	assert.Contains(t, apiErr.Error(), "502")
}

func TestKindFromStatusWhenBodyHasNone(t *testing.T) {
	cases := map[int]dErrors.Code{
		http.StatusNotFound:        dErrors.CodeNotFound,
		http.StatusConflict:        dErrors.CodeIdempotencyInProgress,
		http.StatusTooManyRequests: dErrors.CodeRateLimited,
		http.StatusTeapot:          dErrors.CodeBadRequest,
	}
	for status, kind := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		_, err := New(srv.URL).Get(context.Background(), "x")
		srv.Close()

		assert.Equal(t, kind, KindOf(err), "status %d", status)
	}
}
