package contact

import (
	"log/slog"

	"contacts/internal/contact/handler"
	"contacts/internal/contact/service"
	"contacts/internal/platform/metrics"
)

// Service exposes contact CRUD, pagination and search.
type Service = service.Service

// Handler wires HTTP endpoints to the contact service.
type Handler = handler.Handler

// NewService constructs the contact service over store.
func NewService(store service.Store, opts ...service.Option) *Service {
	return service.New(store, opts...)
}

// NewHandler constructs the HTTP handler for the /contacts routes.
func NewHandler(s *Service, logger *slog.Logger, m *metrics.Metrics, opts ...handler.Option) *Handler {
	return handler.New(s, logger, m, opts...)
}
