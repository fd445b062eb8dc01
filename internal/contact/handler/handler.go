package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"contacts/internal/contact/models"
	"contacts/internal/platform/metrics"
	"contacts/internal/platform/middleware"
	id "contacts/pkg/domain"
	dErrors "contacts/pkg/domain-errors"
	"contacts/pkg/platform/httputil"
)

// Service defines the contact operations the HTTP layer needs.
type Service interface {
	Create(ctx context.Context, req *models.CreateContactRequest) (*models.Contact, error)
	List(ctx context.Context, q models.ListQuery) (*models.ContactPage, error)
	Get(ctx context.Context, contactID id.ContactID) (*models.Contact, error)
	Update(ctx context.Context, contactID id.ContactID, req *models.UpdateContactRequest) (*models.Contact, error)
	Delete(ctx context.Context, contactID id.ContactID) (*models.Contact, error)
}

// Handler translates HTTP requests into contact service calls.
type Handler struct {
	service        Service
	logger         *slog.Logger
	metrics        *metrics.Metrics
	requestTimeout time.Duration
	mutations      []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithRequestTimeout bounds each request's context.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) { h.requestTimeout = d }
}

// WithMutationMiddleware wraps POST, PUT and DELETE routes, e.g. with
// Idempotency-Key handling.
func WithMutationMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) { h.mutations = append(h.mutations, mw...) }
}

func New(service Service, logger *slog.Logger, metrics *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		service:        service,
		logger:         logger,
		metrics:        metrics,
		requestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the contact routes on r. Callers mount r under the API
// prefix, e.g. /api/contacts.
func (h *Handler) Register(r chi.Router) {
	contactRouter := chi.NewRouter()
	contactRouter.Use(middleware.Timeout(h.requestTimeout))
	contactRouter.Use(middleware.ContentTypeJSON)
	contactRouter.Use(middleware.LatencyMiddleware(h.metrics))

	contactRouter.Get("/", h.handleList)
	contactRouter.Get("/{id}", h.handleGet)
	contactRouter.Group(func(mr chi.Router) {
		mr.Use(h.mutations...)
		mr.Post("/", h.handleCreate)
		mr.Put("/{id}", h.handleUpdate)
		mr.Delete("/{id}", h.handleDelete)
	})

	r.Mount("/", contactRouter)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.CreateContactRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	contact, err := h.service.Create(ctx, req)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to create contact")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, contact)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	page, err := h.service.List(ctx, models.ListQuery{
		Page:   queryInt(q.Get("page")),
		Limit:  queryInt(q.Get("limit")),
		Search: q.Get("search"),
	})
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to list contacts")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contactID, ok := h.contactID(w, r)
	if !ok {
		return
	}

	contact, err := h.service.Get(ctx, contactID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to get contact")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contact)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	contactID, ok := h.contactID(w, r)
	if !ok {
		return
	}

	// Validation happens in the service so an unknown id is reported first.
	var req models.UpdateContactRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid update contact request",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	contact, err := h.service.Update(ctx, contactID, &req)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to update contact")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, contact)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contactID, ok := h.contactID(w, r)
	if !ok {
		return
	}

	contact, err := h.service.Delete(ctx, contactID)
	if err != nil {
		h.writeServiceError(ctx, w, err, "failed to delete contact")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.DeleteResult{
		Message:        models.DeletedMessage,
		DeletedContact: contact,
	})
}

// contactID parses the {id} URL parameter. Ids that cannot name a contact
// are reported as not found.
func (h *Handler) contactID(w http.ResponseWriter, r *http.Request) (id.ContactID, bool) {
	contactID, err := id.ParseContactID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "Contact not found"))
		return id.NilContactID, false
	}
	return contactID, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	requestID := middleware.GetRequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestID,
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestID,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

// queryInt parses a pagination parameter; anything unparseable is 0, which
// the service treats as "use the default".
func queryInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
