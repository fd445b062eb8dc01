package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"contacts/internal/audit"
	contactmetrics "contacts/internal/contact/metrics"
	"contacts/internal/contact/models"
	id "contacts/pkg/domain"
	dErrors "contacts/pkg/domain-errors"
	"contacts/pkg/platform/sentinel"
	"contacts/pkg/requestcontext"
)

const tracerName = "contacts/internal/contact/service"

// Store persists contacts. Implementations return sentinel.ErrNotFound and
// sentinel.ErrAlreadyUsed (possibly wrapped) for missing ids and taken emails.
type Store interface {
	Create(ctx context.Context, c *models.Contact) error
	FindByID(ctx context.Context, contactID id.ContactID) (*models.Contact, error)
	Execute(ctx context.Context, contactID id.ContactID, fn func(*models.Contact) error) (*models.Contact, error)
	Delete(ctx context.Context, contactID id.ContactID) (*models.Contact, error)
	List(ctx context.Context, search string, offset, limit int) ([]*models.Contact, int, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service validates contact input, applies pagination and maps store
// failures onto domain error codes.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *contactmetrics.Metrics
	tracer         trace.Tracer
	defaultLimit   int
	maxLimit       int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *contactmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracerProvider overrides the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// WithPageLimits sets the default and maximum page sizes for List.
func WithPageLimits(defaultLimit, maxLimit int) Option {
	return func(s *Service) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			s.maxLimit = maxLimit
		}
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		logger:       slog.New(slog.DiscardHandler),
		tracer:       otel.Tracer(tracerName),
		defaultLimit: 5,
		maxLimit:     100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and stores a new contact.
func (s *Service) Create(ctx context.Context, req *models.CreateContactRequest) (c *models.Contact, err error) {
	ctx, done := s.begin(ctx, "create")
	defer func() { done(err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	contactID, err := id.NewContactID()
	if err != nil {
		return nil, err
	}
	c, err = models.NewContact(contactID, req.Name, req.Email, req.Phone, s.now(ctx))
	if err != nil {
		return nil, invariantToValidation(err)
	}

	if err := s.store.Create(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create contact")
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("contact.id", c.ID.String()))
	s.emit(ctx, audit.ActionContactCreated, c.ID)
	s.refreshStored(ctx)
	return c, nil
}

// List returns one page of contacts whose names contain q.Search.
func (s *Service) List(ctx context.Context, q models.ListQuery) (page *models.ContactPage, err error) {
	ctx, done := s.begin(ctx, "list")
	defer func() { done(err) }()

	q = q.Normalize(s.defaultLimit, s.maxLimit)
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("page", q.Page),
		attribute.Int("limit", q.Limit),
		attribute.Bool("search", q.Search != ""),
	)

	contacts, total, err := s.store.List(ctx, q.Search, q.Offset(), q.Limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list contacts")
	}
	if q.Search == "" {
		s.metrics.SetStored(total)
	}
	return &models.ContactPage{
		Total:    total,
		Page:     q.Page,
		Pages:    models.PageCount(total, q.Limit),
		Contacts: contacts,
	}, nil
}

// Get returns a single contact.
func (s *Service) Get(ctx context.Context, contactID id.ContactID) (c *models.Contact, err error) {
	ctx, done := s.begin(ctx, "get")
	defer func() { done(err) }()

	c, err = s.store.FindByID(ctx, contactID)
	if err != nil {
		return nil, wrapContactErr(err, "failed to load contact")
	}
	return c, nil
}

// Update replaces the supplied fields. A missing contact is reported before
// any validation of the request.
func (s *Service) Update(ctx context.Context, contactID id.ContactID, req *models.UpdateContactRequest) (c *models.Contact, err error) {
	ctx, done := s.begin(ctx, "update")
	defer func() { done(err) }()

	if req == nil {
		req = &models.UpdateContactRequest{}
	}
	req.Normalize()
	now := s.now(ctx)

	c, err = s.store.Execute(ctx, contactID, func(current *models.Contact) error {
		if err := req.Validate(); err != nil {
			return err
		}
		return invariantToValidation(current.ApplyUpdate(*req, now))
	})
	if err != nil {
		return nil, wrapContactErr(err, "failed to update contact")
	}

	s.emit(ctx, audit.ActionContactUpdated, c.ID)
	return c, nil
}

// Delete removes a contact and returns its last stored state.
func (s *Service) Delete(ctx context.Context, contactID id.ContactID) (c *models.Contact, err error) {
	ctx, done := s.begin(ctx, "delete")
	defer func() { done(err) }()

	c, err = s.store.Delete(ctx, contactID)
	if err != nil {
		return nil, wrapContactErr(err, "failed to delete contact")
	}

	s.emit(ctx, audit.ActionContactDeleted, c.ID)
	s.refreshStored(ctx)
	return c, nil
}

// refreshStored updates the stored-contacts gauge after a create or delete.
// A failed count only leaves the gauge stale.
func (s *Service) refreshStored(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	n, err := s.store.Count(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to count contacts", "error", err)
		return
	}
	s.metrics.SetStored(n)
}

// Ping checks the store for readiness probes.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// begin opens a span and returns a func that records the outcome on the span
// and in metrics.
func (s *Service) begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "contact."+op,
		trace.WithAttributes(attribute.String("request.id", requestcontext.RequestID(ctx))))
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = string(dErrors.CodeOf(err))
			span.SetAttributes(attribute.String("error.kind", outcome))
			if outcome == string(dErrors.CodeInternal) {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		}
		span.End()
		s.metrics.Observe(op, outcome, start)
	}
}

func (s *Service) emit(ctx context.Context, action audit.Action, contactID id.ContactID) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:    action,
		ContactID: contactID.String(),
		RequestID: requestcontext.RequestID(ctx),
		Timestamp: requestcontext.Now(ctx).UTC(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", action,
			"contact_id", contactID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
}

// now is the request time at the precision every store can round-trip.
func (s *Service) now(ctx context.Context) time.Time {
	return requestcontext.Now(ctx).UTC().Truncate(time.Microsecond)
}

func invariantToValidation(err error) error {
	if err == nil {
		return nil
	}
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}

func wrapContactErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "Contact not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "email already exists")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
