// Package client is a typed HTTP client for the contacts API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"contacts/internal/contact/models"
	dErrors "contacts/pkg/domain-errors"
	"contacts/pkg/platform/httputil"
)

const headerIdempotencyKey = "Idempotency-Key"

// APIError is a non-2xx response decoded from the {error, kind} envelope.
type APIError struct {
	Status  int
	Kind    dErrors.Code
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("contacts api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return e.Message
}

// KindOf returns the error kind of an *APIError in err's chain, or "".
func KindOf(err error) dErrors.Code {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// Client talks to one contacts API base URL, e.g.
// http://localhost:8080/api/contacts.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	newKey     func() string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithKeyGenerator replaces the Idempotency-Key source, for tests.
func WithKeyGenerator(fn func() string) Option {
	return func(c *Client) { c.newKey = fn }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     slog.New(slog.DiscardHandler),
		newKey:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List fetches one page. Zero page or limit lets the server pick its default.
func (c *Client) List(ctx context.Context, q models.ListQuery) (*models.ContactPage, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	target := c.baseURL + "/"
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var page models.ContactPage
	if err := c.do(ctx, http.MethodGet, target, nil, "", &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) Get(ctx context.Context, contactID string) (*models.Contact, error) {
	var contact models.Contact
	if err := c.do(ctx, http.MethodGet, c.contactURL(contactID), nil, "", &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// Create posts a new contact under a fresh Idempotency-Key.
func (c *Client) Create(ctx context.Context, req models.CreateContactRequest) (*models.Contact, error) {
	var contact models.Contact
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/", req, c.newKey(), &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// Update sends only the non-nil fields of req.
func (c *Client) Update(ctx context.Context, contactID string, req models.UpdateContactRequest) (*models.Contact, error) {
	var contact models.Contact
	if err := c.do(ctx, http.MethodPut, c.contactURL(contactID), req, c.newKey(), &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *Client) Delete(ctx context.Context, contactID string) (*models.DeleteResult, error) {
	var result models.DeleteResult
	if err := c.do(ctx, http.MethodDelete, c.contactURL(contactID), nil, c.newKey(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) contactURL(contactID string) string {
	return c.baseURL + "/" + url.PathEscape(contactID)
}

func (c *Client) do(ctx context.Context, method, target string, body any, idempotencyKey string, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set(headerIdempotencyKey, idempotencyKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "contacts api request failed",
			"method", method,
			"url", target,
			"error", err,
		)
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "contacts api request",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxBodyBytes))
	var envelope httputil.ErrorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil {
		apiErr.Message = envelope.Error
		apiErr.Kind = dErrors.Code(envelope.Kind)
	}
	if apiErr.Kind == "" {
		apiErr.Kind = kindForStatus(resp.StatusCode)
	}
	return apiErr
}

// kindForStatus covers responses that did not carry a kind, e.g. from a proxy.
func kindForStatus(status int) dErrors.Code {
	switch {
	case status == http.StatusNotFound:
		return dErrors.CodeNotFound
	case status == http.StatusConflict:
		return dErrors.CodeIdempotencyInProgress
	case status == http.StatusTooManyRequests:
		return dErrors.CodeRateLimited
	case status >= 400 && status < 500:
		return dErrors.CodeBadRequest
	default:
		return dErrors.CodeInternal
	}
}
