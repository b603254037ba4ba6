// Package transport talks to the remote support API: a request/response
// client for listing, creating and replying to tickets, and a push
// channel that streams ticket snapshots as they change.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-sync/internal/api/dto"
	"github.com/spec-kit/ticket-sync/internal/domain"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util/errorutil"
)

const ticketsPath = "/api/support/tickets"

// Client is the request/response surface of the remote API.
type Client interface {
	FetchTickets(ctx context.Context) ([]domain.Ticket, error)
	CreateTicket(ctx context.Context, draft domain.TicketDraft) (domain.Ticket, error)
	AddReply(ctx context.Context, ticketID, message string) (domain.Ticket, error)
}

// Credentials supplies the bearer token for each request.
type Credentials interface {
	Token() string
}

// HTTPClient implements Client with the fiber HTTP agent.
type HTTPClient struct {
	baseURL string
	timeout time.Duration
	creds   Credentials
}

// NewHTTPClient builds a client for baseURL. A zero timeout leaves
// requests bounded only by the caller's context.
func NewHTTPClient(baseURL string, timeout time.Duration, creds Credentials) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		creds:   creds,
	}
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// FetchTickets lists every ticket the credential's user owns.
func (c *HTTPClient) FetchTickets(ctx context.Context) ([]domain.Ticket, error) {
	var out envelope[[]dto.Ticket]
	if err := c.do(ctx, fiber.MethodGet, ticketsPath, nil, &out); err != nil {
		return nil, err
	}
	return dto.TicketsToDomain(out.Data), nil
}

// CreateTicket validates the draft locally before sending it.
func (c *HTTPClient) CreateTicket(ctx context.Context, draft domain.TicketDraft) (domain.Ticket, error) {
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return domain.Ticket{}, err
	}
	req := dto.CreateTicketRequest{
		Subject:  draft.Subject,
		Message:  draft.Message,
		Category: draft.Category,
		Priority: draft.Priority,
	}
	var out envelope[dto.Ticket]
	if err := c.do(ctx, fiber.MethodPost, ticketsPath, req, &out); err != nil {
		return domain.Ticket{}, err
	}
	return out.Data.ToDomain(), nil
}

// AddReply appends a user reply and returns the updated ticket.
func (c *HTTPClient) AddReply(ctx context.Context, ticketID, message string) (domain.Ticket, error) {
	message = strings.TrimSpace(message)
	if ticketID == "" {
		return domain.Ticket{}, apperrors.NewValidationError("ticket id is required", nil)
	}
	if message == "" {
		return domain.Ticket{}, apperrors.NewValidationError("reply message is required", map[string]any{"field": "message"})
	}
	path := ticketsPath + "/" + url.PathEscape(ticketID) + "/replies"
	var out envelope[dto.Ticket]
	if err := c.do(ctx, fiber.MethodPost, path, dto.CreateReplyRequest{Message: message}, &out); err != nil {
		return domain.Ticket{}, err
	}
	return out.Data.ToDomain(), nil
}

type response struct {
	status int
	body   []byte
	errs   []error
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	agent := fiber.AcquireAgent()
	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if c.creds != nil {
		if token := c.creds.Token(); token != "" {
			agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
		}
	}
	if body != nil {
		agent.JSON(body)
	}
	if timeout := c.effectiveTimeout(ctx); timeout > 0 {
		agent.Timeout(timeout)
	}
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return apperrors.NewInternalError(err)
	}

	// The agent has no context support; an abandoned request finishes
	// on its own timeout and its result is dropped.
	done := make(chan response, 1)
	go func() {
		status, respBody, errs := agent.Bytes()
		done <- response{status: status, body: respBody, errs: errs}
	}()

	var res response
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-done:
	}

	if len(res.errs) > 0 {
		return classify(res.errs)
	}
	if res.status < 200 || res.status > 299 {
		return statusError(res.status, res.body)
	}
	if out == nil || len(res.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, out); err != nil {
		return apperrors.NewRemoteError(res.status, "malformed response body: "+err.Error())
	}
	return nil
}

func (c *HTTPClient) effectiveTimeout(ctx context.Context) time.Duration {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			remaining = time.Millisecond
		}
		if timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

// statusError maps a non-2xx response onto the error taxonomy, keeping
// the server's message.
func statusError(status int, body []byte) error {
	var parsed dto.ErrorBody
	_ = json.Unmarshal(body, &parsed)
	message := parsed.Error.Message
	if message == "" {
		message = http.StatusText(status)
	}
	details := parsed.Error.Details

	switch status {
	case http.StatusUnauthorized:
		return apperrors.NewUnauthorized(message)
	case http.StatusForbidden:
		return apperrors.NewForbidden(message)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperrors.NewValidationError(message, details)
	case http.StatusNotFound:
		return apperrors.NewDomainError(apperrors.CodeNotFound, message, status, details)
	default:
		return apperrors.NewRemoteError(status, message)
	}
}
