package dto

import (
	"time"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

// Ticket is the full ticket snapshot exchanged with the remote API and
// carried by push events.
type Ticket struct {
	ID        string                `json:"id"`
	Subject   string                `json:"subject"`
	Message   string                `json:"message"`
	Category  domain.TicketCategory `json:"category"`
	Priority  domain.TicketPriority `json:"priority"`
	Status    domain.TicketStatus   `json:"status"`
	OwnerID   string                `json:"ownerId"`
	CreatedAt time.Time             `json:"createdAt"`
	Replies   []Reply               `json:"replies"`
}

// Reply is one conversation entry.
type Reply struct {
	Message   string    `json:"message"`
	IsAdmin   bool      `json:"isAdmin"`
	Timestamp time.Time `json:"timestamp"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject  string                `json:"subject"`
	Message  string                `json:"message"`
	Category domain.TicketCategory `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
}

// CreateReplyRequest payload.
type CreateReplyRequest struct {
	Message string `json:"message"`
}

// UpdateTicketRequest is the desk-side status/priority change.
type UpdateTicketRequest struct {
	Status   *domain.TicketStatus   `json:"status,omitempty"`
	Priority *domain.TicketPriority `json:"priority,omitempty"`
}

// ErrorBody mirrors the error envelope written by the API middleware.
type ErrorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

// TicketFromDomain converts a domain ticket for the wire.
func TicketFromDomain(t domain.Ticket) Ticket {
	replies := make([]Reply, 0, len(t.Replies))
	for _, r := range t.Replies {
		replies = append(replies, Reply{Message: r.Message, IsAdmin: r.IsAdmin, Timestamp: r.Timestamp})
	}
	return Ticket{
		ID:        t.ID,
		Subject:   t.Subject,
		Message:   t.Message,
		Category:  t.Category,
		Priority:  t.Priority,
		Status:    t.Status,
		OwnerID:   t.OwnerID,
		CreatedAt: t.CreatedAt,
		Replies:   replies,
	}
}

// ToDomain converts a wire ticket. Replies always come back non-nil.
func (t Ticket) ToDomain() domain.Ticket {
	replies := make([]domain.Reply, 0, len(t.Replies))
	for _, r := range t.Replies {
		replies = append(replies, domain.Reply{Message: r.Message, IsAdmin: r.IsAdmin, Timestamp: r.Timestamp})
	}
	return domain.Ticket{
		ID:        t.ID,
		Subject:   t.Subject,
		Message:   t.Message,
		Category:  t.Category,
		Priority:  t.Priority,
		Status:    t.Status,
		OwnerID:   t.OwnerID,
		CreatedAt: t.CreatedAt,
		Replies:   replies,
	}
}

// TicketsToDomain converts a list response.
func TicketsToDomain(items []Ticket) []domain.Ticket {
	out := make([]domain.Ticket, 0, len(items))
	for _, t := range items {
		out = append(out, t.ToDomain())
	}
	return out
}
