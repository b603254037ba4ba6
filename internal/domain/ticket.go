package domain

import (
	"strings"
	"time"

	apperrors "github.com/spec-kit/ticket-sync/pkg/util/errorutil"
)

// TicketStatus enumerates lifecycle states for tickets. Transitions are
// driven by the remote desk only; closed is terminal.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	return p.Rank() > 0
}

// Rank orders priorities from low (1) to urgent (4); unknown values rank 0.
func (p TicketPriority) Rank() int {
	switch p {
	case TicketPriorityLow:
		return 1
	case TicketPriorityMedium:
		return 2
	case TicketPriorityHigh:
		return 3
	case TicketPriorityUrgent:
		return 4
	}
	return 0
}

// TicketCategory classifies a ticket at creation time.
type TicketCategory string

const (
	CategoryGeneral   TicketCategory = "general"
	CategoryTechnical TicketCategory = "technical"
	CategoryBilling   TicketCategory = "billing"
	CategoryAccount   TicketCategory = "account"
	CategoryBug       TicketCategory = "bug"
	CategoryFeature   TicketCategory = "feature"
)

// Valid reports whether c is a known category.
func (c TicketCategory) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryTechnical, CategoryBilling, CategoryAccount, CategoryBug, CategoryFeature:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. The remote desk owns
// every field; the client only ever holds full snapshots.
type Ticket struct {
	ID        string
	Subject   string
	Message   string
	Category  TicketCategory
	Priority  TicketPriority
	Status    TicketStatus
	OwnerID   string
	CreatedAt time.Time
	Replies   []Reply
}

// IsClosed reports whether the ticket no longer accepts replies.
func (t Ticket) IsClosed() bool {
	return t.Status == TicketStatusClosed
}

// LatestReply returns the last reply in arrival order.
func (t Ticket) LatestReply() (Reply, bool) {
	if len(t.Replies) == 0 {
		return Reply{}, false
	}
	return t.Replies[len(t.Replies)-1], true
}

// Clone returns a copy that shares no memory with t.
func (t Ticket) Clone() Ticket {
	out := t
	if t.Replies != nil {
		out.Replies = make([]Reply, len(t.Replies))
		copy(out.Replies, t.Replies)
	}
	return out
}

// Equal compares two snapshots field by field. A nil and an empty reply
// list are equal.
func (t Ticket) Equal(o Ticket) bool {
	if t.ID != o.ID ||
		t.Subject != o.Subject ||
		t.Message != o.Message ||
		t.Category != o.Category ||
		t.Priority != o.Priority ||
		t.Status != o.Status ||
		t.OwnerID != o.OwnerID ||
		!t.CreatedAt.Equal(o.CreatedAt) ||
		len(t.Replies) != len(o.Replies) {
		return false
	}
	for i := range t.Replies {
		if !t.Replies[i].Equal(o.Replies[i]) {
			return false
		}
	}
	return true
}

// TicketDraft is the user input for a new ticket.
type TicketDraft struct {
	Subject  string
	Message  string
	Category TicketCategory
	Priority TicketPriority
}

// Normalize trims text and fills the default category and priority.
func (d TicketDraft) Normalize() TicketDraft {
	d.Subject = strings.TrimSpace(d.Subject)
	d.Message = strings.TrimSpace(d.Message)
	if d.Category == "" {
		d.Category = CategoryGeneral
	}
	if d.Priority == "" {
		d.Priority = TicketPriorityMedium
	}
	return d
}

// Validate checks the normalized draft.
func (d TicketDraft) Validate() error {
	d = d.Normalize()
	missing := []string{}
	if d.Subject == "" {
		missing = append(missing, "subject")
	}
	if d.Message == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError(strings.Join(missing, ", ")+" required", map[string]any{"fields": missing})
	}
	if !d.Category.Valid() {
		return apperrors.NewValidationError("unknown category", map[string]any{"category": d.Category})
	}
	if !d.Priority.Valid() {
		return apperrors.NewValidationError("unknown priority", map[string]any{"priority": d.Priority})
	}
	return nil
}
