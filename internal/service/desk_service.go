package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/events"
	"github.com/spec-kit/ticket-sync/internal/repository"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util/errorutil"
)

// DeskService coordinates ticket workflows on the support desk server:
// owners create tickets and reply, staff reply and move status.
type DeskService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	now        func() time.Time

	// writeMu keeps change events in the order the changes were made.
	writeMu sync.Mutex
}

var errUnchanged = errors.New("ticket unchanged")

// NewDeskService constructs the service.
func NewDeskService(tickets repository.TicketRepository, dispatcher events.Dispatcher) *DeskService {
	return &DeskService{tickets: tickets, dispatcher: dispatcher, now: time.Now}
}

// TicketUpdateInput is a staff change. Nil fields are left alone.
type TicketUpdateInput struct {
	Status   *domain.TicketStatus
	Priority *domain.TicketPriority
}

// CreateTicket opens a ticket for ownerID.
func (s *DeskService) CreateTicket(ctx context.Context, ownerID string, draft domain.TicketDraft) (*domain.Ticket, error) {
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	ticket := &domain.Ticket{
		Subject:  draft.Subject,
		Message:  draft.Message,
		Category: draft.Category,
		Priority: draft.Priority,
		Status:   domain.TicketStatusOpen,
		OwnerID:  ownerID,
		Replies:  []domain.Reply{},
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.EventTicketCreated, ticket)
	return ticket, nil
}

// ListOwnerTickets returns every ticket ownerID owns, newest first.
func (s *DeskService) ListOwnerTickets(ctx context.Context, ownerID string) ([]domain.Ticket, error) {
	return s.tickets.ListByOwner(ctx, ownerID)
}

// ListDeskTickets returns tickets across owners for staff.
func (s *DeskService) ListDeskTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, filter)
}

// GetTicketForOwner fetches a ticket ensuring ownership. Tickets of
// other owners are reported as missing.
func (s *DeskService) GetTicketForOwner(ctx context.Context, ownerID, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.OwnerID != ownerID {
		return nil, apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
	}
	return ticket, nil
}

// GetTicket fetches any ticket for staff.
func (s *DeskService) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, ticketID)
}

// AddOwnerReply appends the owner's reply.
func (s *DeskService) AddOwnerReply(ctx context.Context, ownerID, ticketID, message string) (*domain.Ticket, error) {
	return s.appendReply(ctx, ticketID, message, false, func(t *domain.Ticket) error {
		if t.OwnerID != ownerID {
			return apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return nil
	})
}

// AddStaffReply appends a support reply.
func (s *DeskService) AddStaffReply(ctx context.Context, ticketID, message string) (*domain.Ticket, error) {
	return s.appendReply(ctx, ticketID, message, true, nil)
}

// appendReply checks and appends in one repository mutation, so a reply
// never lands on a ticket closed concurrently.
func (s *DeskService) appendReply(ctx context.Context, ticketID, message string, isAdmin bool, authorize func(*domain.Ticket) error) (*domain.Ticket, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewValidationError("reply message is required", map[string]any{"field": "message"})
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) error {
		if authorize != nil {
			if err := authorize(t); err != nil {
				return err
			}
		}
		if t.IsClosed() {
			return apperrors.NewValidationError("ticket is closed", map[string]any{"status": t.Status})
		}
		t.Replies = append(t.Replies, domain.Reply{
			Message:   message,
			IsAdmin:   isAdmin,
			Timestamp: s.now().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.EventTicketUpdated, ticket)
	return ticket, nil
}

// UpdateTicket applies a staff status and/or priority change.
func (s *DeskService) UpdateTicket(ctx context.Context, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	if input.Status == nil && input.Priority == nil {
		return nil, apperrors.NewValidationError("nothing to update", nil)
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": *input.Status})
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) error {
		changed := false
		if input.Status != nil && *input.Status != t.Status {
			if !isValidTransition(t.Status, *input.Status) {
				return apperrors.NewValidationError("invalid status transition", map[string]any{
					"from": t.Status,
					"to":   *input.Status,
				})
			}
			t.Status = *input.Status
			changed = true
		}
		if input.Priority != nil && *input.Priority != t.Priority {
			t.Priority = *input.Priority
			changed = true
		}
		if !changed {
			return errUnchanged
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return s.tickets.GetByID(ctx, ticketID)
	}
	if err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.EventTicketUpdated, ticket)
	return ticket, nil
}

func (s *DeskService) publishEvent(ctx context.Context, eventType events.EventType, ticket *domain.Ticket) {
	if s.dispatcher == nil {
		return
	}
	now := s.now()
	_ = s.dispatcher.Publish(ctx, events.Event{
		Type:      eventType,
		TicketID:  ticket.ID,
		Timestamp: now,
		Payload:   events.TicketPayload{Ticket: ticket.Clone(), ReceivedAt: now},
	})
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusInProgress: {domain.TicketStatusOpen, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusResolved:   {domain.TicketStatusInProgress, domain.TicketStatusClosed},
	domain.TicketStatusClosed:     {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
