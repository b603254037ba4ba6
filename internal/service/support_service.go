package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/store"
	"github.com/spec-kit/ticket-sync/internal/transport"
	"github.com/spec-kit/ticket-sync/internal/view"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util/errorutil"
)

// SupportService runs the user's ticket operations against the remote
// API and folds confirmed results into the local store. Creates and
// replies are attempted once; they are not idempotent.
type SupportService struct {
	client transport.Client
	store  *store.Store
	logger *zap.Logger
}

// NewSupportService creates the service.
func NewSupportService(client transport.Client, st *store.Store, logger *zap.Logger) *SupportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupportService{client: client, store: st, logger: logger}
}

// CreateTicket submits draft and stores the server's ticket.
func (s *SupportService) CreateTicket(ctx context.Context, draft domain.TicketDraft) (domain.Ticket, error) {
	ticket, err := s.client.CreateTicket(ctx, draft)
	if err != nil {
		return domain.Ticket{}, err
	}
	outcome := s.store.Upsert(ticket)
	s.logger.Info("ticket created", zap.String("ticket_id", ticket.ID), zap.Stringer("outcome", outcome))
	return ticket, nil
}

// AddReply posts a reply. A ticket the store knows to be closed is
// rejected without contacting the server and the store is untouched.
func (s *SupportService) AddReply(ctx context.Context, ticketID, message string) (domain.Ticket, error) {
	if current, ok := s.store.Get(ticketID); ok && current.IsClosed() {
		return domain.Ticket{}, apperrors.NewValidationError("ticket is closed", map[string]any{"ticket_id": ticketID})
	}
	ticket, err := s.client.AddReply(ctx, ticketID, message)
	if err != nil {
		return domain.Ticket{}, err
	}
	s.store.Upsert(ticket)
	return ticket, nil
}

// Tickets projects the store for display.
func (s *SupportService) Tickets(filter view.Filter, order view.Order) []domain.Ticket {
	return view.Project(s.store.List(), filter, order)
}

// Ticket returns one stored ticket.
func (s *SupportService) Ticket(id string) (domain.Ticket, bool) {
	return s.store.Get(id)
}

// Summary counts stored tickets by status.
func (s *SupportService) Summary() view.Summary {
	return view.Summarize(s.store.List())
}
