package transport

import (
	"context"

	"github.com/spec-kit/ticket-sync/internal/api/dto"
	"github.com/spec-kit/ticket-sync/internal/domain"
)

// EventKind names a push event.
type EventKind string

const (
	EventTicketUpdated EventKind = dto.PushTicketUpdated
	EventTicketCreated EventKind = dto.PushTicketCreated
	EventConnect       EventKind = "connect"
	EventDisconnect    EventKind = "disconnect"
)

// Event is one push delivery. Ticket is set for the two ticket kinds and
// nil for connectivity changes.
type Event struct {
	Kind   EventKind
	Ticket *domain.Ticket
}

// PushChannel opens subscriptions to the server's ticket events.
type PushChannel interface {
	Subscribe(ctx context.Context) (Subscription, error)
}

// Subscription is a live push stream. Events is closed after Close
// returns or the subscribing context ends. Close is idempotent.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// DecodeEvent parses one channel payload into a ticket event.
func DecodeEvent(payload []byte) (Event, error) {
	env, err := dto.DecodePush(payload)
	if err != nil {
		return Event{}, err
	}
	ticket := env.Ticket.ToDomain()
	return Event{Kind: EventKind(env.Event), Ticket: &ticket}, nil
}
