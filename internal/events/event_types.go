package events

import (
	"time"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	// Published by the sync engine.
	EventPushTicketUpdated   EventType = "push.ticket_updated"
	EventPushTicketCreated   EventType = "push.ticket_created"
	EventConnectivityChanged EventType = "push.connectivity_changed"
	EventSyncCompleted       EventType = "sync.completed"
	EventSyncFailed          EventType = "sync.failed"

	// Published by the desk service on the server side.
	EventTicketCreated EventType = "ticket.created"
	EventTicketUpdated EventType = "ticket.updated"
)

// Event represents an in-process notification.
type Event struct {
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketPayload carries a full ticket snapshot. ReceivedAt is when the
// snapshot reached this process.
type TicketPayload struct {
	Ticket     domain.Ticket `json:"ticket"`
	ReceivedAt time.Time     `json:"received_at"`
}

// ConnectivityPayload reports the push channel state.
type ConnectivityPayload struct {
	Connected bool `json:"connected"`
}

// SyncCompletedPayload summarizes an applied fetch.
type SyncCompletedPayload struct {
	Sequence uint64 `json:"sequence"`
	Fetched  int    `json:"fetched"`
	Changed  int    `json:"changed"`
}

// SyncFailedPayload carries the fetch error verbatim.
type SyncFailedPayload struct {
	Sequence uint64 `json:"sequence"`
	Err      error  `json:"-"`
}

// TicketPayloadOf extracts a ticket payload from either pointer or value form.
func TicketPayloadOf(event Event) (TicketPayload, bool) {
	switch p := event.Payload.(type) {
	case TicketPayload:
		return p, true
	case *TicketPayload:
		if p != nil {
			return *p, true
		}
	}
	return TicketPayload{}, false
}
