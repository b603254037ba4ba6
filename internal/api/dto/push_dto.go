package dto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Push event names as they appear on the channel.
const (
	PushTicketUpdated = "supportTicketUpdated"
	PushTicketCreated = "supportTicketCreated"
)

// OwnerChannel names the pub/sub channel that carries one owner's
// ticket events. Clients subscribe only to their own.
func OwnerChannel(base, ownerID string) string {
	return base + ":" + ownerID
}

// PushEnvelope is one message on the push channel.
type PushEnvelope struct {
	Event  string  `json:"event"`
	Ticket *Ticket `json:"ticket"`
}

// EncodePush serializes a ticket event for publishing.
func EncodePush(event string, ticket Ticket) ([]byte, error) {
	return json.Marshal(PushEnvelope{Event: event, Ticket: &ticket})
}

// DecodePush parses and checks a push message. Unknown event names and
// envelopes without a ticket id are rejected.
func DecodePush(payload []byte) (PushEnvelope, error) {
	var env PushEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return PushEnvelope{}, fmt.Errorf("decode push envelope: %w", err)
	}
	switch env.Event {
	case PushTicketUpdated, PushTicketCreated:
	default:
		return PushEnvelope{}, fmt.Errorf("unknown push event %q", env.Event)
	}
	if env.Ticket == nil || env.Ticket.ID == "" {
		return PushEnvelope{}, errors.New("push event without ticket snapshot")
	}
	return env, nil
}
