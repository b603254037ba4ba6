package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/api/dto"
	"github.com/spec-kit/ticket-sync/internal/events"
)

// Publisher sends a payload on a pub/sub channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// StartPushRelay forwards desk ticket events as push envelopes on the
// owner's channel under base. Tickets without an owner are not relayed.
func StartPushRelay(dispatcher events.Dispatcher, publisher Publisher, base string, logger *zap.Logger) {
	if dispatcher == nil || publisher == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	relay := func(name string) events.EventHandler {
		return func(ctx context.Context, event events.Event) error {
			payload, ok := events.TicketPayloadOf(event)
			if !ok || payload.Ticket.OwnerID == "" {
				return nil
			}
			channel := dto.OwnerChannel(base, payload.Ticket.OwnerID)
			msg, err := dto.EncodePush(name, dto.TicketFromDomain(payload.Ticket))
			if err != nil {
				return fmt.Errorf("encode %s: %w", name, err)
			}
			if err := publisher.Publish(ctx, channel, msg); err != nil {
				logger.Warn("push publish failed",
					zap.String("event", name),
					zap.String("ticket_id", event.TicketID),
					zap.String("channel", channel),
					zap.Error(err))
				return err
			}
			logger.Debug("push published", zap.String("event", name), zap.String("ticket_id", event.TicketID))
			return nil
		}
	}
	dispatcher.Subscribe(events.EventTicketCreated, relay(dto.PushTicketCreated))
	dispatcher.Subscribe(events.EventTicketUpdated, relay(dto.PushTicketUpdated))
}
