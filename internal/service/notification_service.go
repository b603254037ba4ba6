package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/auth"
	"github.com/spec-kit/ticket-sync/internal/events"
	"github.com/spec-kit/ticket-sync/internal/notify"
)

// NotificationService routes push updates to the alert trigger and
// logs sync health changes.
type NotificationService struct {
	dispatcher events.Dispatcher
	trigger    *notify.Trigger
	session    auth.Session
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, trigger *notify.Trigger, session auth.Session, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		trigger:    trigger,
		session:    session,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events. Only push-delivered updates
// reach the trigger; poll results never alert.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventPushTicketUpdated, n.handleTicketUpdated)
	n.dispatcher.Subscribe(events.EventConnectivityChanged, n.handleConnectivityChanged)
	n.dispatcher.Subscribe(events.EventSyncFailed, n.handleSyncFailed)
}

func (n *NotificationService) handleTicketUpdated(ctx context.Context, event events.Event) error {
	if n.trigger == nil || n.session == nil {
		return nil
	}
	payload, ok := events.TicketPayloadOf(event)
	if !ok {
		return nil
	}
	// Delivery runs off the caller: this handler is invoked from the
	// scheduler loop.
	if n.trigger.HandleAsync(ctx, payload.Ticket, n.session.UserID(), payload.ReceivedAt) {
		n.logger.Debug("TicketUpdated alert queued", zap.String("ticket_id", event.TicketID))
	}
	return nil
}

func (n *NotificationService) handleConnectivityChanged(_ context.Context, event events.Event) error {
	if p, ok := event.Payload.(events.ConnectivityPayload); ok && !p.Connected {
		n.logger.Info("live updates paused, polling continues")
	}
	return nil
}

func (n *NotificationService) handleSyncFailed(_ context.Context, event events.Event) error {
	if p, ok := event.Payload.(events.SyncFailedPayload); ok {
		n.logger.Debug("SyncFailed", zap.Uint64("seq", p.Sequence), zap.Error(p.Err))
	}
	return nil
}
