// Package worker holds the long-lived event listeners wired at startup:
// alerting on the client side and push relaying on the desk server.
package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/auth"
	"github.com/spec-kit/ticket-sync/internal/events"
	"github.com/spec-kit/ticket-sync/internal/notify"
	"github.com/spec-kit/ticket-sync/internal/service"
)

// StartNotificationWorker connects the alert trigger to push updates on
// dispatcher. It returns nil when there is nothing to wire.
func StartNotificationWorker(dispatcher events.Dispatcher, trigger *notify.Trigger, session auth.Session, logger *zap.Logger) *service.NotificationService {
	if dispatcher == nil || trigger == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	notifications := service.NewNotificationService(dispatcher, trigger, session, logger.Named("notifications"))
	notifications.RegisterHandlers()
	return notifications
}
