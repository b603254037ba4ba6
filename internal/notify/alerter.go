// Package notify decides when a pushed ticket update deserves a
// foreground alert and delivers it through an Alerter.
package notify

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

// Permission is the user's alert consent.
type Permission string

const (
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
	PermissionUndetermined Permission = "undetermined"
)

// ParsePermission maps a config value; anything unknown is undetermined.
func ParsePermission(s string) Permission {
	switch Permission(strings.ToLower(strings.TrimSpace(s))) {
	case PermissionGranted:
		return PermissionGranted
	case PermissionDenied:
		return PermissionDenied
	default:
		return PermissionUndetermined
	}
}

// AlertTitle is the fixed heading of reply alerts.
const AlertTitle = "Support Ticket Update"

// Alert is one foreground notification.
type Alert struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	TicketID string    `json:"ticketId"`
	At       time.Time `json:"at"`
}

// NewReplyAlert builds the alert for a staff reply on ticket.
func NewReplyAlert(ticket domain.Ticket, at time.Time) Alert {
	return Alert{
		ID:       uuid.NewString(),
		Title:    AlertTitle,
		Body:     "New reply on ticket: " + ticket.Subject,
		TicketID: ticket.ID,
		At:       at,
	}
}

// Alerter is the platform alert capability.
type Alerter interface {
	Permission() Permission
	// RequestPermission asks the user once and returns the resulting
	// state. It may block; callers run it off the hot path.
	RequestPermission(ctx context.Context) (Permission, error)
	Show(ctx context.Context, alert Alert) error
}

// LogAlerter writes alerts to the log. It is always permitted.
type LogAlerter struct {
	logger *zap.Logger
}

// NewLogAlerter builds a LogAlerter.
func NewLogAlerter(logger *zap.Logger) *LogAlerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) Permission() Permission { return PermissionGranted }

func (a *LogAlerter) RequestPermission(context.Context) (Permission, error) {
	return PermissionGranted, nil
}

func (a *LogAlerter) Show(_ context.Context, alert Alert) error {
	a.logger.Info(alert.Title,
		zap.String("alert_id", alert.ID),
		zap.String("ticket_id", alert.TicketID),
		zap.String("body", alert.Body))
	return nil
}
