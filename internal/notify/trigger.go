package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/clock"
	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/observability"
)

const (
	// DefaultWindow bounds how old a reply may be and still alert.
	DefaultWindow = 10 * time.Second
	// DefaultDeliveryTimeout bounds one Show call.
	DefaultDeliveryTimeout = 3 * time.Second
)

// TriggerConfig holds the optional collaborators of a Trigger.
type TriggerConfig struct {
	Window          time.Duration
	DeliveryTimeout time.Duration
	Clock           clock.Clock
	Logger          *zap.Logger
	Metrics         *observability.Metrics
}

// Trigger gates alerts for pushed ticket updates. It fires at most once
// per distinct staff reply, and only for the owner's own tickets.
type Trigger struct {
	alerter         Alerter
	window          time.Duration
	deliveryTimeout time.Duration
	clock           clock.Clock
	logger  *zap.Logger
	metrics *observability.Metrics

	mu        sync.Mutex
	fired     map[string]time.Time
	requested bool
	pending   sync.WaitGroup
}

// NewTrigger builds a trigger around alerter.
func NewTrigger(alerter Alerter, cfg TriggerConfig) *Trigger {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Trigger{
		alerter:         alerter,
		window:          cfg.Window,
		deliveryTimeout: cfg.DeliveryTimeout,
		clock:           cfg.Clock,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		fired:   make(map[string]time.Time),
	}
}

// Handle evaluates one pushed snapshot and shows an alert when the
// latest reply is a fresh staff reply on a ticket userID owns. A zero
// receivedAt means now. It reports whether an alert was shown.
func (t *Trigger) Handle(ctx context.Context, ticket domain.Ticket, userID string, receivedAt time.Time) (bool, error) {
	key, alert, ok := t.claim(ctx, ticket, userID, receivedAt)
	if !ok {
		return false, nil
	}
	if err := t.deliver(ctx, key, alert); err != nil {
		return false, err
	}
	return true, nil
}

// HandleAsync applies the same gates as Handle but shows the alert on
// its own goroutine, so a slow alerter never holds up the caller. It
// reports whether an alert was queued; Wait blocks until it is done.
func (t *Trigger) HandleAsync(ctx context.Context, ticket domain.Ticket, userID string, receivedAt time.Time) bool {
	key, alert, ok := t.claim(ctx, ticket, userID, receivedAt)
	if !ok {
		return false
	}
	t.pending.Add(1)
	go func() {
		defer t.pending.Done()
		_ = t.deliver(context.WithoutCancel(ctx), key, alert)
	}()
	return true
}

// claim runs the gates and marks the reply as alerted. The mark is
// taken before Show so concurrent duplicates cannot both pass.
func (t *Trigger) claim(ctx context.Context, ticket domain.Ticket, userID string, receivedAt time.Time) (string, Alert, bool) {
	if userID == "" || ticket.OwnerID != userID {
		return "", Alert{}, false
	}
	latest, ok := ticket.LatestReply()
	if !ok || !latest.IsAdmin {
		return "", Alert{}, false
	}
	if receivedAt.IsZero() {
		receivedAt = t.clock.Now()
	}
	// A reply stamped in the future (clock skew) counts as fresh.
	if receivedAt.Sub(latest.Timestamp) > t.window {
		return "", Alert{}, false
	}

	key := dedupeKey(ticket.ID, latest)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(receivedAt)
	if _, dup := t.fired[key]; dup {
		return "", Alert{}, false
	}

	switch t.alerter.Permission() {
	case PermissionGranted:
		t.fired[key] = latest.Timestamp
		return key, NewReplyAlert(ticket, receivedAt), true
	case PermissionUndetermined:
		t.requestPermissionLocked(ctx)
	}
	return "", Alert{}, false
}

// deliver shows alert within the delivery timeout. On failure the mark
// is cleared so a redelivery can try again.
func (t *Trigger) deliver(ctx context.Context, key string, alert Alert) error {
	ctx, cancel := context.WithTimeout(ctx, t.deliveryTimeout)
	defer cancel()

	if err := t.alerter.Show(ctx, alert); err != nil {
		t.mu.Lock()
		delete(t.fired, key)
		t.mu.Unlock()
		t.logger.Warn("alert delivery failed", zap.String("ticket_id", alert.TicketID), zap.Error(err))
		return err
	}
	t.metrics.RecordAlert()
	t.logger.Debug("alert shown", zap.String("ticket_id", alert.TicketID))
	return nil
}

// requestPermissionLocked asks for consent once per Trigger, off the
// caller's goroutine. Must be called with t.mu held.
func (t *Trigger) requestPermissionLocked(ctx context.Context) {
	if t.requested {
		return
	}
	t.requested = true
	t.pending.Add(1)
	go func() {
		defer t.pending.Done()
		perm, err := t.alerter.RequestPermission(context.WithoutCancel(ctx))
		if err != nil {
			t.logger.Warn("alert permission request failed", zap.Error(err))
			return
		}
		t.logger.Info("alert permission resolved", zap.String("permission", string(perm)))
	}()
}

// Wait blocks until in-flight permission requests and queued alerts finish.
func (t *Trigger) Wait() {
	t.pending.Wait()
}

// pruneLocked forgets replies that can no longer pass the window check.
func (t *Trigger) pruneLocked(now time.Time) {
	for key, ts := range t.fired {
		if now.Sub(ts) > t.window {
			delete(t.fired, key)
		}
	}
}

func dedupeKey(ticketID string, reply domain.Reply) string {
	return ticketID + "|" + reply.Timestamp.UTC().Format(time.RFC3339Nano) + "|" + reply.Message
}
