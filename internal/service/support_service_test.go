package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-sync/internal/clock"
	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/events"
	"github.com/spec-kit/ticket-sync/internal/notify"
	"github.com/spec-kit/ticket-sync/internal/scheduler"
	"github.com/spec-kit/ticket-sync/internal/store"
	"github.com/spec-kit/ticket-sync/internal/transport"
	"github.com/spec-kit/ticket-sync/internal/transport/transporttest"
	"github.com/spec-kit/ticket-sync/internal/view"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util/errorutil"
)

var t0 = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

type staticSession struct{ id string }

func (s staticSession) UserID() string { return s.id }
func (s staticSession) Token() string  { return "token" }
func (s staticSession) Invalidate()    {}

type countingAlerter struct {
	mu    sync.Mutex
	shown []notify.Alert
}

func (c *countingAlerter) Permission() notify.Permission { return notify.PermissionGranted }

func (c *countingAlerter) RequestPermission(context.Context) (notify.Permission, error) {
	return notify.PermissionGranted, nil
}

func (c *countingAlerter) Show(_ context.Context, a notify.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shown = append(c.shown, a)
	return nil
}

func (c *countingAlerter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.shown)
}

func serverTicket(id string) domain.Ticket {
	return domain.Ticket{
		ID: id, Subject: "Cannot export", Message: "CSV export fails",
		Category: domain.CategoryBug, Priority: domain.TicketPriorityHigh,
		Status: domain.TicketStatusOpen, OwnerID: "u1", CreatedAt: t0, Replies: []domain.Reply{},
	}
}

func TestCreateTicketStoresServerResult(t *testing.T) {
	client := &transporttest.Client{CreateFn: func(_ context.Context, d domain.TicketDraft) (domain.Ticket, error) {
		return serverTicket("t1"), nil
	}}
	st := store.New()
	svc := NewSupportService(client, st, nil)

	got, err := svc.CreateTicket(context.Background(), domain.TicketDraft{Subject: "Cannot export", Message: "CSV export fails"})
	require.NoError(t, err)
	stored, ok := st.Get("t1")
	require.True(t, ok)
	if diff := cmp.Diff(got, stored); diff != "" {
		t.Fatalf("stored ticket mismatch (-got +stored):\n%s", diff)
	}
}

func TestCreateTicketFailureLeavesStoreEmpty(t *testing.T) {
	client := &transporttest.Client{CreateFn: func(context.Context, domain.TicketDraft) (domain.Ticket, error) {
		return domain.Ticket{}, apperrors.NewNetworkError(errors.New("refused"))
	}}
	st := store.New()
	_, err := NewSupportService(client, st, nil).CreateTicket(context.Background(), domain.TicketDraft{Subject: "a", Message: "b"})
	assert.True(t, apperrors.IsNetwork(err))
	assert.Zero(t, st.Len())
	assert.Equal(t, 1, client.CreateCalls(), "creates are never retried")
}

func TestReplyToClosedTicketIsRejectedLocally(t *testing.T) {
	client := &transporttest.Client{}
	st := store.New()
	closed := serverTicket("t1")
	closed.Status = domain.TicketStatusClosed
	st.Upsert(closed)
	rev := st.Revision()

	_, err := NewSupportService(client, st, nil).AddReply(context.Background(), "t1", "reopen please")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Zero(t, client.ReplyCalls())
	assert.Equal(t, rev, st.Revision(), "store must be unmodified")
	got, _ := st.Get("t1")
	assert.Empty(t, got.Replies)
}

func TestReplyStoresUpdatedTicket(t *testing.T) {
	client := &transporttest.Client{ReplyFn: func(_ context.Context, id, msg string) (domain.Ticket, error) {
		t := serverTicket(id)
		t.Replies = []domain.Reply{{Message: msg, Timestamp: t0.Add(time.Minute)}}
		return t, nil
	}}
	st := store.New()
	st.Upsert(serverTicket("t1"))
	svc := NewSupportService(client, st, nil)

	_, err := svc.AddReply(context.Background(), "t1", "any update?")
	require.NoError(t, err)
	got, _ := svc.Ticket("t1")
	require.Len(t, got.Replies, 1)
	assert.Equal(t, "any update?", got.Replies[0].Message)
	assert.Equal(t, 1, svc.Summary().ByStatus[domain.TicketStatusOpen])
	assert.Len(t, svc.Tickets(view.Filter{Category: domain.CategoryBug}, view.OrderNewest), 1)
}

// Create, then a staff reply arrives by push twice and by poll once:
// exactly one alert.
func TestCreatePushUpdateAlertsOnce(t *testing.T) {
	clk := clock.NewFake(t0)
	session := staticSession{id: "u1"}
	st := store.New()
	push := transporttest.NewPushChannel()

	var mu sync.Mutex
	remote := []domain.Ticket{}
	client := &transporttest.Client{
		FetchFn: func(context.Context) ([]domain.Ticket, error) {
			mu.Lock()
			defer mu.Unlock()
			return append([]domain.Ticket(nil), remote...), nil
		},
		CreateFn: func(context.Context, domain.TicketDraft) (domain.Ticket, error) {
			mu.Lock()
			defer mu.Unlock()
			t := serverTicket("t1")
			remote = append(remote, t)
			return t, nil
		},
	}

	dispatcher := events.NewInMemoryDispatcher()
	alerter := &countingAlerter{}
	trigger := notify.NewTrigger(alerter, notify.TriggerConfig{Clock: clk})
	NewNotificationService(dispatcher, trigger, session, nil).RegisterHandlers()

	sched := scheduler.New(client, push, st, session, nil, scheduler.Options{Clock: clk, Dispatcher: dispatcher})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runErr := make(chan error, 1)
	go func() { runErr <- sched.Run(ctx) }()
	clk.WaitForTimers(1)

	svc := NewSupportService(client, st, nil)
	created, err := svc.CreateTicket(ctx, domain.TicketDraft{Subject: "Cannot export", Message: "CSV export fails"})
	require.NoError(t, err)
	assert.Equal(t, 1, st.Len())

	updated := created.Clone()
	updated.Status = domain.TicketStatusInProgress
	updated.Replies = append(updated.Replies, domain.Reply{Message: "Fixed in 2.3", IsAdmin: true, Timestamp: clk.Now().Add(-2 * time.Second)})
	mu.Lock()
	remote = []domain.Ticket{updated}
	mu.Unlock()

	push.Publish(transport.Event{Kind: transport.EventTicketUpdated, Ticket: &updated})
	dup := updated.Clone()
	push.Publish(transport.Event{Kind: transport.EventTicketUpdated, Ticket: &dup})

	require.Eventually(t, func() bool { return alerter.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, sched.Refresh(ctx))
	assert.Never(t, func() bool { return alerter.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	got, _ := st.Get("t1")
	assert.Equal(t, domain.TicketStatusInProgress, got.Status)
	assert.Equal(t, "New reply on ticket: Cannot export", alerter.shown[0].Body)

	cancel()
	assert.ErrorIs(t, <-runErr, context.Canceled)
}
