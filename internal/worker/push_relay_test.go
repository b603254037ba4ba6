package worker

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-sync/internal/api/dto"
	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/events"
	"github.com/spec-kit/ticket-sync/internal/notify"
	"github.com/spec-kit/ticket-sync/internal/persistence"
)

func TestPushRelayPublishesEnvelopes(t *testing.T) {
	db, mock := redismock.NewClientMock()
	dispatcher := events.NewInMemoryDispatcher()
	StartPushRelay(dispatcher, &persistence.Redis{Client: db}, "support:tickets", nil)

	ticket := domain.Ticket{
		ID: "t1", Subject: "Sync stuck", OwnerID: "u1", Status: domain.TicketStatusOpen,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Replies: []domain.Reply{},
	}
	created, err := dto.EncodePush(dto.PushTicketCreated, dto.TicketFromDomain(ticket))
	require.NoError(t, err)
	updated, err := dto.EncodePush(dto.PushTicketUpdated, dto.TicketFromDomain(ticket))
	require.NoError(t, err)

	mock.ExpectPublish("support:tickets:u1", created).SetVal(1)
	mock.ExpectPublish("support:tickets:u1", updated).SetVal(0)

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventTicketCreated, TicketID: "t1", Payload: events.TicketPayload{Ticket: ticket}}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventTicketUpdated, TicketID: "t1", Payload: events.TicketPayload{Ticket: ticket}}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPushRelayScopesChannelToOwner(t *testing.T) {
	db, mock := redismock.NewClientMock()
	dispatcher := events.NewInMemoryDispatcher()
	StartPushRelay(dispatcher, &persistence.Redis{Client: db}, "support:tickets", nil)

	theirs := domain.Ticket{
		ID: "t2", Subject: "Refund", OwnerID: "u2", Status: domain.TicketStatusClosed,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Replies: []domain.Reply{},
	}
	updated, err := dto.EncodePush(dto.PushTicketUpdated, dto.TicketFromDomain(theirs))
	require.NoError(t, err)
	mock.ExpectPublish("support:tickets:u2", updated).SetVal(1)

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventTicketUpdated, TicketID: "t2", Payload: events.TicketPayload{Ticket: theirs}}))

	// No owner, no channel: nothing is published.
	unowned := theirs.Clone()
	unowned.ID, unowned.OwnerID = "t3", ""
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventTicketUpdated, TicketID: "t3", Payload: events.TicketPayload{Ticket: unowned}}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStartNotificationWorkerNeedsTrigger(t *testing.T) {
	assert.Nil(t, StartNotificationWorker(events.NewInMemoryDispatcher(), nil, nil, nil))

	trigger := notify.NewTrigger(notify.NewLogAlerter(nil), notify.TriggerConfig{})
	assert.NotNil(t, StartNotificationWorker(events.NewInMemoryDispatcher(), trigger, nil, nil))
}
