package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

func TestPublishRunsEveryHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")
	var order []string

	d.Subscribe(EventPushTicketUpdated, func(context.Context, Event) error {
		order = append(order, "first")
		return boom
	})
	d.Subscribe(EventPushTicketUpdated, func(_ context.Context, e Event) error {
		order = append(order, "second")
		p, ok := TicketPayloadOf(e)
		require.True(t, ok)
		assert.Equal(t, "t1", p.Ticket.ID)
		return nil
	})
	d.Subscribe(EventSyncFailed, func(context.Context, Event) error {
		order = append(order, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{
		Type:    EventPushTicketUpdated,
		Payload: &TicketPayload{Ticket: domain.Ticket{ID: "t1"}},
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestPublishWithoutListeners(t *testing.T) {
	assert.NoError(t, NewInMemoryDispatcher().Publish(context.Background(), Event{Type: EventTicketCreated}))
}

func TestTicketPayloadOf(t *testing.T) {
	_, ok := TicketPayloadOf(Event{Payload: "nope"})
	assert.False(t, ok)
	var nilPayload *TicketPayload
	_, ok = TicketPayloadOf(Event{Payload: nilPayload})
	assert.False(t, ok)
	p, ok := TicketPayloadOf(Event{Payload: TicketPayload{Ticket: domain.Ticket{ID: "x"}}})
	assert.True(t, ok)
	assert.Equal(t, "x", p.Ticket.ID)
}

func TestPublishRecoversHandlerPanic(t *testing.T) {
	d := NewInMemoryDispatcher()
	ran := false
	d.Subscribe(EventSyncCompleted, func(context.Context, Event) error { panic("nil map") })
	d.Subscribe(EventSyncCompleted, func(context.Context, Event) error {
		ran = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventSyncCompleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.completed handler panicked")
	assert.True(t, ran)
}
