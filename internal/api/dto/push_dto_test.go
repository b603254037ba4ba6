package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

func TestPushRoundTripKeepsSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tk := domain.Ticket{
		ID: "t1", Subject: "Login issue", Message: "Cannot log in",
		Category: domain.CategoryAccount, Priority: domain.TicketPriorityHigh,
		Status: domain.TicketStatusOpen, OwnerID: "u1", CreatedAt: now,
		Replies: []domain.Reply{{Message: "on it", IsAdmin: true, Timestamp: now}},
	}
	payload, err := EncodePush(PushTicketUpdated, TicketFromDomain(tk))
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"event":"supportTicketUpdated"`)
	assert.Contains(t, string(payload), `"isAdmin":true`)

	env, err := DecodePush(payload)
	require.NoError(t, err)
	assert.True(t, tk.Equal(env.Ticket.ToDomain()))
}

func TestDecodePushRejects(t *testing.T) {
	cases := map[string]string{
		"garbage":       `{`,
		"unknown event": `{"event":"supportTicketDeleted","ticket":{"id":"t1"}}`,
		"no ticket":     `{"event":"supportTicketUpdated"}`,
		"no id":         `{"event":"supportTicketCreated","ticket":{"subject":"x"}}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodePush([]byte(payload))
			assert.Error(t, err)
		})
	}
}
