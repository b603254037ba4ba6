package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/ticket-sync/pkg/util/errorutil"
)

var created = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleTicket() Ticket {
	return Ticket{
		ID:        "t1",
		Subject:   "Login issue",
		Message:   "Cannot log in",
		Category:  CategoryAccount,
		Priority:  TicketPriorityHigh,
		Status:    TicketStatusOpen,
		OwnerID:   "u1",
		CreatedAt: created,
		Replies: []Reply{
			{Message: "Looking into it", IsAdmin: true, Timestamp: created.Add(time.Minute)},
		},
	}
}

func TestTicketEqual(t *testing.T) {
	a := sampleTicket()
	b := sampleTicket()
	assert.True(t, a.Equal(b))

	b.CreatedAt = created.In(time.FixedZone("CET", 3600))
	assert.True(t, a.Equal(b), "same instant in another zone")

	b.Replies[0].IsAdmin = false
	assert.False(t, a.Equal(b))

	c := sampleTicket()
	c.Replies = nil
	d := sampleTicket()
	d.Replies = []Reply{}
	assert.True(t, c.Equal(d))
}

func TestCloneIsolatesReplies(t *testing.T) {
	a := sampleTicket()
	b := a.Clone()
	b.Replies[0].Message = "changed"
	assert.Equal(t, "Looking into it", a.Replies[0].Message)
}

func TestLatestReply(t *testing.T) {
	tk := sampleTicket()
	tk.Replies = append(tk.Replies, Reply{Message: "thanks", Timestamp: created.Add(2 * time.Minute)})
	r, ok := tk.LatestReply()
	require.True(t, ok)
	assert.Equal(t, "thanks", r.Message)

	tk.Replies = nil
	_, ok = tk.LatestReply()
	assert.False(t, ok)
}

func TestDraftValidate(t *testing.T) {
	err := TicketDraft{Subject: "  ", Message: "body"}.Validate()
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	err = TicketDraft{Subject: "s", Message: "m", Category: "spam"}.Validate()
	assert.True(t, apperrors.IsValidation(err))

	require.NoError(t, TicketDraft{Subject: "Login issue", Message: "Cannot log in"}.Validate())

	d := TicketDraft{Subject: " s ", Message: "m"}.Normalize()
	assert.Equal(t, "s", d.Subject)
	assert.Equal(t, CategoryGeneral, d.Category)
	assert.Equal(t, TicketPriorityMedium, d.Priority)
}

func TestEnums(t *testing.T) {
	assert.True(t, TicketStatusInProgress.Valid())
	assert.False(t, TicketStatus("pending_user").Valid())
	assert.Greater(t, TicketPriorityUrgent.Rank(), TicketPriorityLow.Rank())
	assert.False(t, TicketPriority("p0").Valid())
}
