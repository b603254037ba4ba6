package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/store"
)

var base = time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)

func fixture() []domain.Ticket {
	return []domain.Ticket{
		{ID: "a", Subject: "Billing question", Message: "charged twice", Category: domain.CategoryBilling,
			Priority: domain.TicketPriorityLow, Status: domain.TicketStatusOpen, CreatedAt: base},
		{ID: "b", Subject: "App crash", Message: "crashes on start", Category: domain.CategoryBug,
			Priority: domain.TicketPriorityUrgent, Status: domain.TicketStatusInProgress, CreatedAt: base.Add(time.Hour)},
		{ID: "c", Subject: "Password", Message: "reset link broken", Category: domain.CategoryAccount,
			Priority: domain.TicketPriorityUrgent, Status: domain.TicketStatusClosed, CreatedAt: base.Add(2 * time.Hour)},
	}
}

func ids(ts []domain.Ticket) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func TestProjectOrders(t *testing.T) {
	src := fixture()
	assert.Equal(t, []string{"c", "b", "a"}, ids(Project(src, Filter{}, OrderNewest)))
	assert.Equal(t, []string{"a", "b", "c"}, ids(Project(src, Filter{}, OrderOldest)))
	assert.Equal(t, []string{"c", "b", "a"}, ids(Project(src, Filter{}, OrderPriority)))
	assert.Equal(t, "a", src[0].ID, "source untouched")
}

func TestProjectFilters(t *testing.T) {
	src := fixture()
	assert.Equal(t, []string{"b"}, ids(Project(src, Filter{Status: domain.TicketStatusInProgress}, OrderNewest)))
	assert.Equal(t, []string{"a"}, ids(Project(src, Filter{Category: domain.CategoryBilling}, OrderNewest)))
	assert.Equal(t, []string{"c", "b"}, ids(Project(src, Filter{Priority: domain.TicketPriorityUrgent}, OrderNewest)))
	assert.Equal(t, []string{"a"}, ids(Project(src, Filter{Query: "TWICE"}, OrderNewest)))
	assert.Empty(t, Project(src, Filter{Query: "nothing like this"}, OrderNewest))
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderNewest, o)
	o, err = ParseOrder("Priority")
	require.NoError(t, err)
	assert.Equal(t, OrderPriority, o)
	_, err = ParseOrder("random")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	s := Summarize(fixture())
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.ByStatus[domain.TicketStatusClosed])
	assert.Equal(t, 0, s.ByStatus[domain.TicketStatusResolved])
	assert.Equal(t, 2, s.Active())
}

func TestSelection(t *testing.T) {
	st := store.New()
	st.UpsertAll(fixture())

	var sel Selection
	got, ok := sel.Select("b", st)
	require.True(t, ok)
	assert.Equal(t, "App crash", got.Subject)

	other := fixture()[0]
	other.Subject = "changed"
	assert.False(t, sel.Refresh(other))

	updated := fixture()[1]
	updated.Replies = []domain.Reply{{Message: "looking", IsAdmin: true, Timestamp: base}}
	assert.True(t, sel.Refresh(updated))
	cur, ok := sel.Current()
	require.True(t, ok)
	assert.Len(t, cur.Replies, 1)

	sel.Clear()
	_, ok = sel.Current()
	assert.False(t, ok)
	assert.False(t, sel.Refresh(updated))
}

func TestSelectUnknownThenRefresh(t *testing.T) {
	var sel Selection
	_, ok := sel.Select("late", store.New())
	assert.False(t, ok)
	assert.Equal(t, "late", sel.ID())
	assert.True(t, sel.Refresh(domain.Ticket{ID: "late", Subject: "arrived"}))
	cur, ok := sel.Current()
	require.True(t, ok)
	assert.Equal(t, "arrived", cur.Subject)
}
