package store

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func ticket(id string, created time.Time) domain.Ticket {
	return domain.Ticket{
		ID:        id,
		Subject:   "subject " + id,
		Message:   "message " + id,
		Category:  domain.CategoryGeneral,
		Priority:  domain.TicketPriorityMedium,
		Status:    domain.TicketStatusOpen,
		OwnerID:   "u1",
		CreatedAt: created,
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := New()
	tk := ticket("t1", base)
	tk.Replies = []domain.Reply{{Message: "hi", IsAdmin: true, Timestamp: base}}

	require.Equal(t, Inserted, s.Upsert(tk))
	before := s.List()
	rev := s.Revision()

	assert.Equal(t, Unchanged, s.Upsert(tk))
	assert.Equal(t, rev, s.Revision())
	if diff := cmp.Diff(before, s.List()); diff != "" {
		t.Fatalf("store changed after identical upsert (-before +after):\n%s", diff)
	}
}

func TestUpsertReplacesWholeSnapshot(t *testing.T) {
	s := New()
	tk := ticket("t1", base)
	tk.Replies = []domain.Reply{{Message: "first", Timestamp: base}}
	s.Upsert(tk)

	newer := ticket("t1", base)
	newer.Status = domain.TicketStatusInProgress
	newer.Replies = nil

	assert.Equal(t, Replaced, s.Upsert(newer))
	got, ok := s.Get("t1")
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusInProgress, got.Status)
	assert.Empty(t, got.Replies, "no field merge with the previous snapshot")
	assert.Equal(t, 1, s.Len())
}

func TestUpsertIgnoresMissingID(t *testing.T) {
	s := New()
	assert.Equal(t, Ignored, s.Upsert(domain.Ticket{Subject: "orphan"}))
	assert.Zero(t, s.Len())
}

func TestListOrdering(t *testing.T) {
	s := New()
	s.Upsert(ticket("old", base))
	s.Upsert(ticket("new", base.Add(time.Hour)))
	s.Upsert(ticket("tie-a", base.Add(30*time.Minute)))
	s.Upsert(ticket("tie-b", base.Add(30*time.Minute)))

	var ids []string
	for _, tk := range s.List() {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []string{"new", "tie-b", "tie-a", "old"}, ids)
}

func TestReturnedTicketsAreCopies(t *testing.T) {
	s := New()
	tk := ticket("t1", base)
	tk.Replies = []domain.Reply{{Message: "orig"}}
	s.Upsert(tk)

	tk.Replies[0].Message = "mutated input"
	got, _ := s.Get("t1")
	got.Replies[0].Message = "mutated output"

	again, _ := s.Get("t1")
	assert.Equal(t, "orig", again.Replies[0].Message)
}

func TestUpsertAllCountsChanges(t *testing.T) {
	s := New()
	s.Upsert(ticket("t1", base))
	changed := s.UpsertAll([]domain.Ticket{ticket("t1", base), ticket("t2", base)})
	assert.Equal(t, 1, changed)
	assert.Equal(t, 2, s.Len())
}

func TestConcurrentWritersConverge(t *testing.T) {
	s := New()
	tk := ticket("t1", base)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Upsert(tk)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, uint64(1), s.Revision())
}
