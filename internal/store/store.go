// Package store holds the authoritative in-memory view of the current
// user's tickets. Upsert is the only way to change it.
package store

import (
	"sort"
	"sync"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

// Outcome describes what an Upsert did.
type Outcome int

const (
	// Ignored means the snapshot had no id and was dropped.
	Ignored Outcome = iota
	// Unchanged means an identical snapshot was already stored.
	Unchanged
	Inserted
	Replaced
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Inserted:
		return "inserted"
	case Replaced:
		return "replaced"
	}
	return "ignored"
}

// Changed reports whether the store was mutated.
func (o Outcome) Changed() bool {
	return o == Inserted || o == Replaced
}

type entry struct {
	ticket domain.Ticket
	seq    uint64 // insertion order, used to break CreatedAt ties
}

// Store maps ticket id to the latest full snapshot received from any
// source. Every write is a whole-snapshot replace (last write wins);
// fields are never merged.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	seq      uint64
	revision uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Upsert inserts an unknown ticket or replaces the stored snapshot when
// the incoming one differs. Applying the same payload twice is a no-op.
func (s *Store) Upsert(t domain.Ticket) Outcome {
	if t.ID == "" {
		return Ignored
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.entries[t.ID]; ok {
		if cur.ticket.Equal(t) {
			return Unchanged
		}
		cur.ticket = t.Clone()
		s.revision++
		return Replaced
	}
	s.seq++
	s.entries[t.ID] = &entry{ticket: t.Clone(), seq: s.seq}
	s.revision++
	return Inserted
}

// UpsertAll applies a batch (a poll result) and returns how many
// entries changed.
func (s *Store) UpsertAll(tickets []domain.Ticket) int {
	changed := 0
	for _, t := range tickets {
		if s.Upsert(t).Changed() {
			changed++
		}
	}
	return changed
}

// Get returns a copy of the stored ticket.
func (s *Store) Get(id string) (domain.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return domain.Ticket{}, false
	}
	return e.ticket.Clone(), true
}

// List returns copies of all tickets, newest CreatedAt first. Tickets
// created at the same instant are ordered most recently inserted first.
func (s *Store) List() []domain.Ticket {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	out := make([]domain.Ticket, 0, len(entries))
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.ticket.CreatedAt.Equal(b.ticket.CreatedAt) {
			return a.ticket.CreatedAt.After(b.ticket.CreatedAt)
		}
		return a.seq > b.seq
	})
	for _, e := range entries {
		out = append(out, e.ticket.Clone())
	}
	s.mu.RUnlock()
	return out
}

// Len returns the number of stored tickets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Revision increases on every effective mutation.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}
