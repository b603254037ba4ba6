package view

import (
	"sync"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

// Source looks tickets up by id. *store.Store satisfies it.
type Source interface {
	Get(id string) (domain.Ticket, bool)
}

// Selection tracks the ticket the user has open.
type Selection struct {
	mu     sync.RWMutex
	id     string
	ticket domain.Ticket
	loaded bool
}

// Select opens id, loading its current snapshot from source. The id
// stays selected even when source does not know it yet, so a later
// Refresh can fill it in.
func (s *Selection) Select(id string, source Source) (domain.Ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.ticket, s.loaded = domain.Ticket{}, false
	if source != nil {
		if t, ok := source.Get(id); ok {
			s.ticket, s.loaded = t.Clone(), true
		}
	}
	return s.ticket.Clone(), s.loaded
}

// Refresh replaces the open snapshot when t is the selected ticket.
func (s *Selection) Refresh(t domain.Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == "" || t.ID != s.id {
		return false
	}
	s.ticket, s.loaded = t.Clone(), true
	return true
}

// Current returns the open snapshot, if any.
func (s *Selection) Current() (domain.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return domain.Ticket{}, false
	}
	return s.ticket.Clone(), true
}

// ID returns the selected id, or "".
func (s *Selection) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Clear drops the selection.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	s.ticket, s.loaded = domain.Ticket{}, false
}
