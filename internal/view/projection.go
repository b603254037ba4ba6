// Package view derives what a ticket list screen shows from the store:
// filtered and ordered projections, status counts and the ticket the
// user has open.
package view

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spec-kit/ticket-sync/internal/domain"
)

// Order selects the sort of a projection.
type Order string

const (
	OrderNewest   Order = "newest"
	OrderOldest   Order = "oldest"
	OrderPriority Order = "priority"
)

// ParseOrder accepts the order names; empty means newest.
func ParseOrder(s string) (Order, error) {
	switch o := Order(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return OrderNewest, nil
	case OrderNewest, OrderOldest, OrderPriority:
		return o, nil
	default:
		return "", fmt.Errorf("unknown order %q", s)
	}
}

// Filter narrows a projection. Zero fields match everything.
type Filter struct {
	Status   domain.TicketStatus
	Category domain.TicketCategory
	Priority domain.TicketPriority
	// Query matches subject or message, case-insensitively.
	Query string
}

// Match reports whether t passes every set criterion.
func (f Filter) Match(t domain.Ticket) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(t.Subject), q) && !strings.Contains(strings.ToLower(t.Message), q) {
			return false
		}
	}
	return true
}

// Project returns the matching tickets of source in the given order.
// source is not modified. Equal keys keep their source order.
func Project(source []domain.Ticket, f Filter, o Order) []domain.Ticket {
	out := make([]domain.Ticket, 0, len(source))
	for _, t := range source {
		if f.Match(t) {
			out = append(out, t.Clone())
		}
	}

	switch o {
	case OrderOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	case OrderPriority:
		sort.SliceStable(out, func(i, j int) bool {
			ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
			if ri != rj {
				return ri > rj
			}
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	return out
}

// Summary counts tickets per status.
type Summary struct {
	Total    int
	ByStatus map[domain.TicketStatus]int
}

// Summarize counts tickets. Every status has an entry, possibly zero.
func Summarize(tickets []domain.Ticket) Summary {
	s := Summary{ByStatus: map[domain.TicketStatus]int{
		domain.TicketStatusOpen:       0,
		domain.TicketStatusInProgress: 0,
		domain.TicketStatusResolved:   0,
		domain.TicketStatusClosed:     0,
	}}
	for _, t := range tickets {
		s.Total++
		s.ByStatus[t.Status]++
	}
	return s
}

// Active counts tickets not yet closed or resolved.
func (s Summary) Active() int {
	return s.ByStatus[domain.TicketStatusOpen] + s.ByStatus[domain.TicketStatusInProgress]
}
