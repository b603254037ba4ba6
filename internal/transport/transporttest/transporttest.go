// Package transporttest provides in-memory transport doubles for tests
// of the packages that sit on top of the sync engine.
package transporttest

import (
	"context"
	"sync"

	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/transport"
)

// Client is a scriptable transport.Client. Nil funcs return zero values.
type Client struct {
	FetchFn  func(ctx context.Context) ([]domain.Ticket, error)
	CreateFn func(ctx context.Context, draft domain.TicketDraft) (domain.Ticket, error)
	ReplyFn  func(ctx context.Context, ticketID, message string) (domain.Ticket, error)

	mu      sync.Mutex
	fetches int
	creates int
	replies int
}

var _ transport.Client = (*Client)(nil)

func (c *Client) FetchTickets(ctx context.Context) ([]domain.Ticket, error) {
	c.mu.Lock()
	c.fetches++
	fn := c.FetchFn
	c.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx)
}

func (c *Client) CreateTicket(ctx context.Context, draft domain.TicketDraft) (domain.Ticket, error) {
	c.mu.Lock()
	c.creates++
	fn := c.CreateFn
	c.mu.Unlock()
	if fn == nil {
		return domain.Ticket{}, nil
	}
	return fn(ctx, draft)
}

func (c *Client) AddReply(ctx context.Context, ticketID, message string) (domain.Ticket, error) {
	c.mu.Lock()
	c.replies++
	fn := c.ReplyFn
	c.mu.Unlock()
	if fn == nil {
		return domain.Ticket{}, nil
	}
	return fn(ctx, ticketID, message)
}

// FetchCalls reports how many times FetchTickets ran.
func (c *Client) FetchCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

// CreateCalls reports how many times CreateTicket ran.
func (c *Client) CreateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creates
}

// ReplyCalls reports how many times AddReply ran.
func (c *Client) ReplyCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replies
}

// PushChannel fans published events out to every open subscription.
type PushChannel struct {
	// SubscribeErr, when set, fails every Subscribe call.
	SubscribeErr error

	mu     sync.Mutex
	subs   []*Subscription
	last   *Subscription
	opened int
}

var _ transport.PushChannel = (*PushChannel)(nil)

// NewPushChannel returns an empty channel.
func NewPushChannel() *PushChannel { return &PushChannel{} }

func (p *PushChannel) Subscribe(ctx context.Context) (transport.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SubscribeErr != nil {
		return nil, p.SubscribeErr
	}
	sub := &Subscription{
		owner:  p,
		events: make(chan transport.Event),
		done:   make(chan struct{}),
	}
	p.subs = append(p.subs, sub)
	p.last = sub
	p.opened++
	return sub, nil
}

// Publish blocks until every open subscription has taken ev or closed.
func (p *PushChannel) Publish(ev transport.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sub := range p.subs {
		select {
		case sub.events <- ev:
		case <-sub.done:
		}
	}
}

// Last returns the most recent subscription, open or not.
func (p *PushChannel) Last() *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Opened counts successful Subscribe calls.
func (p *PushChannel) Opened() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

// Open counts subscriptions not yet closed.
func (p *PushChannel) Open() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *PushChannel) remove(sub *Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.subs {
		if s == sub {
			p.subs = append(p.subs[:i], p.subs[i+1:]...)
			break
		}
	}
	close(sub.events)
}

// Subscription is one stream handed out by PushChannel.
type Subscription struct {
	owner  *PushChannel
	events chan transport.Event
	done   chan struct{}

	mu     sync.Mutex
	closes int
}

func (s *Subscription) Events() <-chan transport.Event { return s.events }

// Close detaches the subscription. Calls after the first are counted
// but have no effect.
func (s *Subscription) Close() error {
	s.mu.Lock()
	s.closes++
	first := s.closes == 1
	s.mu.Unlock()
	if !first {
		return nil
	}
	close(s.done)
	s.owner.remove(s)
	return nil
}

// CloseCalls reports how many times Close ran.
func (s *Subscription) CloseCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
