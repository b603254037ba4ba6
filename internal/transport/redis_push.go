package transport

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/api/dto"
	"github.com/spec-kit/ticket-sync/internal/clock"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util/errorutil"
)

// Subscriber is the slice of the redis client the push channel needs.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisPushChannel receives one owner's ticket events over Redis
// Pub/Sub. Snapshots owned by anyone else are dropped.
type RedisPushChannel struct {
	client         Subscriber
	channel        string
	ownerID        string
	reconnectDelay time.Duration
	clock          clock.Clock
	logger         *zap.Logger
}

// NewRedisPushChannel subscribes to ownerID's channel under base.
func NewRedisPushChannel(client Subscriber, base, ownerID string, reconnectDelay time.Duration, clk clock.Clock, logger *zap.Logger) *RedisPushChannel {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPushChannel{
		client:         client,
		channel:        dto.OwnerChannel(base, ownerID),
		ownerID:        ownerID,
		reconnectDelay: reconnectDelay,
		clock:          clk,
		logger:         logger,
	}
}

// Subscribe waits for the subscription to be confirmed so a dead
// server is reported to the caller rather than as a later disconnect.
func (c *RedisPushChannel) Subscribe(ctx context.Context) (Subscription, error) {
	pubsub := c.client.Subscribe(ctx, c.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewNetworkError(err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Event, 16),
		cancel: cancel,
		exited: make(chan struct{}),
	}
	go sub.run(subCtx, c)
	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Event
	cancel context.CancelFunc
	exited chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (s *redisSubscription) Events() <-chan Event { return s.events }

func (s *redisSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.pubsub.Close()
		<-s.exited
	})
	return s.closeErr
}

func (s *redisSubscription) run(ctx context.Context, c *RedisPushChannel) {
	defer close(s.exited)
	defer close(s.events)

	connected := true
	if !s.emit(ctx, Event{Kind: EventConnect}) {
		return
	}

	for {
		msg, err := s.pubsub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if connected {
				connected = false
				c.logger.Warn("push channel disconnected", zap.String("channel", c.channel), zap.Error(err))
				if !s.emit(ctx, Event{Kind: EventDisconnect}) {
					return
				}
			}
			// go-redis re-dials and re-subscribes on the next Receive.
			select {
			case <-ctx.Done():
				return
			case <-c.clock.After(c.reconnectDelay):
			}
			continue
		}

		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind == "subscribe" && !connected {
				connected = true
				c.logger.Info("push channel reconnected", zap.String("channel", c.channel))
				if !s.emit(ctx, Event{Kind: EventConnect}) {
					return
				}
			}
		case *redis.Message:
			ev, err := DecodeEvent([]byte(m.Payload))
			if err != nil {
				c.logger.Warn("dropping malformed push message", zap.Error(err))
				continue
			}
			if !c.accepts(ev) {
				c.logger.Warn("dropping push event for another owner",
					zap.String("channel", c.channel),
					zap.String("ticket_id", ev.Ticket.ID))
				continue
			}
			if !connected {
				connected = true
				if !s.emit(ctx, Event{Kind: EventConnect}) {
					return
				}
			}
			if !s.emit(ctx, ev) {
				return
			}
		case *redis.Pong:
		}
	}
}

// accepts reports whether ev carries a snapshot this channel's owner
// may see.
func (c *RedisPushChannel) accepts(ev Event) bool {
	if ev.Ticket == nil {
		return true
	}
	return ev.Ticket.OwnerID == c.ownerID
}

func (s *redisSubscription) emit(ctx context.Context, ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
