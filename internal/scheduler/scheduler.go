// Package scheduler keeps the ticket store in step with the remote API.
// A single loop goroutine owns the poll ticker and the push
// subscription; fetches run beside it and report back over a channel.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/auth"
	"github.com/spec-kit/ticket-sync/internal/clock"
	"github.com/spec-kit/ticket-sync/internal/domain"
	"github.com/spec-kit/ticket-sync/internal/events"
	"github.com/spec-kit/ticket-sync/internal/observability"
	"github.com/spec-kit/ticket-sync/internal/retry"
	"github.com/spec-kit/ticket-sync/internal/store"
	"github.com/spec-kit/ticket-sync/internal/transport"
	"github.com/spec-kit/ticket-sync/internal/view"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util/errorutil"
)

// DefaultInterval is the poll period.
const DefaultInterval = 30 * time.Second

var (
	// ErrReauthRequired ends Run when the remote API rejects the
	// credential. The session has already been invalidated.
	ErrReauthRequired = errors.New("re-authentication required")
	// ErrNotRunning is returned by Refresh outside Run.
	ErrNotRunning = errors.New("scheduler is not running")
	// ErrAlreadyRunning is returned by a second concurrent Run.
	ErrAlreadyRunning = errors.New("scheduler is already running")
)

// State is the fetch state machine.
type State string

const (
	StateIdle          State = "idle"
	StateFetching      State = "fetching"
	StateIdleWithError State = "idle_with_error"
)

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	State     State
	LastError error
	Connected bool
	LastSync  time.Time
	// Sequence is the number of the most recently started fetch.
	Sequence uint64
}

// Options configures a Scheduler. Zero values fall back to defaults.
type Options struct {
	Interval   time.Duration
	Clock      clock.Clock
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Dispatcher events.Dispatcher
	Selection  *view.Selection
	// OnError receives every non-auth fetch failure verbatim.
	OnError func(error)
}

// Scheduler drives manual, periodic and push updates into one store.
type Scheduler struct {
	client  transport.Client
	push    transport.PushChannel
	store   *store.Store
	session auth.Session
	policy  *retry.Policy

	interval   time.Duration
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *observability.Metrics
	dispatcher events.Dispatcher
	selection  *view.Selection
	onError    func(error)

	mu         sync.Mutex
	running    bool
	runDone    chan struct{}
	requests   chan chan error
	nextSeq    uint64
	appliedSeq uint64
	settledSeq uint64
	inFlight   int
	lastErr    error
	connected  bool
	lastSync   time.Time
}

// New wires a scheduler. push may be nil, in which case only polling
// and manual refresh update the store.
func New(client transport.Client, push transport.PushChannel, st *store.Store, session auth.Session, policy *retry.Policy, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = events.NewInMemoryDispatcher()
	}

	p := retry.Policy{MaxRetries: retry.DefaultMaxRetries, Delay: retry.DefaultDelay}
	if policy != nil {
		p = *policy
	}
	if p.Clock == nil {
		p.Clock = opts.Clock
	}
	if p.Logger == nil {
		p.Logger = opts.Logger
	}
	prev := p.OnSessionInvalid
	p.OnSessionInvalid = func(err error) {
		if session != nil {
			session.Invalidate()
		}
		if prev != nil {
			prev(err)
		}
	}

	return &Scheduler{
		client:     client,
		push:       push,
		store:      st,
		session:    session,
		policy:     &p,
		interval:   opts.Interval,
		clock:      opts.Clock,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		dispatcher: opts.Dispatcher,
		selection:  opts.Selection,
		onError:    opts.OnError,
		requests:   make(chan chan error),
	}
}

// Dispatcher returns the dispatcher push and sync events are published on.
func (s *Scheduler) Dispatcher() events.Dispatcher { return s.dispatcher }

// Store returns the store the scheduler writes to.
func (s *Scheduler) Store() *store.Store { return s.store }

type fetchResult struct {
	seq     uint64
	initial bool
	tickets []domain.Ticket
	err     error
	took    time.Duration
	reply   chan error
}

// Run subscribes to push, performs the initial fetch and then polls
// every Interval until ctx ends or the credential is rejected. The
// ticker and subscription are released exactly once on every return
// path, and results arriving after Run returns are dropped.
func (s *Scheduler) Run(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	done := make(chan struct{})
	s.runDone = done
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)

	var (
		ticker      *clock.Ticker
		sub         transport.Subscription
		releaseOnce sync.Once
	)
	release := func() {
		releaseOnce.Do(func() {
			ticker.Stop()
			if sub != nil {
				if cerr := sub.Close(); cerr != nil {
					s.logger.Warn("closing push subscription", zap.Error(cerr))
				}
			}
		})
	}
	defer func() {
		release()
		cancel()
		s.mu.Lock()
		s.running = false
		s.inFlight = 0
		s.connected = false
		s.mu.Unlock()
		close(done)
	}()

	var pushEvents <-chan transport.Event
	if s.push != nil {
		sub, err = s.push.Subscribe(ctx)
		if err != nil {
			s.logger.Warn("push subscription unavailable, polling only", zap.Error(err))
			sub, err = nil, nil
		} else {
			pushEvents = sub.Events()
		}
	}

	results := make(chan fetchResult)
	s.startFetch(ctx, results, done, true, nil)

	var tick <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case res := <-results:
			if authErr := s.apply(ctx, res); authErr != nil {
				return fmt.Errorf("%w: %w", ErrReauthRequired, authErr)
			}
			if res.initial && ticker == nil {
				ticker = s.clock.NewTicker(s.interval)
				tick = ticker.C
			}

		case <-tick:
			s.startFetch(ctx, results, done, false, nil)

		case reply := <-s.requests:
			s.startFetch(ctx, results, done, false, reply)

		case ev, ok := <-pushEvents:
			if !ok {
				pushEvents = nil
				s.setConnected(ctx, false)
				continue
			}
			s.handlePush(ctx, ev)
		}
	}
}

// Refresh runs one fetch through the running loop and waits for it to
// be applied. The fetch error is returned verbatim.
func (s *Scheduler) Refresh(ctx context.Context) error {
	s.mu.Lock()
	running, done := s.running, s.runDone
	s.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	reply := make(chan error, 1)
	select {
	case s.requests <- reply:
	case <-done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current state snapshot.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		LastError: s.lastErr,
		Connected: s.connected,
		LastSync:  s.lastSync,
		Sequence:  s.nextSeq,
	}
	switch {
	case s.inFlight > 0:
		st.State = StateFetching
	case s.lastErr != nil:
		st.State = StateIdleWithError
	default:
		st.State = StateIdle
	}
	return st
}

func (s *Scheduler) startFetch(ctx context.Context, results chan<- fetchResult, done <-chan struct{}, initial bool, reply chan error) {
	s.mu.Lock()
	s.nextSeq++
	seq := s.nextSeq
	s.inFlight++
	s.mu.Unlock()

	go func() {
		started := s.clock.Now()
		tickets, err := retry.Do(ctx, s.policy, s.client.FetchTickets)
		res := fetchResult{
			seq:     seq,
			initial: initial,
			tickets: tickets,
			err:     err,
			took:    s.clock.Now().Sub(started),
			reply:   reply,
		}
		select {
		case results <- res:
		case <-done:
		}
	}()
}

// apply folds a settled fetch into the store and state. It returns the
// auth error when the credential was rejected.
func (s *Scheduler) apply(ctx context.Context, res fetchResult) error {
	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()

	if res.reply != nil {
		defer func() { res.reply <- res.err }()
	}

	if res.err != nil {
		if apperrors.IsAuth(res.err) {
			s.metrics.RecordFetch("auth", res.took)
			s.logger.Warn("credential rejected, stopping sync", zap.Error(res.err))
			return res.err
		}
		if errors.Is(res.err, context.Canceled) && ctx.Err() != nil {
			return nil
		}

		s.mu.Lock()
		stale := res.seq < s.settledSeq
		if !stale {
			s.settledSeq = res.seq
			s.lastErr = res.err
		}
		s.mu.Unlock()
		if stale {
			s.metrics.RecordFetch("superseded", res.took)
			return nil
		}

		s.metrics.RecordFetch("error", res.took)
		s.logger.Warn("ticket sync failed", zap.Uint64("seq", res.seq), zap.Error(res.err))
		if s.onError != nil {
			s.onError(res.err)
		}
		s.publish(ctx, events.Event{
			Type:      events.EventSyncFailed,
			Timestamp: s.clock.Now(),
			Payload:   events.SyncFailedPayload{Sequence: res.seq, Err: res.err},
		})
		return nil
	}

	s.mu.Lock()
	if res.seq < s.appliedSeq {
		s.mu.Unlock()
		s.metrics.RecordFetch("superseded", res.took)
		s.logger.Debug("discarding superseded fetch", zap.Uint64("seq", res.seq))
		return nil
	}
	s.appliedSeq = res.seq
	if res.seq > s.settledSeq {
		s.settledSeq = res.seq
		s.lastErr = nil
	}
	s.lastSync = s.clock.Now()
	s.mu.Unlock()

	changed := 0
	for _, t := range res.tickets {
		if s.store.Upsert(t).Changed() {
			changed++
			if s.selection != nil {
				s.selection.Refresh(t)
			}
		}
	}
	s.metrics.RecordFetch("ok", res.took)
	s.logger.Debug("ticket sync applied",
		zap.Uint64("seq", res.seq),
		zap.Int("fetched", len(res.tickets)),
		zap.Int("changed", changed))
	s.publish(ctx, events.Event{
		Type:      events.EventSyncCompleted,
		Timestamp: s.clock.Now(),
		Payload:   events.SyncCompletedPayload{Sequence: res.seq, Fetched: len(res.tickets), Changed: changed},
	})
	return nil
}

func (s *Scheduler) handlePush(ctx context.Context, ev transport.Event) {
	s.metrics.RecordPush(string(ev.Kind))

	switch ev.Kind {
	case transport.EventConnect:
		s.setConnected(ctx, true)
	case transport.EventDisconnect:
		s.setConnected(ctx, false)

	case transport.EventTicketUpdated:
		if ev.Ticket == nil {
			return
		}
		t := *ev.Ticket
		if !s.owns(t) {
			s.logger.Warn("dropping update for another user's ticket", zap.String("ticket_id", t.ID))
			return
		}
		outcome := s.store.Upsert(t)
		if s.selection != nil {
			s.selection.Refresh(t)
		}
		s.logger.Debug("push update applied", zap.String("ticket_id", t.ID), zap.Stringer("outcome", outcome))
		s.publish(ctx, events.Event{
			Type:      events.EventPushTicketUpdated,
			TicketID:  t.ID,
			Timestamp: s.clock.Now(),
			Payload:   events.TicketPayload{Ticket: t.Clone(), ReceivedAt: s.clock.Now()},
		})

	case transport.EventTicketCreated:
		if ev.Ticket == nil {
			return
		}
		t := *ev.Ticket
		if !s.owns(t) {
			s.logger.Debug("dropping foreign ticket", zap.String("ticket_id", t.ID))
			return
		}
		s.store.Upsert(t)
		s.publish(ctx, events.Event{
			Type:      events.EventPushTicketCreated,
			TicketID:  t.ID,
			Timestamp: s.clock.Now(),
			Payload:   events.TicketPayload{Ticket: t.Clone(), ReceivedAt: s.clock.Now()},
		})
	}
}

// owns reports whether t belongs to the session's user. Only those
// tickets may enter the store.
func (s *Scheduler) owns(t domain.Ticket) bool {
	return s.session != nil && t.OwnerID != "" && t.OwnerID == s.session.UserID()
}

func (s *Scheduler) setConnected(ctx context.Context, connected bool) {
	s.mu.Lock()
	changed := s.connected != connected
	s.connected = connected
	s.mu.Unlock()
	if !changed {
		return
	}
	s.logger.Info("push connectivity changed", zap.Bool("connected", connected))
	s.publish(ctx, events.Event{
		Type:      events.EventConnectivityChanged,
		Timestamp: s.clock.Now(),
		Payload:   events.ConnectivityPayload{Connected: connected},
	})
}

func (s *Scheduler) publish(ctx context.Context, event events.Event) {
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
