// Package retry bounds fixed-interval retries of ticket-list fetches.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/clock"
	"github.com/spec-kit/ticket-sync/internal/config"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util/errorutil"
)

const (
	DefaultMaxRetries = 3
	DefaultDelay      = 2 * time.Second
)

// Class is how the policy treats a failed attempt.
type Class int

const (
	// Terminal errors propagate immediately.
	Terminal Class = iota
	// Transient errors are retried after Delay.
	Transient
	// Auth errors propagate immediately and invalidate the session.
	Auth
)

// Classify maps an error to its retry class.
func Classify(err error) Class {
	switch {
	case apperrors.IsAuth(err):
		return Auth
	case apperrors.IsTransient(err):
		return Transient
	default:
		return Terminal
	}
}

// Policy retries transient failures up to MaxRetries extra times, Delay
// apart. It must only wrap idempotent reads: creates and replies are
// never retried because a retry could duplicate the side effect.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
	Clock      clock.Clock
	Logger     *zap.Logger

	// OnSessionInvalid is called once per auth failure, before Do returns.
	OnSessionInvalid func(error)
}

// NewPolicy builds a policy from sync configuration.
func NewPolicy(cfg config.SyncConfig, clk clock.Clock, logger *zap.Logger) *Policy {
	p := &Policy{
		MaxRetries: cfg.RetryAttempts,
		Delay:      cfg.RetryDelay,
		Clock:      clk,
		Logger:     logger,
	}
	if p.Delay <= 0 {
		p.Delay = DefaultDelay
	}
	return p
}

// Do runs op until it succeeds, fails with a non-transient error, or
// runs out of attempts; the last error is returned unchanged.
func Do[T any](ctx context.Context, p *Policy, op func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
		clk     = p.clock()
		logger  = p.logger()
	)
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-clk.After(p.Delay):
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		switch Classify(err) {
		case Auth:
			logger.Warn("credential rejected, not retrying", zap.Error(err))
			if p.OnSessionInvalid != nil {
				p.OnSessionInvalid(err)
			}
			return zero, err
		case Terminal:
			return zero, err
		}

		if ctx.Err() != nil {
			return zero, err
		}
		if attempt < p.MaxRetries {
			logger.Warn("transient fetch failure, retrying",
				zap.Int("attempt", attempt+1),
				zap.Int("max_attempts", p.MaxRetries+1),
				zap.Duration("delay", p.Delay),
				zap.Error(err))
		}
	}
	logger.Warn("fetch failed after retries", zap.Int("attempts", p.MaxRetries+1), zap.Error(lastErr))
	return zero, lastErr
}

func (p *Policy) clock() clock.Clock {
	if p.Clock == nil {
		return clock.Real()
	}
	return p.Clock
}

func (p *Policy) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
