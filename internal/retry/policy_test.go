package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/clock"
	"github.com/spec-kit/ticket-sync/internal/config"
	apperrors "github.com/spec-kit/ticket-sync/pkg/util/errorutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu    sync.Mutex
	clock *clock.FakeClock
	at    []time.Time
	errs  []error // returned in order; last one repeats
}

func (r *recorder) op(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.at = append(r.at, r.clock.Now())
	i := len(r.at) - 1
	if i >= len(r.errs) {
		i = len(r.errs) - 1
	}
	if r.errs[i] == nil {
		return 42, nil
	}
	return 0, r.errs[i]
}

func (r *recorder) attempts() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.at...)
}

func newPolicy(c clock.Clock) *Policy {
	return NewPolicy(config.SyncConfig{RetryAttempts: 3, RetryDelay: 2 * time.Second}, c, zap.NewNop())
}

func TestNetworkFailureRetriesFourTimesTwoSecondsApart(t *testing.T) {
	fake := clock.NewFake(epoch)
	netErr := apperrors.NewNetworkError(errors.New("connection refused"))
	rec := &recorder{clock: fake, errs: []error{netErr}}
	p := newPolicy(fake)

	done := make(chan error, 1)
	go func() {
		_, err := Do(context.Background(), p, rec.op)
		done <- err
	}()

	for i := 0; i < 3; i++ {
		fake.WaitForTimers(1)
		fake.Advance(2 * time.Second)
	}

	select {
	case err := <-done:
		assert.Same(t, netErr, err, "last error surfaces unchanged")
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return")
	}

	at := rec.attempts()
	require.Len(t, at, 4)
	for i := 1; i < len(at); i++ {
		assert.Equal(t, 2*time.Second, at[i].Sub(at[i-1]))
	}
}

func TestAuthFailureIsNotRetried(t *testing.T) {
	fake := clock.NewFake(epoch)
	authErr := apperrors.NewUnauthorized("token expired")
	rec := &recorder{clock: fake, errs: []error{authErr}}
	p := newPolicy(fake)

	var signalled []error
	p.OnSessionInvalid = func(err error) { signalled = append(signalled, err) }

	_, err := Do(context.Background(), p, rec.op)
	require.Error(t, err)
	assert.True(t, apperrors.IsAuth(err))
	assert.Len(t, rec.attempts(), 1)
	assert.Equal(t, []error{authErr}, signalled)
	assert.Zero(t, fake.Pending())
}

func TestTerminalFailureIsNotRetried(t *testing.T) {
	fake := clock.NewFake(epoch)
	rec := &recorder{clock: fake, errs: []error{apperrors.NewRemoteError(500, "boom")}}

	_, err := Do(context.Background(), newPolicy(fake), rec.op)
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	assert.Len(t, rec.attempts(), 1)
}

func TestRecoversAfterTransientFailures(t *testing.T) {
	fake := clock.NewFake(epoch)
	netErr := apperrors.NewNetworkError(errors.New("timeout"))
	rec := &recorder{clock: fake, errs: []error{netErr, netErr, nil}}

	type result struct {
		v   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := Do(context.Background(), newPolicy(fake), rec.op)
		done <- result{v, err}
	}()
	for i := 0; i < 2; i++ {
		fake.WaitForTimers(1)
		fake.Advance(2 * time.Second)
	}

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, 42, res.v)
	assert.Len(t, rec.attempts(), 3)
}

func TestCancelDuringDelay(t *testing.T) {
	fake := clock.NewFake(epoch)
	rec := &recorder{clock: fake, errs: []error{apperrors.NewNetworkError(errors.New("reset"))}}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, newPolicy(fake), rec.op)
		done <- err
	}()
	fake.WaitForTimers(1)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Len(t, rec.attempts(), 1)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, Auth, Classify(apperrors.NewUnauthorized("x")))
	assert.Equal(t, Transient, Classify(apperrors.NewNetworkError(nil)))
	assert.Equal(t, Terminal, Classify(apperrors.NewValidationError("x", nil)))
	assert.Equal(t, Terminal, Classify(errors.New("x")))
}
