/* Copyright © 2025-2026 Mike Brown. All Rights Reserved.
 *
 * See LICENSE file at the root of this repository for license terms
 */
package knockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	DefaultAttempts = 5
	DefaultDelay    = 3 * time.Second
)

// OnExhaustion selects what happens once every attempt of a remote call
// has failed.
type OnExhaustion int

const (
	// Abort attempts a best-effort remote termination before failing.
	Abort OnExhaustion = iota
	// ReportAndExit fails without touching remote state, for calls made
	// before anything exists remotely.
	ReportAndExit
)

func (o OnExhaustion) String() string {
	if o == ReportAndExit {
		return "report-and-exit"
	}
	return "abort"
}

// Executor runs remote calls with bounded retries. A fixed pause follows
// every attempt except the last failed one so the host is never hit in a
// burst.
type Executor struct {
	attempts int
	delay    time.Duration
	clock    Clock
	log      logrus.FieldLogger

	abort      func(ctx context.Context) error
	terminated bool
}

func NewExecutor(attempts int, delay time.Duration, clock Clock,
	log logrus.FieldLogger) *Executor {

	if attempts < 1 {
		attempts = 1
	}
	return &Executor{
		attempts: attempts,
		delay:    delay,
		clock:    clock,
		log:      log,
	}
}

// SetAbort installs the remote termination used by Abort. It is set once
// the tournament exists remotely.
func (e *Executor) SetAbort(abort func(ctx context.Context) error) {
	e.abort = abort
}

// Terminate makes a single best-effort termination attempt. Failures are
// logged and otherwise ignored; later calls are no-ops.
func (e *Executor) Terminate(ctx context.Context) {
	if e.abort == nil || e.terminated {
		return
	}
	e.terminated = true

	e.log.Warn("Terminating tournament")
	if err := e.abort(context.WithoutCancel(ctx)); err != nil {
		e.log.WithError(err).Error("Failed to terminate tournament")
	}
}

// CallOption overrides the executor's retry policy for one call.
type CallOption func(*callPolicy)

type callPolicy struct {
	attempts int
	delay    time.Duration
}

// WithAttempts bounds a single call to n attempts.
func WithAttempts(n int) CallOption {
	return func(p *callPolicy) {
		if n >= 1 {
			p.attempts = n
		}
	}
}

// WithDelay sets the pause that follows each attempt of a single call.
func WithDelay(d time.Duration) CallOption {
	return func(p *callPolicy) {
		if d >= 0 {
			p.delay = d
		}
	}
}

func (e *Executor) policy(opts []CallOption) callPolicy {
	p := callPolicy{attempts: e.attempts, delay: e.delay}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// clockTimer drives backoff's waits through a Clock. Start blocks for the
// whole wait, which for a RealClock is interrupted by ctx.
type clockTimer struct {
	ctx   context.Context
	clock Clock
	c     chan time.Time
}

func newClockTimer(ctx context.Context, clock Clock) *clockTimer {
	return &clockTimer{ctx: ctx, clock: clock, c: make(chan time.Time, 1)}
}

func (t *clockTimer) Start(d time.Duration) {
	if err := t.clock.Sleep(t.ctx, d); err != nil {
		return
	}
	t.c <- t.clock.Now()
}

func (t *clockTimer) Stop() {}

func (t *clockTimer) C() <-chan time.Time {
	return t.c
}

// Run is Execute for calls without a result.
func (e *Executor) Run(ctx context.Context, name string, onExhaust OnExhaustion,
	op func(ctx context.Context) error, opts ...CallOption) error {

	_, err := Execute(ctx, e, name, onExhaust,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, op(ctx)
		}, opts...)
	return err
}

// Execute invokes op until it succeeds or the attempts are used up. The
// returned error wraps ErrRemoteExhausted on exhaustion, or the context's
// error on cancellation.
func Execute[T any](ctx context.Context, e *Executor, name string,
	onExhaust OnExhaustion, op func(ctx context.Context) (T, error),
	opts ...CallOption) (T, error) {

	p := e.policy(opts)
	var zero T
	var res T
	var cancelled error
	attempt := 0

	operation := func() error {
		attempt++
		r, err := op(ctx)
		if err == nil {
			res = r
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			cancelled = ctxErr
			return backoff.Permanent(ctxErr)
		}
		if errors.Is(err, context.Canceled) {
			cancelled = err
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		e.log.WithError(err).Warnf("%v: attempt %v/%v failed; retrying in %v",
			name, attempt, p.attempts, next)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(
		backoff.NewConstantBackOff(p.delay), uint64(p.attempts-1)), ctx)
	err := backoff.RetryNotifyWithTimer(operation, b, notify,
		newClockTimer(ctx, e.clock))
	if err == nil {
		e.log.Debugf("%v: succeeded; continuing in %v", name, p.delay)
		if serr := e.clock.Sleep(ctx, p.delay); serr != nil {
			return zero, serr
		}
		return res, nil
	}
	if cancelled != nil {
		return zero, cancelled
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, ctxErr
	}

	e.log.WithError(err).Errorf("%v: failed after %v attempts (%v)", name,
		attempt, onExhaust)
	if onExhaust == Abort {
		e.Terminate(ctx)
	}

	return zero, fmt.Errorf("%v: %w: %v", name, ErrRemoteExhausted, err)
}
