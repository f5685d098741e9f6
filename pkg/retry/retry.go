// Package retry runs remote calls under a bounded retry policy. Rate-limit
// pauses go through a Gate shared by every caller in the process, so one
// throttled worker holds back all of them.
package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts   = 3
	DefaultRateLimitWait = 10 * time.Second
	DefaultTransientWait = 5 * time.Second
	DefaultTimeout       = 30 * time.Second
)

// ErrExhausted is returned once every attempt has failed.
var ErrExhausted = eris.New("retries exhausted")

// RateLimitError marks a throttled call.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	if e.Err == nil {
		return "rate limited"
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// RateLimited wraps err as a rate-limit signal.
func RateLimited(err error) error {
	return &RateLimitError{Err: err}
}

// IsRateLimited reports whether err carries a rate-limit signal.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Gate is a process-wide "not before" instant.
type Gate struct {
	mu    sync.Mutex
	until time.Time
	now   func() time.Time
}

// NewGate returns a gate reading the given clock; nil means time.Now.
func NewGate(now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{now: now}
}

// Hold pushes the gate at least d into the future.
func (g *Gate) Hold(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if until := g.now().Add(d); until.After(g.until) {
		g.until = until
	}
}

// Remaining is how long callers still have to wait.
func (g *Gate) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if d := g.until.Sub(g.now()); d > 0 {
		return d
	}
	return 0
}

// Wait blocks until the gate opens.
func (g *Gate) Wait(ctx context.Context, sleep Sleeper) error {
	if d := g.Remaining(); d > 0 {
		return sleep(ctx, d)
	}
	return nil
}

// Policy bounds how a single remote call is retried.
type Policy struct {
	MaxAttempts   int
	RateLimitWait time.Duration
	TransientWait time.Duration
	Timeout       time.Duration
	Sleep         Sleeper
	Gate          *Gate
	Logger        *zap.Logger
}

// NewPolicy returns the default policy bound to gate.
func NewPolicy(gate *Gate, logger *zap.Logger) *Policy {
	if gate == nil {
		gate = NewGate(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Policy{
		MaxAttempts:   DefaultMaxAttempts,
		RateLimitWait: DefaultRateLimitWait,
		TransientWait: DefaultTransientWait,
		Timeout:       DefaultTimeout,
		Sleep:         Sleep,
		Gate:          gate,
		Logger:        logger,
	}
}

// Do calls fn until it succeeds or MaxAttempts calls have failed. Rate-limit
// failures wait RateLimitWait, doubling each time; any other failure waits
// TransientWait. No wait follows the final attempt.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	gate := p.Gate
	if gate == nil {
		gate = NewGate(nil)
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	wait := p.RateLimitWait
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := gate.Wait(ctx, sleep); err != nil {
			return eris.Wrapf(err, "%s: waiting for rate-limit gate", op)
		}

		err := p.call(ctx, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return eris.Wrapf(ctx.Err(), "%s", op)
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		if IsRateLimited(err) {
			logger.Warn("rate limited, backing off",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
			)
			gate.Hold(wait)
			if err := gate.Wait(ctx, sleep); err != nil {
				return eris.Wrapf(err, "%s: backing off", op)
			}
			wait *= 2
			continue
		}

		logger.Warn("call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", p.TransientWait),
			zap.Error(err),
		)
		if err := sleep(ctx, p.TransientWait); err != nil {
			return eris.Wrapf(err, "%s: waiting to retry", op)
		}
	}

	return eris.Wrapf(ErrExhausted, "%s after %d attempts: %v", op, attempts, lastErr)
}

func (p *Policy) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(callCtx)
}
