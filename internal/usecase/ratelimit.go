package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Vipul0052/Lifeline-v2/internal/core/port"
)

// AttemptLimiter enforces a sliding-window limit for one action category
// (login, signup, password reset). Keys are scoped with the limiter name so
// separate actions never share attempt budgets. Checking is split from
// recording: IsAllowed only inspects the window, the action wrapper records
// the attempt once the action is actually initiated.
//
// Store failures fail open: throttling is protective, not load-bearing, and
// an unreachable backend must not lock every client out.
type AttemptLimiter struct {
	name   string
	store  port.RateLimitStore
	max    int
	window time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewAttemptLimiter constructs a limiter for the named action.
func NewAttemptLimiter(name string, store port.RateLimitStore, maxAttempts int, window time.Duration, logger *zap.Logger) *AttemptLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if window <= 0 {
		window = time.Minute
	}

	return &AttemptLimiter{
		name:   name,
		store:  store,
		max:    maxAttempts,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (l *AttemptLimiter) WithClock(now func() time.Time) *AttemptLimiter {
	if now != nil {
		l.now = now
	}
	return l
}

// MaxAttempts exposes the configured ceiling.
func (l *AttemptLimiter) MaxAttempts() int {
	return l.max
}

// IsAllowed prunes expired attempts and reports whether the key is still
// under the ceiling. It does not record an attempt.
func (l *AttemptLimiter) IsAllowed(ctx context.Context, key string) bool {
	now := l.now()
	scoped := l.scope(key)

	if err := l.store.TrimWindow(ctx, scoped, l.window, now); err != nil {
		l.warn("trim window", key, err)
		return true
	}

	count, err := l.store.CountAttempts(ctx, scoped, l.window, now)
	if err != nil {
		l.warn("count attempts", key, err)
		return true
	}

	return count < l.max
}

// RecordAttempt appends the current timestamp to the key's record.
func (l *AttemptLimiter) RecordAttempt(ctx context.Context, key string) {
	if err := l.store.RecordAttempt(ctx, l.scope(key), l.now()); err != nil {
		l.warn("record attempt", key, err)
	}
}

// RemainingAttempts returns how many attempts are left in the window, floored at 0.
func (l *AttemptLimiter) RemainingAttempts(ctx context.Context, key string) int {
	count, err := l.store.CountAttempts(ctx, l.scope(key), l.window, l.now())
	if err != nil {
		l.warn("count attempts", key, err)
		return l.max
	}

	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// ResetAfter returns how long until the oldest in-window attempt falls
// outside the window, or 0 when no attempts are recorded.
func (l *AttemptLimiter) ResetAfter(ctx context.Context, key string) time.Duration {
	now := l.now()

	oldest, found, err := l.store.OldestAttempt(ctx, l.scope(key), l.window, now)
	if err != nil {
		l.warn("oldest attempt", key, err)
		return 0
	}
	if !found {
		return 0
	}

	reset := oldest.Add(l.window).Sub(now)
	if reset < 0 {
		return 0
	}
	return reset
}

// Clear drops the record for the key entirely.
func (l *AttemptLimiter) Clear(ctx context.Context, key string) {
	if err := l.store.ClearAttempts(ctx, l.scope(key)); err != nil {
		l.warn("clear attempts", key, err)
	}
}

func (l *AttemptLimiter) scope(key string) string {
	return fmt.Sprintf("%s:%s", l.name, key)
}

func (l *AttemptLimiter) warn(op, key string, err error) {
	l.logger.Warn("rate limit store failure",
		zap.String("limiter", l.name),
		zap.String("operation", op),
		zap.String("key", key),
		zap.Error(err),
	)
}
