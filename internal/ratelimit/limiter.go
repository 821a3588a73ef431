// Package ratelimit is a generic fixed-window attempt counter shared by all
// security-sensitive operations. Counters live in an injected store keyed by
// (operation kind, client key) with per-key expiry; the window is fixed from
// the first attempt, it does not slide.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultWindow is how long one attempt window lasts.
	DefaultWindow = time.Hour
	// DefaultThreshold is the number of attempts admitted per window.
	DefaultThreshold = 5

	keyPrefix = "attempts:"
)

// CounterStore is the ephemeral attempt-counter table. Incr must be an
// atomic read-modify-write; the TTL takes effect only when the counter is
// created, so later increments never extend the window.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
}

// Limiter applies one policy (window, threshold) over a counter store.
type Limiter struct {
	store     CounterStore
	window    time.Duration
	threshold int64
}

// New creates a limiter. Zero window or threshold fall back to the defaults.
func New(store CounterStore, window time.Duration, threshold int64) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Limiter{store: store, window: window, threshold: threshold}
}

// Record counts one attempt and returns the total inside the current window.
// Rejected attempts are recorded too, so alternating failures and retries
// cannot re-roll the limiter.
func (l *Limiter) Record(ctx context.Context, kind, clientKey string) (int64, error) {
	return l.store.Incr(ctx, l.key(kind, clientKey), l.window)
}

// Check reports whether the next attempt would be admitted, without
// recording anything.
func (l *Limiter) Check(ctx context.Context, kind, clientKey string) (bool, int64, error) {
	attempts, err := l.store.Get(ctx, l.key(kind, clientKey))
	if err != nil {
		return false, 0, err
	}
	return attempts < l.threshold, attempts, nil
}

// Allow records the attempt and decides admission from the returned count.
// Increment-then-compare: two racing attempts can never both be admitted past
// the threshold the way a check-then-act pair could.
func (l *Limiter) Allow(ctx context.Context, kind, clientKey string) (bool, int64, error) {
	attempts, err := l.Record(ctx, kind, clientKey)
	if err != nil {
		return false, 0, err
	}
	return attempts <= l.threshold, attempts, nil
}

func (l *Limiter) key(kind, clientKey string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, kind, clientKey)
}
