package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/SmakGames/Companion/internal/clockx"
)

type memCounter struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is an in-process counter store with the same fixed-window
// semantics as RedisStore. Used in tests and as a degraded-mode fallback
// when Redis is unavailable.
type MemoryStore struct {
	clock clockx.Clock

	mu       sync.Mutex
	counters map[string]*memCounter
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(clock clockx.Clock) *MemoryStore {
	return &MemoryStore{clock: clock, counters: make(map[string]*memCounter)}
}

func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	c, ok := s.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		// Expired counters reset to zero rather than decaying gradually.
		c = &memCounter{expiresAt: now.Add(ttl)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || !s.clock.Now().Before(c.expiresAt) {
		return 0, nil
	}
	return c.count, nil
}
