package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}

func newFakeClock() *fakeClock {
	return &fakeClock{at: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestLimiterAllow(t *testing.T) {
	ctx := context.Background()

	t.Run("admits five then rejects the sixth", func(t *testing.T) {
		l := New(NewMemoryStore(newFakeClock()), 0, 0)
		for i := 1; i <= 5; i++ {
			ok, attempts, err := l.Allow(ctx, "password_reset", "1.2.3.4")
			require.NoError(t, err)
			assert.True(t, ok, "attempt %d should be admitted", i)
			assert.Equal(t, int64(i), attempts)
		}
		ok, attempts, err := l.Allow(ctx, "password_reset", "1.2.3.4")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int64(6), attempts)
	})

	t.Run("window does not slide", func(t *testing.T) {
		clock := newFakeClock()
		l := New(NewMemoryStore(clock), 0, 0)

		// Fill the window, spacing the attempts out. The window is anchored at
		// the first attempt, so later attempts must not extend it.
		for i := 0; i < 6; i++ {
			l.Record(ctx, "password_reset", "1.2.3.4")
			clock.Advance(5 * time.Minute)
		}
		ok, _, err := l.Allow(ctx, "password_reset", "1.2.3.4")
		require.NoError(t, err)
		assert.False(t, ok)

		// One hour after the first attempt the counter has expired.
		clock.Advance(time.Hour)
		ok, attempts, err := l.Allow(ctx, "password_reset", "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(1), attempts)
	})

	t.Run("kinds and clients are isolated", func(t *testing.T) {
		l := New(NewMemoryStore(newFakeClock()), 0, 0)
		for i := 0; i < 6; i++ {
			l.Record(ctx, "password_reset", "1.2.3.4")
		}

		ok, _, err := l.Allow(ctx, "security_answer", "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, _, err = l.Allow(ctx, "password_reset", "5.6.7.8")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("check is read only", func(t *testing.T) {
		l := New(NewMemoryStore(newFakeClock()), 0, 0)
		l.Record(ctx, "password_reset", "1.2.3.4")

		for i := 0; i < 10; i++ {
			ok, attempts, err := l.Check(ctx, "password_reset", "1.2.3.4")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, int64(1), attempts)
		}
	})
}

func TestLimiterConcurrentAdmission(t *testing.T) {
	ctx := context.Background()
	l := New(NewMemoryStore(newFakeClock()), 0, 0)

	const n = 40
	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := l.Allow(ctx, "password_reset", "1.2.3.4")
			require.NoError(t, err)
			if ok {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	// Every attempt is counted, and admission never exceeds the threshold no
	// matter how the goroutines interleave.
	total, err := l.store.Get(ctx, l.key("password_reset", "1.2.3.4"))
	require.NoError(t, err)
	assert.Equal(t, int64(n), total)
	assert.Equal(t, int64(DefaultThreshold), admitted)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStore(clock)

	n, err := s.Incr(ctx, "attempts:x:1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	clock.Advance(59 * time.Minute)
	n, err = s.Incr(ctx, "attempts:x:1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Past the original expiry the counter resets, even though the second
	// increment happened later.
	clock.Advance(time.Minute)
	n, err = s.Incr(ctx, "attempts:x:1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.Get(ctx, "attempts:x:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}
