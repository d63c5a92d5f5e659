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

func TestAcquire_BurstThenThrottle(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 1.0, BurstSize: 1})

	// First token is available immediately.
	err := l.Acquire(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)

	// Second token needs ~1s of refill; a short timeout must fail fast.
	start := time.Now()
	err = l.Acquire(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrRateLimitExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAcquire_AdmissionBound(t *testing.T) {
	// 20 tokens/s, burst 2, over 250ms: at most burst + rate*window tokens.
	l := NewLimiter(Config{RequestsPerSecond: 20.0, BurstSize: 2})

	var admitted atomic.Int64
	var wg sync.WaitGroup
	deadline := time.Now().Add(250 * time.Millisecond)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				if l.Allow() {
					admitted.Add(1)
				}
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	// 2 burst + 20/s * 0.25s = 7, with slack for scheduling jitter.
	assert.LessOrEqual(t, admitted.Load(), int64(9))
	assert.GreaterOrEqual(t, admitted.Load(), int64(2))
}

func TestAcquire_ContextCancellation(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 1.0, BurstSize: 1})
	require.True(t, l.Allow()) // drain the bucket

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := l.Acquire(ctx, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquire_NoTimeout(t *testing.T) {
	l := NewLimiter(Config{RequestsPerSecond: 100.0, BurstSize: 1})

	// Zero timeout means wait as long as the context allows.
	for i := 0; i < 3; i++ {
		err := l.Acquire(context.Background(), 0)
		require.NoError(t, err)
	}
}

func TestNewLimiter_Defaults(t *testing.T) {
	l := NewLimiter(Config{})

	// One immediate token, matching DefaultConfig.
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}
