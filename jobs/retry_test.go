package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		return nil
	}, 3, time.Millisecond, 0)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, 5, time.Millisecond, 0)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_ExhaustsAttempts(t *testing.T) {
	transient := errors.New("still broken")
	calls := 0
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		return transient
	}, 3, time.Millisecond, 0)

	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	terminal := errors.New("bad input")
	err := RetryWithBackoff(context.Background(), func() error {
		calls++
		return Permanent(terminal)
	}, 5, time.Millisecond, 0)

	assert.ErrorIs(t, err, terminal)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_InvalidMaxAttempts(t *testing.T) {
	err := RetryWithBackoff(context.Background(), func() error { return nil }, 0, time.Millisecond, 0)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, func() error { return errors.New("never runs") }, 3, time.Millisecond, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithBackoff_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := RetryWithBackoff(ctx, func() error {
		calls++
		return errors.New("transient")
	}, 10, time.Second, 0)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPermanent_NilPassthrough(t *testing.T) {
	assert.NoError(t, Permanent(nil))
	assert.False(t, IsPermanent(nil))
}

func TestPermanent_PreservesWrappedError(t *testing.T) {
	sentinel := errors.New("sentinel")
	wrapped := Permanent(sentinel)

	assert.ErrorIs(t, wrapped, sentinel)
	assert.Equal(t, sentinel.Error(), wrapped.Error())
}
