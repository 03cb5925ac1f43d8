package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Factor:       2.0,
	}
}

func TestDo(t *testing.T) {
	t.Run("succeeds first attempt", func(t *testing.T) {
		calls := 0
		result := Do(context.Background(), fastConfig(3), func() error {
			calls++
			return nil
		})

		assert.Equal(t, 1, result.Attempts)
		assert.NoError(t, result.Err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries until success", func(t *testing.T) {
		calls := 0
		result := Do(context.Background(), fastConfig(5), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})

		assert.Equal(t, 3, result.Attempts)
		assert.NoError(t, result.Err)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		failure := errors.New("still broken")
		result := Do(context.Background(), fastConfig(3), func() error {
			return failure
		})

		assert.Equal(t, 3, result.Attempts)
		assert.ErrorIs(t, result.Err, failure)
	})

	t.Run("permanent error stops immediately", func(t *testing.T) {
		calls := 0
		bad := errors.New("bad request")
		result := Do(context.Background(), fastConfig(5), func() error {
			calls++
			return Permanent(bad)
		})

		assert.Equal(t, 1, calls)
		assert.ErrorIs(t, result.Err, bad)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := Do(ctx, fastConfig(3), func() error {
			return errors.New("never reached")
		})

		assert.ErrorIs(t, result.Err, context.Canceled)
	})
}

func TestDoWithValue(t *testing.T) {
	calls := 0
	value, result := DoWithValue(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})

	require.NoError(t, result.Err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, 2, result.Attempts)
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	wrapped := Permanent(errors.New("nope"))
	assert.True(t, IsPermanent(wrapped))

	plain := errors.New("maybe")
	assert.False(t, IsPermanent(plain))

	// Permanence survives further wrapping.
	assert.True(t, IsPermanent(errors.Join(errors.New("outer"), wrapped)))
}

func TestBackoff(t *testing.T) {
	base := time.Second
	cap := 300 * time.Second

	assert.Equal(t, 1*time.Second, Backoff(1, base, cap, 2.0))
	assert.Equal(t, 2*time.Second, Backoff(2, base, cap, 2.0))
	assert.Equal(t, 4*time.Second, Backoff(3, base, cap, 2.0))
	assert.Equal(t, 16*time.Second, Backoff(5, base, cap, 2.0))

	// Capped once the exponent exceeds the ceiling.
	assert.Equal(t, cap, Backoff(20, base, cap, 2.0))

	// Attempt floor.
	assert.Equal(t, 1*time.Second, Backoff(0, base, cap, 2.0))
}

func TestDelayJitterBounds(t *testing.T) {
	base := time.Second
	cap := 300 * time.Second

	for i := 0; i < 200; i++ {
		d := Delay(3, base, cap, 2.0, 0.1)
		assert.GreaterOrEqual(t, d, time.Duration(float64(4*time.Second)*0.9))
		assert.LessOrEqual(t, d, time.Duration(float64(4*time.Second)*1.1))
	}

	// Zero fraction is deterministic.
	assert.Equal(t, 4*time.Second, Delay(3, base, cap, 2.0, 0))
}
