package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/framegate/internal/logger"
)

func TestBackoff(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 300*time.Millisecond, 2, 3)

	expected := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond}
	for i, want := range expected {
		delay, ok := b.NextDelay()
		require.True(t, ok, "attempt %d", i)
		assert.InDelta(t, float64(want), float64(delay), float64(want)*0.2)
	}

	_, ok := b.NextDelay()
	assert.False(t, ok)

	b.Reset()
	delay, ok := b.NextDelay()
	assert.True(t, ok)
	assert.InDelta(t, float64(100*time.Millisecond), float64(delay), float64(20*time.Millisecond))
}

func TestRetry(t *testing.T) {
	log := logger.NewNullLogger()

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := retry(context.Background(), NewBackoff(time.Millisecond, time.Millisecond, 1, 5), log, func() error {
			calls++
			if calls < 3 {
				return errors.New("not yet")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		sentinel := errors.New("still broken")
		calls := 0
		err := retry(context.Background(), NewBackoff(time.Millisecond, time.Millisecond, 1, 2), log, func() error {
			calls++
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := retry(ctx, NewBackoff(time.Hour, time.Hour, 1, 0), log, func() error {
			return errors.New("fail")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
