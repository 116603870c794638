package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/zsiec/framegate/internal/logger"
)

// Backoff yields exponentially growing delays with ±20% jitter
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxRetries   int // 0 retries forever

	mu      sync.Mutex
	current time.Duration
	retries int
}

// NewBackoff creates an exponential backoff
func NewBackoff(initial, max time.Duration, multiplier float64, maxRetries int) *Backoff {
	return &Backoff{
		InitialDelay: initial,
		MaxDelay:     max,
		Multiplier:   multiplier,
		MaxRetries:   maxRetries,
		current:      initial,
	}
}

// NextDelay returns the delay before the next attempt, or false once the
// retries are used up
func (b *Backoff) NextDelay() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.MaxRetries > 0 && b.retries >= b.MaxRetries {
		return 0, false
	}

	delay := time.Duration(float64(b.current) * (0.8 + 0.4*rand.Float64()))

	b.current = time.Duration(float64(b.current) * b.Multiplier)
	if b.current > b.MaxDelay {
		b.current = b.MaxDelay
	}
	b.retries++

	return delay, true
}

// Reset restores the initial delay
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.InitialDelay
	b.retries = 0
}

// retry calls fn until it succeeds, the backoff gives up or ctx ends. The
// backoff is reset on return.
func retry(ctx context.Context, b *Backoff, log logger.Logger, fn func() error) error {
	defer b.Reset()

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		delay, ok := b.NextDelay()
		if !ok {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}
		log.WithError(err).WithFields(logger.Fields{
			"attempt":  attempt,
			"retry_in": delay,
		}).Warn("Attempt failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
