package queue

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff computes capped exponential delays with jitter for retry loops.
type Backoff struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       float64 // fraction of the delay randomized, 0..1
}

// DefaultBackoff returns the policy used by consumer-side retries:
// 500ms initial delay, 2x multiplier, 30s cap, 20% jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 500 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     30 * time.Second,
		Jitter:       0.2,
	}
}

// Delay returns the backoff delay for the given attempt number (1-indexed).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt-1))
	if delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if b.Jitter > 0 {
		spread := delay * b.Jitter
		delay = delay - spread/2 + rand.Float64()*spread
	}
	return time.Duration(delay)
}

// Sleep blocks for the attempt's delay or until the context is canceled.
// Returns the context error on cancellation.
func (b Backoff) Sleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.Delay(attempt))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
