package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// backoff produces capped exponential redial delays with jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	mult    float64
	jitter  float64

	mu      sync.Mutex
	current time.Duration
	rng     *rand.Rand
}

// newBackoff creates a backoff starting at initial and growing by mult
// up to max. A nil rng seeds one from the wall clock.
func newBackoff(initial, max time.Duration, mult float64, rng *rand.Rand) *backoff {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &backoff{
		initial: initial,
		max:     max,
		mult:    mult,
		jitter:  0.2,
		current: initial,
		rng:     rng,
	}
}

// retry runs dial until it succeeds or ctx is cancelled, sleeping the
// jittered backoff before each attempt.
func (b *backoff) retry(ctx context.Context, logger *zap.Logger, dial func(context.Context) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		delay := b.next()

		logger.Info("feed-reconnecting", zap.Duration("backoff", delay))
		ReconnectAttemptsTotal.Inc()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := dial(ctx); err != nil {
			logger.Warn("feed-reconnect-failed", zap.Error(err))
			ReconnectFailuresTotal.Inc()
			b.grow()
			continue
		}

		b.reset()
		logger.Info("feed-reconnected")

		return nil
	}
}

// next returns the current delay with jitter applied.
func (b *backoff) next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	scale := 1.0 + b.rng.Float64()*b.jitter

	return time.Duration(float64(b.current) * scale)
}

// grow advances the delay by the multiplier, capped at max.
func (b *backoff) grow() {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := time.Duration(float64(b.current) * b.mult)
	if next > b.max {
		next = b.max
	}
	b.current = next
}

// reset restores the initial delay after a successful dial.
func (b *backoff) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = b.initial
}
