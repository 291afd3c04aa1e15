package feed

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestBackoff_GrowthIsCappedAtMax(t *testing.T) {
	b := newBackoff(time.Second, 8*time.Second, 2.0, rand.New(rand.NewSource(1)))
	b.jitter = 0

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}

	for i, w := range want {
		if got := b.next(); got != w {
			t.Errorf("step %d: expected %s, got %s", i, w, got)
		}
		b.grow()
	}
}

func TestBackoff_ResetRestoresInitialDelay(t *testing.T) {
	b := newBackoff(time.Second, 30*time.Second, 2.0, rand.New(rand.NewSource(1)))
	b.jitter = 0

	b.grow()
	b.grow()
	if got := b.next(); got != 4*time.Second {
		t.Fatalf("expected 4s after two growths, got %s", got)
	}

	b.reset()
	if got := b.next(); got != time.Second {
		t.Errorf("expected initial delay after reset, got %s", got)
	}
}

func TestBackoff_JitterStaysWithinBound(t *testing.T) {
	b := newBackoff(time.Second, 30*time.Second, 2.0, rand.New(rand.NewSource(42)))

	for i := 0; i < 100; i++ {
		got := b.next()
		if got < time.Second || got > 1200*time.Millisecond {
			t.Fatalf("iteration %d: jittered delay %s outside [1s, 1.2s]", i, got)
		}
	}
}

func TestBackoff_RetryStopsOnContextCancel(t *testing.T) {
	b := newBackoff(time.Millisecond, 8*time.Millisecond, 2.0, rand.New(rand.NewSource(1)))

	attempts := 0
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dial := func(context.Context) error {
		attempts++
		if attempts >= 3 {
			cancel()
		}
		return context.DeadlineExceeded
	}

	err := b.retry(ctx, zaptest.NewLogger(t), dial)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts < 3 {
		t.Errorf("expected at least 3 dial attempts, got %d", attempts)
	}
}

func TestBackoff_RetryResetsAfterSuccess(t *testing.T) {
	b := newBackoff(time.Millisecond, 8*time.Millisecond, 2.0, rand.New(rand.NewSource(1)))
	b.jitter = 0

	failures := 0
	dial := func(context.Context) error {
		if failures < 2 {
			failures++
			return context.DeadlineExceeded
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.retry(ctx, zaptest.NewLogger(t), dial); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := b.next(); got != time.Millisecond {
		t.Errorf("expected backoff reset to initial delay, got %s", got)
	}
}
