package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		requestsPerSecond float64
		want              float64
	}{
		{name: "unlimited_zero", requestsPerSecond: 0, want: 0},
		{name: "unlimited_negative", requestsPerSecond: -1, want: 0},
		{name: "one_per_second", requestsPerSecond: 1, want: 1},
		{name: "fractional", requestsPerSecond: 0.5, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := New(tt.requestsPerSecond).Limit(); got != tt.want {
				t.Errorf("Limit() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestLimiterAllow(t *testing.T) {
	t.Parallel()

	unlimited := New(0)
	for i := range 10 {
		if !unlimited.Allow() {
			t.Fatalf("unlimited limiter denied request %d", i)
		}
	}

	limited := New(1)
	if !limited.Allow() {
		t.Fatal("first request should be allowed")
	}
	if limited.Allow() {
		t.Fatal("second immediate request should be denied")
	}
}

func TestLimiterWait(t *testing.T) {
	t.Parallel()

	t.Run("paces requests", func(t *testing.T) {
		t.Parallel()

		limiter := New(20)
		ctx := context.Background()

		start := time.Now()
		for range 3 {
			if err := limiter.Wait(ctx); err != nil {
				t.Fatalf("Wait() error = %v", err)
			}
		}
		if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
			t.Fatalf("three requests at 20/s took %v, want at least ~100ms", elapsed)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		t.Parallel()

		limiter := New(0.1)
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("first Wait() error = %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := limiter.Wait(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("Wait() error = %v, want context.Canceled", err)
		}
	})

	t.Run("nil limiter", func(t *testing.T) {
		t.Parallel()

		var limiter *Limiter
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if !limiter.Allow() || limiter.Limit() != 0 {
			t.Fatal("nil limiter should be unlimited")
		}
	})
}
