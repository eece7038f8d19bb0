package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

// newTestRetry создаёт RetryManager со счётчиком «снов» вместо реального ожидания.
func newTestRetry(cfg RetryConfig, sleeps *int) *RetryManager {
	r := NewRetryManager(cfg)
	r.sleep = func(context.Context, time.Duration) error {
		*sleeps++
		return nil
	}
	return r
}

func TestRetry_SucceedsAfterTwoFailures(t *testing.T) {
	var sleeps int
	r := newTestRetry(RetryConfig{MaxAttempts: 3}, &sleeps)

	calls := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		if calls <= 2 {
			return errBoom
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if sleeps != 2 {
		t.Errorf("expected exactly 2 sleeps, got %d", sleeps)
	}
}

func TestRetry_ExhaustionReturnsLastError(t *testing.T) {
	var sleeps int
	r := newTestRetry(RetryConfig{MaxAttempts: 3}, &sleeps)

	calls := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		return errBoom
	})

	// Исходная ошибка последней попытки, без обёрток
	if !errors.Is(err, errBoom) {
		t.Errorf("expected boom, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if sleeps != 2 {
		t.Errorf("expected 2 sleeps (not after the last attempt), got %d", sleeps)
	}
}

func TestRetry_NonRetryablePropagatesImmediately(t *testing.T) {
	var sleeps int
	errFatal := errors.New("fatal")
	r := newTestRetry(RetryConfig{
		MaxAttempts: 5,
		Retryable:   func(err error) bool { return !errors.Is(err, errFatal) },
	}, &sleeps)

	calls := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		return errFatal
	})

	if !errors.Is(err, errFatal) {
		t.Errorf("expected fatal, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected single call, got %d", calls)
	}
	if sleeps != 0 {
		t.Errorf("expected no sleeps, got %d", sleeps)
	}
}

func TestRetry_ContextCancelNotRetried(t *testing.T) {
	var sleeps int
	r := newTestRetry(RetryConfig{MaxAttempts: 5}, &sleeps)

	calls := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		calls++
		return context.Canceled
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected single call, got %d", calls)
	}
}

func TestRetry_BackoffExponential(t *testing.T) {
	r := NewRetryManager(RetryConfig{
		BaseDelay:     time.Second,
		MaxDelay:      10 * time.Second,
		Factor:        2.0,
		DisableJitter: true,
	})

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // capped at max
		{5, 10 * time.Second}, // stays at max
	}

	for _, tt := range tests {
		if got := r.backoffDelay(tt.attempt); got != tt.expected {
			t.Errorf("attempt %d: expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestRetry_BackoffJitterBounds(t *testing.T) {
	r := NewRetryManager(RetryConfig{
		BaseDelay: time.Second,
		MaxDelay:  60 * time.Second,
		Factor:    2.0,
	})

	// Jitter сжимает задержку в [0.5, 1.0] от номинала
	for i := 0; i < 100; i++ {
		got := r.backoffDelay(2) // номинал 4s
		if got < 2*time.Second || got > 4*time.Second {
			t.Fatalf("jittered delay %v out of [2s, 4s]", got)
		}
	}
}

func TestRetryConfig_Defaults(t *testing.T) {
	cfg := RetryConfig{}.withDefaults()

	if cfg.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", cfg.MaxAttempts)
	}
	if cfg.BaseDelay != time.Second {
		t.Errorf("expected base delay 1s, got %v", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 60*time.Second {
		t.Errorf("expected max delay 60s, got %v", cfg.MaxDelay)
	}
	if cfg.Factor != 2.0 {
		t.Errorf("expected factor 2.0, got %f", cfg.Factor)
	}
}

func TestRetry_SleepRespectsContext(t *testing.T) {
	r := NewRetryManager(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Hour, // без отмены тест бы завис
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Execute(ctx, func(context.Context) error { return errBoom })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled from backoff sleep, got %v", err)
	}
}
