package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failing(context.Context) error { return errBoom }
func succeeding(context.Context) error { return nil }

func newTestBreaker() *CircuitBreaker {
	return NewCircuitBreaker("test-op", BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 3,
	})
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := b.Call(ctx, failing); !errors.Is(err, errBoom) {
			t.Fatalf("attempt %d: expected boom, got %v", i, err)
		}
	}

	if b.State() != StateOpen {
		t.Errorf("expected OPEN after 5 failures, got %s", b.State())
	}
}

func TestBreaker_RejectsWithoutInvoking(t *testing.T) {
	b := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		b.Call(ctx, failing)
	}

	invoked := false
	err := b.Call(ctx, func(context.Context) error {
		invoked = true
		return nil
	})

	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if invoked {
		t.Error("wrapped function must not be invoked while OPEN")
	}
}

func TestBreaker_HalfOpenProbeAfterTimeout(t *testing.T) {
	b := newTestBreaker()
	ctx := context.Background()

	// Управляемые часы
	current := time.Now()
	b.now = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		b.Call(ctx, failing)
	}
	if b.State() != StateOpen {
		t.Fatalf("expected OPEN, got %s", b.State())
	}

	// До истечения recovery timeout — отказ
	if err := b.Call(ctx, succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected rejection before timeout, got %v", err)
	}

	// После истечения — пробный вызов проходит
	current = current.Add(61 * time.Second)
	if err := b.Call(ctx, succeeding); err != nil {
		t.Fatalf("expected probe to pass, got %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Errorf("expected HALF_OPEN, got %s", b.State())
	}
}

func TestBreaker_ClosesAfterSuccessThreshold(t *testing.T) {
	b := newTestBreaker()
	ctx := context.Background()

	current := time.Now()
	b.now = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		b.Call(ctx, failing)
	}
	current = current.Add(61 * time.Second)

	// 3 успеха подряд — возврат в CLOSED со сброшенными счётчиками
	for i := 0; i < 3; i++ {
		if err := b.Call(ctx, succeeding); err != nil {
			t.Fatalf("probe %d failed: %v", i, err)
		}
	}

	if b.State() != StateClosed {
		t.Errorf("expected CLOSED, got %s", b.State())
	}
	if failures, _ := b.Counters(); failures != 0 {
		t.Errorf("expected failure count reset to 0, got %d", failures)
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := newTestBreaker()
	ctx := context.Background()

	current := time.Now()
	b.now = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		b.Call(ctx, failing)
	}
	current = current.Add(61 * time.Second)

	// Пробный вызов проходит, но падает — сразу обратно в OPEN
	if err := b.Call(ctx, failing); !errors.Is(err, errBoom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if b.State() != StateOpen {
		t.Errorf("expected OPEN after half-open failure, got %s", b.State())
	}

	// И снова отказ без выполнения
	if err := b.Call(ctx, succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected rejection, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailureStreak(t *testing.T) {
	b := newTestBreaker()
	ctx := context.Background()

	// 4 неудачи, успех, ещё 4 неудачи — порог подряд идущих не достигнут
	for i := 0; i < 4; i++ {
		b.Call(ctx, failing)
	}
	b.Call(ctx, succeeding)
	for i := 0; i < 4; i++ {
		b.Call(ctx, failing)
	}

	if b.State() != StateClosed {
		t.Errorf("expected CLOSED, got %s", b.State())
	}
}

func TestBreakerConfig_Defaults(t *testing.T) {
	cfg := BreakerConfig{}.withDefaults()

	if cfg.FailureThreshold != 5 {
		t.Errorf("expected failure threshold 5, got %d", cfg.FailureThreshold)
	}
	if cfg.RecoveryTimeout != 60*time.Second {
		t.Errorf("expected recovery timeout 60s, got %v", cfg.RecoveryTimeout)
	}
	if cfg.SuccessThreshold != 3 {
		t.Errorf("expected success threshold 3, got %d", cfg.SuccessThreshold)
	}
	if cfg.MonitorWindow != 300*time.Second {
		t.Errorf("expected monitor window 300s, got %v", cfg.MonitorWindow)
	}
	if cfg.MinRequestVolume != 20 {
		t.Errorf("expected min request volume 20, got %d", cfg.MinRequestVolume)
	}
}
