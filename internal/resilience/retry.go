package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Default retry configuration values.
const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 60 * time.Second
	defaultFactor      = 2.0
)

// RetryConfig — конфигурация повторов.
type RetryConfig struct {
	// MaxAttempts — общее число попыток, включая первую (default: 3).
	MaxAttempts int

	// BaseDelay — задержка перед первым повтором (default: 1s).
	BaseDelay time.Duration

	// MaxDelay — потолок задержки (default: 60s).
	MaxDelay time.Duration

	// Factor — множитель экспоненциального роста задержки (default: 2.0).
	Factor float64

	// DisableJitter отключает случайное сжатие задержки.
	// По умолчанию задержка умножается на uniform [0.5, 1.0],
	// чтобы повторяющие клиенты не били по зависимости синхронно.
	DisableJitter bool

	// Retryable классифицирует ошибки: true — повторять.
	// nil — повторяются все ошибки, кроме отмены контекста.
	Retryable func(error) bool
}

// withDefaults заполняет нулевые поля значениями по умолчанию.
func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.Factor <= 0 {
		c.Factor = defaultFactor
	}
	return c
}

// RetryManager выполняет операцию с ограниченным числом повторов
// и экспоненциальным backoff.
type RetryManager struct {
	config RetryConfig

	// sleep — ожидание между попытками; подменяется в тестах.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryManager создаёт RetryManager.
func NewRetryManager(config RetryConfig) *RetryManager {
	return &RetryManager{
		config: config.withDefaults(),
		sleep:  sleepCtx,
	}
}

// Execute выполняет fn до первого успеха, но не более MaxAttempts раз.
//
// Неповторяемая ошибка (по классификатору) уходит вызывающей стороне
// сразу, не расходуя попытки. После последней неудачной попытки
// возвращается её ошибка без обёрток — метаданные о числе попыток
// остаются в логах и метриках, не в ошибке.
func (r *RetryManager) Execute(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !r.retryable(lastErr) {
			return lastErr
		}

		if attempt == r.config.MaxAttempts-1 {
			break
		}

		if err := r.sleep(ctx, r.backoffDelay(attempt)); err != nil {
			return err
		}
	}

	return lastErr
}

// retryable сообщает, стоит ли повторять после err.
func (r *RetryManager) retryable(err error) bool {
	// Отмену контекста повторять бессмысленно в любом случае.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if r.config.Retryable == nil {
		return true
	}
	return r.config.Retryable(err)
}

// backoffDelay считает задержку перед повтором номер attempt (с нуля):
// min(base · factor^attempt, max), при включённом jitter —
// умноженную на uniform [0.5, 1.0].
func (r *RetryManager) backoffDelay(attempt int) time.Duration {
	delay := float64(r.config.BaseDelay) * math.Pow(r.config.Factor, float64(attempt))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	if !r.config.DisableJitter {
		delay *= 0.5 + rand.Float64()*0.5
	}

	return time.Duration(delay)
}

// sleepCtx — ожидание с учётом отмены контекста.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
