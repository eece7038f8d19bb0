package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BreakerState — состояние circuit breaker'а.
//
// Жизненный цикл:
//
//	CLOSED → OPEN (failure_threshold подряд неудач)
//	OPEN → HALF_OPEN (истёк recovery timeout, пропускаем пробный вызов)
//	HALF_OPEN → CLOSED (success_threshold успехов)
//	HALF_OPEN → OPEN (любая неудача)
type BreakerState string

const (
	// StateClosed — вызовы проходят свободно.
	StateClosed BreakerState = "CLOSED"

	// StateOpen — вызовы отклоняются без выполнения.
	StateOpen BreakerState = "OPEN"

	// StateHalfOpen — пробные вызовы после recovery timeout.
	StateHalfOpen BreakerState = "HALF_OPEN"
)

// Default breaker configuration values.
const (
	defaultFailureThreshold = 5
	defaultRecoveryTimeout  = 60 * time.Second
	defaultSuccessThreshold = 3
	defaultMonitorWindow    = 300 * time.Second
	defaultMinRequestVolume = 20
)

// BreakerConfig — конфигурация circuit breaker'а.
type BreakerConfig struct {
	// FailureThreshold — число подряд идущих неудач до перехода в OPEN (default: 5).
	FailureThreshold int

	// RecoveryTimeout — время в OPEN до пробного вызова (default: 60s).
	RecoveryTimeout time.Duration

	// SuccessThreshold — число успехов в HALF_OPEN до возврата в CLOSED (default: 3).
	SuccessThreshold int

	// MonitorWindow — окно наблюдения для отчётов о здоровье (default: 300s).
	MonitorWindow time.Duration

	// MinRequestVolume — минимальный объём запросов, ниже которого
	// статистика окна не считается показательной (default: 20).
	MinRequestVolume int
}

// withDefaults заполняет нулевые поля значениями по умолчанию.
func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = defaultRecoveryTimeout
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = defaultSuccessThreshold
	}
	if c.MonitorWindow <= 0 {
		c.MonitorWindow = defaultMonitorWindow
	}
	if c.MinRequestVolume <= 0 {
		c.MinRequestVolume = defaultMinRequestVolume
	}
	return c
}

// CircuitBreaker — именованный автомат защиты одной операции.
//
// Создаётся лениво реестром Manager'а при первом обращении и живёт
// до конца процесса; сбрасывается только успешным переходом
// HALF_OPEN → CLOSED. Все переходы и счётчики — под мьютексом.
type CircuitBreaker struct {
	name   string
	config BreakerConfig

	mu              sync.Mutex
	state           BreakerState
	failureCount    int
	successCount    int
	lastFailureTime time.Time

	// now — источник времени; подменяется в тестах.
	now func() time.Time
}

// NewCircuitBreaker создаёт breaker в состоянии CLOSED.
func NewCircuitBreaker(name string, config BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:   name,
		config: config.withDefaults(),
		state:  StateClosed,
		now:    time.Now,
	}
}

// Call выполняет fn под защитой breaker'а.
//
// В OPEN вызов отклоняется с ErrCircuitOpen — если только не истёк
// recovery timeout: тогда breaker переходит в HALF_OPEN и пропускает
// пробный вызов. Ошибка fn фиксируется и возвращается без изменений.
// fn выполняется вне мьютекса: breaker не сериализует сами вызовы.
func (b *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil {
		b.onFailure()
		return err
	}

	b.onSuccess()
	return nil
}

// beforeCall проверяет допустимость вызова и выполняет переход
// OPEN → HALF_OPEN по истечении recovery timeout.
func (b *CircuitBreaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}

	if b.now().Sub(b.lastFailureTime) >= b.config.RecoveryTimeout {
		b.state = StateHalfOpen
		b.successCount = 0
		return nil
	}

	return fmt.Errorf("%w: %s", ErrCircuitOpen, b.name)
}

// onSuccess фиксирует успешный вызов.
func (b *CircuitBreaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			b.state = StateClosed
			b.failureCount = 0
			b.successCount = 0
		}
	case StateClosed:
		// Успех обрывает серию подряд идущих неудач.
		b.failureCount = 0
	}
}

// onFailure фиксирует неудачный вызов.
func (b *CircuitBreaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureTime = b.now()

	switch b.state {
	case StateHalfOpen:
		// Неудача пробного вызова — сразу обратно в OPEN.
		b.state = StateOpen
		b.successCount = 0
	case StateClosed:
		if b.failureCount >= b.config.FailureThreshold {
			b.state = StateOpen
		}
	}
}

// State возвращает текущее состояние.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name возвращает имя защищаемой операции.
func (b *CircuitBreaker) Name() string {
	return b.name
}

// Counters возвращает счётчики неудач и успехов (для отчётов).
func (b *CircuitBreaker) Counters() (failures, successes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount, b.successCount
}
