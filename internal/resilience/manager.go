package resilience

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// OverallHealth — агрегированное здоровье всех соединений.
const (
	OverallHealthy   = "healthy"
	OverallDegraded  = "degraded"
	OverallUnhealthy = "unhealthy"
)

// Manager — фасад отказоустойчивости: реестр circuit breaker'ов,
// повторы с backoff и монитор соединений за одним вызовом Execute.
//
// Один Manager на процесс, создаётся явно и передаётся зависимостям
// через конструкторы. Breaker'ы и метрики соединений живут,
// пока жив Manager.
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker

	monitor *ConnectionMonitor
	logger  *slog.Logger
}

// Config — конфигурация Manager.
type Config struct {
	// Logger — логгер (опционально; если nil — slog.Default()).
	Logger *slog.Logger
}

// NewManager создаёт Manager с пустым реестром breaker'ов.
func NewManager(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		breakers: make(map[string]*CircuitBreaker),
		monitor:  NewConnectionMonitor(),
		logger:   logger,
	}
}

// CircuitBreaker возвращает breaker для операции name, создавая его
// при первом обращении. Конфигурация применяется только при создании:
// повторные вызовы с другим config возвращают существующий breaker.
func (m *Manager) CircuitBreaker(name string, config BreakerConfig) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.breakers[name]; ok {
		return b
	}

	b := NewCircuitBreaker(name, config)
	m.breakers[name] = b
	return b
}

// Monitor возвращает монитор соединений.
func (m *Manager) Monitor() *ConnectionMonitor {
	return m.monitor
}

// operationOptions — настройки одного Execute.
type operationOptions struct {
	breakerConfig BreakerConfig
	retryConfig   RetryConfig
}

// Option настраивает Execute.
type Option func(*operationOptions)

// WithBreakerConfig задаёт конфигурацию breaker'а
// (учитывается при первом обращении к операции).
func WithBreakerConfig(cfg BreakerConfig) Option {
	return func(o *operationOptions) { o.breakerConfig = cfg }
}

// WithRetryConfig задаёт конфигурацию повторов для этого вызова.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(o *operationOptions) { o.retryConfig = cfg }
}

// Execute выполняет fn как устойчивую операцию name:
// снаружи — circuit breaker, внутри — повторы с backoff.
//
// Исход и латентность фиксируются в мониторе соединений на любом
// пути выхода, включая отклонение открытым breaker'ом; ошибка
// возвращается вызывающей стороне без изменений.
func (m *Manager) Execute(ctx context.Context, name string, fn func(context.Context) error, opts ...Option) error {
	var o operationOptions
	for _, opt := range opts {
		opt(&o)
	}

	breaker := m.CircuitBreaker(name, o.breakerConfig)
	retry := NewRetryManager(o.retryConfig)

	start := time.Now()
	err := breaker.Call(ctx, func(ctx context.Context) error {
		return retry.Execute(ctx, fn)
	})

	m.monitor.RecordRequest(name, err == nil, time.Since(start), err)

	if err != nil {
		m.logger.Warn("resilient operation failed",
			"operation", name,
			"breaker_state", breaker.State(),
			"duration", time.Since(start),
			"error", err,
		)
	}

	return err
}

// HealthReport — сводный отчёт о здоровье внешних зависимостей.
type HealthReport struct {
	// OverallHealth: "unhealthy" — есть хотя бы одно нездоровое
	// соединение, иначе "degraded" при деградировавших, иначе "healthy".
	OverallHealth string `json:"overall_health"`

	// UnhealthyConnections — имена нездоровых соединений.
	UnhealthyConnections []string `json:"unhealthy_connections"`

	// TotalCircuitBreakers — число зарегистрированных breaker'ов.
	TotalCircuitBreakers int `json:"total_circuit_breakers"`

	// OpenCircuitBreakers — число breaker'ов в состоянии OPEN.
	OpenCircuitBreakers int `json:"open_circuit_breakers"`

	// BreakerStates — состояние каждого breaker'а.
	BreakerStates map[string]BreakerState `json:"breaker_states"`

	// Connections — метрики всех наблюдаемых соединений.
	Connections map[string]ConnectionMetrics `json:"connections"`
}

// HealthReport собирает состояние всех breaker'ов и соединений.
func (m *Manager) HealthReport() HealthReport {
	report := HealthReport{
		OverallHealth:        OverallHealthy,
		UnhealthyConnections: []string{},
		BreakerStates:        make(map[string]BreakerState),
		Connections:          m.monitor.AllMetrics(),
	}

	m.mu.Lock()
	for name, b := range m.breakers {
		state := b.State()
		report.BreakerStates[name] = state
		report.TotalCircuitBreakers++
		if state == StateOpen {
			report.OpenCircuitBreakers++
		}
	}
	m.mu.Unlock()

	degraded := false
	for name, metrics := range report.Connections {
		switch metrics.CurrentHealth {
		case HealthUnhealthy:
			report.UnhealthyConnections = append(report.UnhealthyConnections, name)
		case HealthDegraded:
			degraded = true
		}
	}

	switch {
	case len(report.UnhealthyConnections) > 0:
		report.OverallHealth = OverallUnhealthy
	case degraded:
		report.OverallHealth = OverallDegraded
	}

	return report
}

// OperationName строит каноничное имя операции из частей,
// например OperationName("executor", "sql_execution") → "executor.sql_execution".
func OperationName(parts ...string) string {
	return strings.Join(parts, ".")
}
