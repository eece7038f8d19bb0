package resilience

import (
	"sync"
	"time"
)

// Health — классификация здоровья соединения.
type Health string

const (
	// HealthHealthy — success rate ≥ 0.95 и ни одной неудачи за 60 секунд.
	HealthHealthy Health = "HEALTHY"

	// HealthDegraded — success rate ≥ 0.8 и не более 2 неудач за 60 секунд.
	HealthDegraded Health = "DEGRADED"

	// HealthUnhealthy — всё остальное.
	HealthUnhealthy Health = "UNHEALTHY"

	// HealthUnknown — запросов ещё не было.
	HealthUnknown Health = "UNKNOWN"
)

// Bounded buffers and health thresholds.
const (
	ringCapacity        = 100
	recentFailureWindow = 60 * time.Second
	healthySuccessRate  = 0.95
	degradedSuccessRate = 0.8
	degradedMaxFailures = 2
)

// failureRecord — одна зафиксированная неудача.
type failureRecord struct {
	at  time.Time
	err string
}

// connectionState — накопленное состояние одного соединения.
//
// Кольцевые буферы recentFailures и responseTimes ограничены
// ringCapacity записями — память на соединение фиксирована.
type connectionState struct {
	name               string
	totalRequests      int
	successfulRequests int
	failedRequests     int
	lastSuccessTime    time.Time
	lastFailureTime    time.Time
	recentFailures     []failureRecord
	responseTimes      []time.Duration
}

// ConnectionMetrics — снапшот метрик соединения для вызывающей стороны.
type ConnectionMetrics struct {
	ConnectionName      string        `json:"connection_name"`
	TotalRequests       int           `json:"total_requests"`
	SuccessfulRequests  int           `json:"successful_requests"`
	FailedRequests      int           `json:"failed_requests"`
	SuccessRate         float64       `json:"success_rate"`
	LastSuccessTime     time.Time     `json:"last_success_time"`
	LastFailureTime     time.Time     `json:"last_failure_time"`
	AverageResponseTime time.Duration `json:"average_response_time"`
	RecentFailureCount  int           `json:"recent_failure_count"`
	CurrentHealth       Health        `json:"current_health"`
}

// ConnectionMonitor накапливает исходы и латентность по именованным
// внешним соединениям и выводит классификацию здоровья.
//
// Состояние соединения создаётся при первом RecordRequest
// и живёт до конца процесса.
type ConnectionMonitor struct {
	mu          sync.Mutex
	connections map[string]*connectionState

	// now — источник времени; подменяется в тестах.
	now func() time.Time
}

// NewConnectionMonitor создаёт пустой монитор.
func NewConnectionMonitor() *ConnectionMonitor {
	return &ConnectionMonitor{
		connections: make(map[string]*connectionState),
		now:         time.Now,
	}
}

// RecordRequest фиксирует исход одного запроса к соединению name.
func (m *ConnectionMonitor) RecordRequest(name string, success bool, responseTime time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.connections[name]
	if !ok {
		state = &connectionState{name: name}
		m.connections[name] = state
	}

	now := m.now()
	state.totalRequests++

	if success {
		state.successfulRequests++
		state.lastSuccessTime = now
	} else {
		state.failedRequests++
		state.lastFailureTime = now

		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		state.recentFailures = appendBounded(state.recentFailures, failureRecord{at: now, err: errMsg})
	}

	state.responseTimes = appendBounded(state.responseTimes, responseTime)
}

// Metrics возвращает снапшот метрик соединения name.
// ok=false — соединение ещё не наблюдалось.
func (m *ConnectionMonitor) Metrics(name string) (ConnectionMetrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.connections[name]
	if !ok {
		return ConnectionMetrics{}, false
	}
	return m.snapshotLocked(state), true
}

// AllMetrics возвращает снапшоты всех наблюдаемых соединений.
func (m *ConnectionMonitor) AllMetrics() map[string]ConnectionMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]ConnectionMetrics, len(m.connections))
	for name, state := range m.connections {
		out[name] = m.snapshotLocked(state)
	}
	return out
}

// snapshotLocked собирает снапшот. Вызывается под m.mu.
func (m *ConnectionMonitor) snapshotLocked(state *connectionState) ConnectionMetrics {
	snap := ConnectionMetrics{
		ConnectionName:     state.name,
		TotalRequests:      state.totalRequests,
		SuccessfulRequests: state.successfulRequests,
		FailedRequests:     state.failedRequests,
		LastSuccessTime:    state.lastSuccessTime,
		LastFailureTime:    state.lastFailureTime,
	}

	if state.totalRequests > 0 {
		snap.SuccessRate = float64(state.successfulRequests) / float64(state.totalRequests)
	}

	if len(state.responseTimes) > 0 {
		var sum time.Duration
		for _, rt := range state.responseTimes {
			sum += rt
		}
		snap.AverageResponseTime = sum / time.Duration(len(state.responseTimes))
	}

	snap.RecentFailureCount = m.recentFailuresLocked(state)
	snap.CurrentHealth = m.healthLocked(state, snap.SuccessRate, snap.RecentFailureCount)

	return snap
}

// recentFailuresLocked считает неудачи за последние 60 секунд.
func (m *ConnectionMonitor) recentFailuresLocked(state *connectionState) int {
	cutoff := m.now().Add(-recentFailureWindow)
	count := 0
	for _, f := range state.recentFailures {
		if f.at.After(cutoff) {
			count++
		}
	}
	return count
}

// healthLocked классифицирует здоровье соединения.
func (m *ConnectionMonitor) healthLocked(state *connectionState, successRate float64, recentFailures int) Health {
	if state.totalRequests == 0 {
		return HealthUnknown
	}

	switch {
	case successRate >= healthySuccessRate && recentFailures == 0:
		return HealthHealthy
	case successRate >= degradedSuccessRate && recentFailures <= degradedMaxFailures:
		return HealthDegraded
	default:
		return HealthUnhealthy
	}
}

// appendBounded добавляет запись в кольцевой буфер ёмкостью ringCapacity.
func appendBounded[T any](buf []T, v T) []T {
	buf = append(buf, v)
	if len(buf) > ringCapacity {
		buf = buf[len(buf)-ringCapacity:]
	}
	return buf
}
