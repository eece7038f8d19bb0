package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики распределения подзадач и отказоустойчивости.
// Регистрируются в default registry и отдаются через promhttp.
var (
	// SubtasksAllocated — размещённые подзадачи по типам воркеров.
	SubtasksAllocated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportai_subtasks_allocated_total",
		Help: "Subtasks allocated to worker pools",
	}, []string{"worker_type"})

	// SubtasksRejected — отклонённые подзадачи (исчерпание ёмкости).
	SubtasksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportai_subtasks_rejected_total",
		Help: "Subtasks rejected due to pool exhaustion",
	}, []string{"subtask_type"})

	// SubtaskDuration — фактическое время выполнения подзадач.
	SubtaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reportai_subtask_duration_seconds",
		Help:    "Subtask execution duration",
		Buckets: []float64{0.1, 0.5, 1, 3, 8, 15, 30, 60, 120},
	}, []string{"worker_type"})

	// PoolLoadRatio — загрузка пулов (0..1).
	PoolLoadRatio = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reportai_pool_load_ratio",
		Help: "Current load ratio per worker pool",
	}, []string{"worker_type"})

	// BatchBalanceScore — равномерность последнего батча (0..1).
	BatchBalanceScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reportai_batch_balance_score",
		Help: "Load balance score of the last distributed batch",
	})

	// BreakerState — состояние circuit breaker'ов:
	// 0 — CLOSED, 1 — HALF_OPEN, 2 — OPEN.
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "reportai_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"operation"})

	// ResilientOperations — исходы устойчивых операций.
	ResilientOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportai_resilient_operations_total",
		Help: "Resilient operation outcomes",
	}, []string{"operation", "outcome"})
)
