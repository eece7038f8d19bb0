package domain

import "time"

// TaskAllocation — факт размещения подзадачи на конкретном воркере.
//
// Создаётся DynamicLoadBalancer'ом и после создания не изменяется.
// Вызывающая сторона сохраняет allocation и позже передаёт его
// в CompleteTask для освобождения воркера.
type TaskAllocation struct {
	// TaskID — идентификатор родительской задачи генерации отчёта.
	TaskID string `json:"task_id"`

	// SubtaskID — идентификатор размещённой подзадачи.
	SubtaskID string `json:"subtask_id"`

	// WorkerID — идентификатор воркера, на который размещена подзадача.
	WorkerID string `json:"worker_id"`

	// WorkerType — тип воркера.
	WorkerType WorkerType `json:"worker_type"`

	// Priority — приоритет подзадачи на момент размещения.
	Priority int `json:"priority"`

	// EstimatedDuration — ожидаемая длительность в секундах
	// (с учётом значения по умолчанию для типа воркера).
	EstimatedDuration int `json:"estimated_duration"`

	// AllocatedAt — время размещения.
	AllocatedAt time.Time `json:"allocated_at"`
}

// LoadBalancingResult — результат распределения одного батча подзадач.
type LoadBalancingResult struct {
	// Allocations — успешные размещения в порядке обработки
	// (по убыванию приоритета).
	Allocations []TaskAllocation `json:"allocations"`

	// TotalEstimatedTime — оценка времени выполнения батча в секундах:
	// максимум по воркерам от суммы длительностей его подзадач
	// (воркеры работают параллельно, очередь каждого — последовательно).
	TotalEstimatedTime int `json:"total_estimated_time"`

	// LoadBalanceScore — эвристика равномерности распределения [0,1],
	// 1.0 — идеально ровно.
	LoadBalanceScore float64 `json:"load_balance_score"`

	// RejectedSubtaskIDs — подзадачи, для которых не нашлось ёмкости
	// даже после авто-масштабирования. Отказ — не ошибка: политика
	// повтора остаётся за вызывающей стороной.
	RejectedSubtaskIDs []string `json:"rejected_subtask_ids"`
}

// RejectionRate возвращает долю отклонённых подзадач в батче.
func (r *LoadBalancingResult) RejectionRate() float64 {
	total := len(r.Allocations) + len(r.RejectedSubtaskIDs)
	if total == 0 {
		return 0
	}
	return float64(len(r.RejectedSubtaskIDs)) / float64(total)
}
