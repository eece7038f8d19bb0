package balancer

import "errors"

// Ошибки балансировщика.
//
// Исчерпание ёмкости пула ошибкой не считается: такие подзадачи
// попадают в LoadBalancingResult.RejectedSubtaskIDs.
var (
	// ErrUnknownSubtaskType — для типа подзадачи нет отображения на пул.
	ErrUnknownSubtaskType = errors.New("unknown subtask type")

	// ErrUnknownWorkerType — пул для типа воркера не сконфигурирован.
	ErrUnknownWorkerType = errors.New("unknown worker type")

	// ErrWorkerNotFound — воркер не найден в пуле.
	ErrWorkerNotFound = errors.New("worker not found in pool")
)
