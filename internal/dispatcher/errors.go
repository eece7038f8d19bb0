package dispatcher

import "errors"

// Ошибки dispatcher'а.
var (
	// ErrStopped — dispatcher остановлен, новые батчи не принимаются.
	ErrStopped = errors.New("dispatcher stopped")

	// ErrEmptyBatch — пустой батч подзадач.
	ErrEmptyBatch = errors.New("empty subtask batch")
)
