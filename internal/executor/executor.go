package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
)

// Executor — интерфейс для выполнения конкретного типа подзадачи.
//
// subtask.Payload содержит входные данные (SQL-текст, промпт, шаблон...).
// Таймаут устанавливается вызывающей стороной через ctx.
type Executor interface {
	Execute(ctx context.Context, subtask *domain.Subtask) (*Result, error)
}

// Result — результат выполнения подзадачи.
type Result struct {
	// Outputs — выходные данные выполнения.
	Outputs map[string]any

	// Error — сообщение о логической ошибке выполнения.
	// Инфраструктурные ошибки возвращаются через error в Execute().
	Error string
}

// Registry — реестр executor'ов по типу подзадачи.
type Registry struct {
	executors map[domain.SubtaskType]Executor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[domain.SubtaskType]Executor)}
}

// Register добавляет executor для типа подзадачи.
func (r *Registry) Register(subtaskType domain.SubtaskType, executor Executor) {
	r.executors[subtaskType] = executor
}

// Get возвращает executor для типа подзадачи.
func (r *Registry) Get(subtaskType domain.SubtaskType) (Executor, error) {
	executor, ok := r.executors[subtaskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubtaskType, subtaskType)
	}
	return executor, nil
}

// --- Helpers, общие для executor'ов ---

// getString извлекает строку из payload с default значением.
func getString(m map[string]any, key, defaultVal string) string {
	if val, ok := m[key]; ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return defaultVal
}

// getTimeout извлекает таймаут из payload (timeout_sec).
func getTimeout(payload map[string]any, defaultTimeout time.Duration) time.Duration {
	if val, ok := payload["timeout_sec"]; ok {
		switch v := val.(type) {
		case float64:
			if v > 0 {
				return time.Duration(v * float64(time.Second))
			}
		case int:
			if v > 0 {
				return time.Duration(v) * time.Second
			}
		}
	}
	return defaultTimeout
}
