package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
	"github.com/kongusen/AutoReportAI-sub016/internal/warehouse"
)

const defaultQueryTimeout = 30 * time.Second

// SQLExecutor — executor для подзадач SQL_QUERY и CACHE_UPDATE.
//
// Выполняет read-only запрос к хранилищу данных.
//
// Payload:
//   - query (string): SQL-текст (обязательно)
//   - timeout_sec (number): таймаут запроса. Default: 30
//
// Outputs:
//   - rows ([]map[string]any): выборка
//   - row_count (int): размер выборки
type SQLExecutor struct {
	runner *warehouse.Runner
}

// NewSQLExecutor создаёт SQLExecutor поверх Runner'а хранилища.
func NewSQLExecutor(runner *warehouse.Runner) *SQLExecutor {
	return &SQLExecutor{runner: runner}
}

// Execute выполняет SQL-запрос.
func (e *SQLExecutor) Execute(ctx context.Context, subtask *domain.Subtask) (*Result, error) {
	query := getString(subtask.Payload, "query", "")
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidPayload)
	}

	ctx, cancel := context.WithTimeout(ctx, getTimeout(subtask.Payload, defaultQueryTimeout))
	defer cancel()

	rows, err := e.runner.Query(ctx, query)
	if err != nil {
		// Превышение лимита строк — логическая ошибка запроса,
		// retry с тем же SQL бессмыслен
		if errors.Is(err, warehouse.ErrRowLimitExceeded) {
			return &Result{Error: err.Error()}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	return &Result{
		Outputs: map[string]any{
			"rows":      rows,
			"row_count": len(rows),
		},
	}, nil
}
