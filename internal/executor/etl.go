package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
	"github.com/kongusen/AutoReportAI-sub016/internal/warehouse"
)

const defaultExtractTimeout = 60 * time.Second

// ETLExecutor — executor для подзадачи DATA_EXTRACTION.
//
// Выгружает данные из хранилища и применяет построчные трансформации.
// Трансформации декларативные: dispatcher не исполняет произвольный код.
//
// Payload:
//   - query (string): SQL-текст выгрузки (обязательно)
//   - fields ([]string): оставить только перечисленные колонки
//   - rename (map[string]string): переименование колонок (old -> new)
//   - timeout_sec (number): таймаут. Default: 60
//
// Outputs:
//   - rows ([]map[string]any): трансформированная выборка
//   - row_count (int): размер выборки
type ETLExecutor struct {
	runner *warehouse.Runner
}

// NewETLExecutor создаёт ETLExecutor поверх Runner'а хранилища.
func NewETLExecutor(runner *warehouse.Runner) *ETLExecutor {
	return &ETLExecutor{runner: runner}
}

// Execute выгружает и трансформирует данные.
func (e *ETLExecutor) Execute(ctx context.Context, subtask *domain.Subtask) (*Result, error) {
	query := getString(subtask.Payload, "query", "")
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidPayload)
	}

	ctx, cancel := context.WithTimeout(ctx, getTimeout(subtask.Payload, defaultExtractTimeout))
	defer cancel()

	rows, err := e.runner.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	rows = applyProjection(rows, subtask.Payload)
	rows = applyRename(rows, subtask.Payload)

	return &Result{
		Outputs: map[string]any{
			"rows":      rows,
			"row_count": len(rows),
		},
	}, nil
}

// applyProjection оставляет в строках только колонки из fields.
func applyProjection(rows []map[string]any, payload map[string]any) []map[string]any {
	fields := stringSlice(payload["fields"])
	if len(fields) == 0 {
		return rows
	}

	projected := make([]map[string]any, len(rows))
	for i, row := range rows {
		p := make(map[string]any, len(fields))
		for _, f := range fields {
			if val, ok := row[f]; ok {
				p[f] = val
			}
		}
		projected[i] = p
	}
	return projected
}

// applyRename переименовывает колонки по map rename.
func applyRename(rows []map[string]any, payload map[string]any) []map[string]any {
	rename := stringMap(payload["rename"])
	if len(rename) == 0 {
		return rows
	}

	for _, row := range rows {
		for from, to := range rename {
			if val, ok := row[from]; ok {
				delete(row, from)
				row[to] = val
			}
		}
	}
	return rows
}

// stringSlice приводит значение из JSON payload к []string.
func stringSlice(val any) []string {
	switch v := val.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// stringMap приводит значение из JSON payload к map[string]string.
func stringMap(val any) map[string]string {
	switch v := val.(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for key, item := range v {
			if s, ok := item.(string); ok {
				out[key] = s
			}
		}
		return out
	}
	return nil
}
