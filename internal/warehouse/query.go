package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// defaultMaxRows — потолок размера выборки для одного запроса.
// Отчётные запросы агрегирующие; выборка больше этого размера
// почти наверняка означает забытый LIMIT.
const defaultMaxRows = 10000

// ErrRowLimitExceeded возвращается, когда выборка превысила лимит строк.
var ErrRowLimitExceeded = errors.New("warehouse: row limit exceeded")

// Runner выполняет read-only запросы к хранилищу.
type Runner struct {
	pool    *pgxpool.Pool
	maxRows int
	timeout time.Duration
}

// RunnerConfig — параметры Runner. Нулевые значения заменяются дефолтами.
type RunnerConfig struct {
	// MaxRows — максимальный размер выборки. По умолчанию 10000.
	MaxRows int

	// Timeout — таймаут одного запроса. По умолчанию 30s.
	Timeout time.Duration
}

// NewRunner создаёт Runner поверх пула.
func NewRunner(pool *pgxpool.Pool, cfg RunnerConfig) *Runner {
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = defaultMaxRows
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Runner{
		pool:    pool,
		maxRows: cfg.MaxRows,
		timeout: cfg.Timeout,
	}
}

// Query выполняет запрос и возвращает строки как срез map column -> value.
func (r *Runner) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(queryCtx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query warehouse: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}

	var result []map[string]any
	for rows.Next() {
		if len(result) >= r.maxRows {
			return nil, fmt.Errorf("%w: more than %d rows", ErrRowLimitExceeded, r.maxRows)
		}

		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}

// QueryOne выполняет запрос, от которого ожидается ровно одна строка.
func (r *Runner) QueryOne(ctx context.Context, query string, args ...any) (map[string]any, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("expected 1 row, got %d", len(rows))
	}
	return rows[0], nil
}
