package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/kongusen/AutoReportAI-sub016/internal/balancer"
	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
	"github.com/kongusen/AutoReportAI-sub016/internal/executor"
	"github.com/kongusen/AutoReportAI-sub016/internal/resilience"
)

// countingExecutor считает вызовы и возвращает заданный результат.
type countingExecutor struct {
	calls  atomic.Int64
	result *executor.Result
	err    error
}

func (c *countingExecutor) Execute(_ context.Context, _ *domain.Subtask) (*executor.Result, error) {
	c.calls.Add(1)
	return c.result, c.err
}

func newTestDispatcher(t *testing.T, registry *executor.Registry) *Dispatcher {
	t.Helper()
	return New(Config{
		Balancer:   balancer.New(balancer.Config{Logger: slog.Default()}),
		Registry:   registry,
		Resilience: resilience.NewManager(resilience.Config{}),
	})
}

func sqlSubtasks(n int) []domain.Subtask {
	subtasks := make([]domain.Subtask, n)
	for i := range subtasks {
		subtasks[i] = domain.Subtask{
			ID:       "st-" + string(rune('a'+i)),
			Type:     domain.SubtaskSQLQuery,
			Priority: 5,
		}
	}
	return subtasks
}

func TestSubmitExecutesAllAllocations(t *testing.T) {
	stub := &countingExecutor{result: &executor.Result{Outputs: map[string]any{"ok": true}}}
	registry := executor.NewRegistry()
	registry.Register(domain.SubtaskSQLQuery, stub)

	d := newTestDispatcher(t, registry)

	result, err := d.Submit(context.Background(), "report-1", sqlSubtasks(4))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(result.Allocations) != 4 {
		t.Fatalf("allocations = %d, want 4", len(result.Allocations))
	}

	// Stop дожидается всех выполняемых подзадач
	d.Stop()

	if got := stub.calls.Load(); got != 4 {
		t.Errorf("executor calls = %d, want 4", got)
	}

	// Все слоты освобождены
	stats := d.Stats()
	if load := stats.Pools[domain.WorkerSQLExecution].CurrentLoad; load != 0 {
		t.Errorf("current load after completion = %d, want 0", load)
	}
}

func TestSubmitReleasesSlotOnFailure(t *testing.T) {
	stub := &countingExecutor{err: errors.New("warehouse down")}
	registry := executor.NewRegistry()
	registry.Register(domain.SubtaskSQLQuery, stub)

	d := newTestDispatcher(t, registry)

	result, err := d.Submit(context.Background(), "report-2", sqlSubtasks(1))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(result.Allocations) != 1 {
		t.Fatalf("allocations = %d, want 1", len(result.Allocations))
	}

	d.Stop()

	// Retry по умолчанию: 3 попытки
	if got := stub.calls.Load(); got != 3 {
		t.Errorf("executor calls = %d, want 3 (retries)", got)
	}

	stats := d.Stats()
	pool := stats.Pools[domain.WorkerSQLExecution]
	if pool.CurrentLoad != 0 {
		t.Errorf("current load after failure = %d, want 0", pool.CurrentLoad)
	}
	// Ошибка выполнения снизила success rate воркера
	if pool.AvgSuccessRate >= 1.0 {
		t.Errorf("avg success rate = %v, want < 1.0", pool.AvgSuccessRate)
	}
}

func TestSubmitUnknownExecutorReleasesSlot(t *testing.T) {
	// Реестр пуст: для SQL_QUERY нет executor'а
	d := newTestDispatcher(t, executor.NewRegistry())

	result, err := d.Submit(context.Background(), "report-3", sqlSubtasks(1))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(result.Allocations) != 1 {
		t.Fatalf("allocations = %d, want 1", len(result.Allocations))
	}

	d.Stop()

	stats := d.Stats()
	if load := stats.Pools[domain.WorkerSQLExecution].CurrentLoad; load != 0 {
		t.Errorf("current load = %d, want 0", load)
	}
}

// ctxAwareExecutor ведёт себя как executor, уважающий отмену контекста
// (warehouse и agent прерывают работу по ctx).
type ctxAwareExecutor struct {
	calls    atomic.Int64
	canceled atomic.Bool
}

func (c *ctxAwareExecutor) Execute(ctx context.Context, _ *domain.Subtask) (*executor.Result, error) {
	c.calls.Add(1)
	if err := ctx.Err(); err != nil {
		c.canceled.Store(true)
		return nil, err
	}
	return &executor.Result{Outputs: map[string]any{"ok": true}}, nil
}

func TestSubmitDetachedFromCallerContext(t *testing.T) {
	stub := &ctxAwareExecutor{}
	registry := executor.NewRegistry()
	registry.Register(domain.SubtaskSQLQuery, stub)

	d := newTestDispatcher(t, registry)

	// Контекст вызывающего отменён ещё до Submit — как у HTTP-запроса,
	// завершившегося сразу после приёма батча. Выполнение подзадач
	// живёт на контексте Dispatcher'а и не должно этого заметить.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := d.Submit(ctx, "report-7", sqlSubtasks(2))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(result.Allocations) != 2 {
		t.Fatalf("allocations = %d, want 2", len(result.Allocations))
	}

	d.Stop()

	if stub.canceled.Load() {
		t.Error("executor saw canceled context")
	}
	if got := stub.calls.Load(); got != 2 {
		t.Errorf("executor calls = %d, want 2", got)
	}

	// Успешное выполнение: success rate воркеров не пострадал
	stats := d.Stats()
	pool := stats.Pools[domain.WorkerSQLExecution]
	if pool.CurrentLoad != 0 {
		t.Errorf("current load = %d, want 0", pool.CurrentLoad)
	}
	if pool.AvgSuccessRate < 1.0 {
		t.Errorf("avg success rate = %v, want 1.0", pool.AvgSuccessRate)
	}
}

func TestSubmitEmptyBatch(t *testing.T) {
	d := newTestDispatcher(t, executor.NewRegistry())

	if _, err := d.Submit(context.Background(), "report-4", nil); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestSubmitAfterStop(t *testing.T) {
	d := newTestDispatcher(t, executor.NewRegistry())
	d.Stop()

	if _, err := d.Submit(context.Background(), "report-5", sqlSubtasks(1)); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
}

func TestHealthReportAfterExecution(t *testing.T) {
	stub := &countingExecutor{result: &executor.Result{}}
	registry := executor.NewRegistry()
	registry.Register(domain.SubtaskSQLQuery, stub)

	d := newTestDispatcher(t, registry)

	if _, err := d.Submit(context.Background(), "report-6", sqlSubtasks(2)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	d.Stop()

	report := d.Health()
	if report.OverallHealth != resilience.OverallHealthy {
		t.Errorf("overall health = %s, want %s", report.OverallHealth, resilience.OverallHealthy)
	}
	if report.TotalCircuitBreakers != 1 {
		t.Errorf("breakers = %d, want 1", report.TotalCircuitBreakers)
	}
}
