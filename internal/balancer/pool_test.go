package balancer

import (
	"math"
	"testing"
	"time"

	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
)

func newTestPool(capacity, initial int) *WorkerPool {
	return NewWorkerPool(domain.WorkerSQLExecution, PoolDefaults{
		Capacity:         capacity,
		EstimatedSeconds: 3,
	}, initial)
}

func TestWorkerPool_AllocatePrefersLeastLoaded(t *testing.T) {
	p := newTestPool(2, 2)

	// Первая аллокация — любой из двух свободных
	first, ok := p.AllocateTask()
	if !ok {
		t.Fatal("expected allocation to succeed")
	}

	// Вторая должна уйти на другого воркера (у него load ratio 0)
	second, ok := p.AllocateTask()
	if !ok {
		t.Fatal("expected allocation to succeed")
	}
	if first == second {
		t.Errorf("expected allocation on the other worker, both went to %s", first)
	}
}

func TestWorkerPool_AllocatePrefersHigherSuccessRate(t *testing.T) {
	p := newTestPool(2, 2)

	// Понижаем success rate первого воркера
	p.mu.Lock()
	p.workers[0].SuccessRate = 0.5
	unreliable := p.workers[0].WorkerID
	p.mu.Unlock()

	got, ok := p.AllocateTask()
	if !ok {
		t.Fatal("expected allocation to succeed")
	}
	if got == unreliable {
		t.Errorf("expected allocation on the reliable worker, got %s", got)
	}
}

func TestWorkerPool_Exhaustion(t *testing.T) {
	p := newTestPool(1, 1)

	if _, ok := p.AllocateTask(); !ok {
		t.Fatal("first allocation should succeed")
	}
	if _, ok := p.AllocateTask(); ok {
		t.Error("second allocation should fail, pool exhausted")
	}
}

func TestWorkerPool_LoadInvariant(t *testing.T) {
	p := newTestPool(2, 1)

	// Заполняем до ёмкости и пробуем переполнить
	for i := 0; i < 5; i++ {
		p.AllocateTask()
	}

	for _, w := range p.Snapshot() {
		if w.CurrentLoad < 0 || w.CurrentLoad > w.MaxCapacity {
			t.Errorf("load invariant violated: %d not in [0, %d]", w.CurrentLoad, w.MaxCapacity)
		}
	}
}

func TestWorkerPool_ReleaseRestoresLoadAndUpdatesEMA(t *testing.T) {
	p := newTestPool(2, 1)

	before := p.Snapshot()[0]

	workerID, ok := p.AllocateTask()
	if !ok {
		t.Fatal("expected allocation to succeed")
	}

	if err := p.ReleaseTask(workerID, 10.0, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after := p.Snapshot()[0]
	if after.CurrentLoad != before.CurrentLoad {
		t.Errorf("expected load restored to %d, got %d", before.CurrentLoad, after.CurrentLoad)
	}

	// EMA: new = 0.9*old + 0.1*sample
	wantAvg := 0.9*before.AvgExecutionTime + 0.1*10.0
	if math.Abs(after.AvgExecutionTime-wantAvg) > 1e-9 {
		t.Errorf("expected avg execution time %f, got %f", wantAvg, after.AvgExecutionTime)
	}
}

func TestWorkerPool_ReleaseFailureLowersSuccessRate(t *testing.T) {
	p := newTestPool(2, 1)

	workerID, _ := p.AllocateTask()
	if err := p.ReleaseTask(workerID, 3.0, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w := p.Snapshot()[0]
	// new = 0.9*1.0 + 0.1*0.0
	if math.Abs(w.SuccessRate-0.9) > 1e-9 {
		t.Errorf("expected success rate 0.9, got %f", w.SuccessRate)
	}
}

func TestWorkerPool_ReleaseFloorsAtZero(t *testing.T) {
	p := newTestPool(2, 1)

	workerID := p.Snapshot()[0].WorkerID
	// Release без allocation — загрузка не должна уйти в минус
	if err := p.ReleaseTask(workerID, 1.0, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if load := p.Snapshot()[0].CurrentLoad; load != 0 {
		t.Errorf("expected load 0, got %d", load)
	}
}

func TestWorkerPool_ReleaseUnknownWorker(t *testing.T) {
	p := newTestPool(2, 1)

	if err := p.ReleaseTask("no-such-worker", 1.0, true); err == nil {
		t.Error("expected error for unknown worker")
	}
}

func TestWorkerPool_RemoveStale(t *testing.T) {
	p := newTestPool(2, 3)

	// Состариваем heartbeat одного воркера
	p.mu.Lock()
	p.workers[1].LastHeartbeat = time.Now().Add(-10 * time.Minute)
	p.mu.Unlock()

	removed := p.RemoveStale(5 * time.Minute)
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if p.Size() != 2 {
		t.Errorf("expected pool size 2, got %d", p.Size())
	}
}

func TestWorkerPool_Stats(t *testing.T) {
	p := newTestPool(2, 2)
	p.AllocateTask()

	s := p.Stats()
	if s.ActiveWorkers != 2 {
		t.Errorf("expected 2 active workers, got %d", s.ActiveWorkers)
	}
	if s.TotalCapacity != 4 {
		t.Errorf("expected total capacity 4, got %d", s.TotalCapacity)
	}
	if s.CurrentLoad != 1 {
		t.Errorf("expected current load 1, got %d", s.CurrentLoad)
	}
	if math.Abs(s.LoadRatio-0.25) > 1e-9 {
		t.Errorf("expected load ratio 0.25, got %f", s.LoadRatio)
	}
}
