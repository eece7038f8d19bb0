package balancer

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
)

// emaAlpha — коэффициент сглаживания экспоненциального скользящего среднего
// для времени выполнения и success rate воркера.
const emaAlpha = 0.1

// PoolDefaults — параметры по умолчанию для воркеров одного типа.
type PoolDefaults struct {
	// Capacity — максимум одновременных подзадач на воркере.
	Capacity int

	// EstimatedSeconds — типичная длительность подзадачи в секундах.
	// Используется как начальное AvgExecutionTime и как оценка
	// для подзадач без собственной EstimatedDuration.
	EstimatedSeconds int
}

// DefaultPoolSettings возвращает настройки пулов по умолчанию.
//
// Значения — настраиваемые константы, не бизнес-правила:
// агенты медленные и дорогие, SQL быстрый и дешёвый,
// сборка отчёта строго последовательная.
func DefaultPoolSettings() map[domain.WorkerType]PoolDefaults {
	return map[domain.WorkerType]PoolDefaults{
		domain.WorkerAgentAnalysis:    {Capacity: 2, EstimatedSeconds: 15},
		domain.WorkerSQLExecution:     {Capacity: 5, EstimatedSeconds: 3},
		domain.WorkerETLProcessing:    {Capacity: 3, EstimatedSeconds: 8},
		domain.WorkerReportGeneration: {Capacity: 1, EstimatedSeconds: 30},
	}
}

// WorkerInfo — состояние одного логического воркера.
//
// Инвариант: 0 <= CurrentLoad <= MaxCapacity.
// AvgExecutionTime и SuccessRate сглаживаются EMA (α=0.1)
// при каждом освобождении.
type WorkerInfo struct {
	WorkerID         string            `json:"worker_id"`
	WorkerType       domain.WorkerType `json:"worker_type"`
	CurrentLoad      int               `json:"current_load"`
	MaxCapacity      int               `json:"max_capacity"`
	AvgExecutionTime float64           `json:"avg_execution_time"` // секунды
	SuccessRate      float64           `json:"success_rate"`       // 0..1
	LastHeartbeat    time.Time         `json:"last_heartbeat"`
	IsActive         bool              `json:"is_active"`
}

// loadRatio возвращает отношение текущей загрузки к ёмкости.
func (w *WorkerInfo) loadRatio() float64 {
	if w.MaxCapacity <= 0 {
		return 1.0
	}
	return float64(w.CurrentLoad) / float64(w.MaxCapacity)
}

// WorkerPool — пул воркеров одного типа.
//
// Все операции над загрузкой и составом пула идут под одним мьютексом:
// проверка доступности и инкремент загрузки — одна критическая секция,
// конкурентные вызовы не могут превысить ёмкость воркера.
type WorkerPool struct {
	workerType domain.WorkerType
	defaults   PoolDefaults

	mu      sync.Mutex
	workers []*WorkerInfo
	seq     int // счётчик для генерации worker_id
}

// NewWorkerPool создаёт пул с initial воркерами типа workerType.
func NewWorkerPool(workerType domain.WorkerType, defaults PoolDefaults, initial int) *WorkerPool {
	p := &WorkerPool{
		workerType: workerType,
		defaults:   defaults,
	}
	for i := 0; i < initial; i++ {
		p.addWorkerLocked()
	}
	return p
}

// addWorkerLocked добавляет воркера с параметрами по умолчанию.
// Вызывается только под p.mu (или из конструктора).
func (p *WorkerPool) addWorkerLocked() *WorkerInfo {
	p.seq++
	w := &WorkerInfo{
		WorkerID:         fmt.Sprintf("%s-%d", p.workerType, p.seq),
		WorkerType:       p.workerType,
		MaxCapacity:      p.defaults.Capacity,
		AvgExecutionTime: float64(p.defaults.EstimatedSeconds),
		SuccessRate:      1.0,
		LastHeartbeat:    time.Now(),
		IsActive:         true,
	}
	p.workers = append(p.workers, w)
	return w
}

// AddWorker добавляет нового воркера и возвращает его ID.
func (p *WorkerPool) AddWorker() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addWorkerLocked().WorkerID
}

// AvailableWorkers возвращает снапшоты активных воркеров
// с незаполненной ёмкостью.
func (p *WorkerPool) AvailableWorkers() []WorkerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []WorkerInfo
	for _, w := range p.workers {
		if w.IsActive && w.CurrentLoad < w.MaxCapacity {
			out = append(out, *w)
		}
	}
	return out
}

// AllocateTask размещает одну подзадачу на наименее нагруженном воркере.
//
// Кандидаты упорядочиваются по кортежу:
// (load ratio ↑, success rate ↓, avg execution time ↑) —
// сначала свободные, при равенстве надёжные, затем быстрые.
//
// Возвращает ID выбранного воркера. ok=false — ёмкость пула исчерпана,
// вызывающая сторона решает судьбу подзадачи (авто-масштабирование/отказ).
func (p *WorkerPool) AllocateTask() (workerID string, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var candidates []*WorkerInfo
	for _, w := range p.workers {
		if w.IsActive && w.CurrentLoad < w.MaxCapacity {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.loadRatio() != b.loadRatio() {
			return a.loadRatio() < b.loadRatio()
		}
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		return a.AvgExecutionTime < b.AvgExecutionTime
	})

	best := candidates[0]
	best.CurrentLoad++
	return best.WorkerID, true
}

// ReleaseTask освобождает воркера после выполнения подзадачи.
//
// Уменьшает загрузку (не ниже нуля), обновляет EMA времени выполнения
// и success rate, освежает heartbeat.
func (p *WorkerPool) ReleaseTask(workerID string, execSeconds float64, success bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, w := range p.workers {
		if w.WorkerID != workerID {
			continue
		}

		if w.CurrentLoad > 0 {
			w.CurrentLoad--
		}

		w.AvgExecutionTime = (1-emaAlpha)*w.AvgExecutionTime + emaAlpha*execSeconds

		sample := 0.0
		if success {
			sample = 1.0
		}
		w.SuccessRate = (1-emaAlpha)*w.SuccessRate + emaAlpha*sample

		w.LastHeartbeat = time.Now()
		return nil
	}

	return fmt.Errorf("%w: %s", ErrWorkerNotFound, workerID)
}

// Heartbeat обновляет время последнего сигнала воркера.
func (p *WorkerPool) Heartbeat(workerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, w := range p.workers {
		if w.WorkerID == workerID {
			w.LastHeartbeat = time.Now()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrWorkerNotFound, workerID)
}

// RemoveStale удаляет неактивных воркеров и воркеров без heartbeat
// дольше maxAge. Возвращает количество удалённых.
func (p *WorkerPool) RemoveStale(maxAge time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	kept := p.workers[:0]
	removed := 0
	for _, w := range p.workers {
		if !w.IsActive || w.LastHeartbeat.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, w)
	}
	p.workers = kept
	return removed
}

// Size возвращает общее число воркеров в пуле (включая неактивных).
func (p *WorkerPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// PoolStats — агрегированная статистика пула.
type PoolStats struct {
	WorkerType     domain.WorkerType `json:"worker_type"`
	ActiveWorkers  int               `json:"active_workers"`
	TotalCapacity  int               `json:"total_capacity"`
	CurrentLoad    int               `json:"current_load"`
	LoadRatio      float64           `json:"load_ratio"`
	AvgSuccessRate float64           `json:"avg_success_rate"`
}

// Stats возвращает агрегированную статистику по активным воркерам.
func (p *WorkerPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statsLocked()
}

func (p *WorkerPool) statsLocked() PoolStats {
	s := PoolStats{WorkerType: p.workerType}
	var rateSum float64
	for _, w := range p.workers {
		if !w.IsActive {
			continue
		}
		s.ActiveWorkers++
		s.TotalCapacity += w.MaxCapacity
		s.CurrentLoad += w.CurrentLoad
		rateSum += w.SuccessRate
	}
	if s.TotalCapacity > 0 {
		s.LoadRatio = float64(s.CurrentLoad) / float64(s.TotalCapacity)
	}
	if s.ActiveWorkers > 0 {
		s.AvgSuccessRate = rateSum / float64(s.ActiveWorkers)
	}
	return s
}

// Snapshot возвращает копии всех воркеров пула.
func (p *WorkerPool) Snapshot() []WorkerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]WorkerInfo, len(p.workers))
	for i, w := range p.workers {
		out[i] = *w
	}
	return out
}

// activeWorkerIDs возвращает ID активных воркеров.
func (p *WorkerPool) activeWorkerIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var ids []string
	for _, w := range p.workers {
		if w.IsActive {
			ids = append(ids, w.WorkerID)
		}
	}
	return ids
}
