package balancer

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
)

// Default configuration values.
const (
	defaultLoadThreshold  = 0.8
	defaultMaxPoolSize    = 20
	defaultInitialWorkers = 2
	defaultStaleWorkerAge = 300 * time.Second
	defaultMinActive      = 2
	historyWindow         = 10
)

// DynamicLoadBalancer распределяет батчи подзадач по типизированным пулам.
//
// Balancer:
//   - Сортирует батч по приоритету (стабильно, по убыванию)
//   - Размещает каждую подзадачу в пуле её типа воркера
//   - При исчерпании пула делает один проход авто-масштабирования и повторяет
//   - Считает оценку времени батча и метрику равномерности
//   - Хранит скользящее окно статистики последних батчей
//
// Создаётся явно и передаётся зависимостям через конструкторы —
// скрытого глобального состояния нет.
type DynamicLoadBalancer struct {
	pools map[domain.WorkerType]*WorkerPool

	loadThreshold float64
	maxPoolSize   int
	staleAge      time.Duration

	// history — окно статистики последних батчей (до historyWindow записей).
	historyMu sync.Mutex
	history   []BatchStats

	logger *slog.Logger
}

// Config — конфигурация DynamicLoadBalancer.
type Config struct {
	// PoolSettings — ёмкость и оценка длительности по типам воркеров
	// (опционально; если nil — DefaultPoolSettings()).
	PoolSettings map[domain.WorkerType]PoolDefaults

	// InitialWorkers — стартовое число воркеров в каждом пуле (default: 2).
	InitialWorkers int

	// LoadThreshold — порог загрузки пула для авто-масштабирования (default: 0.8).
	LoadThreshold float64

	// MaxPoolSize — жёсткий предел размера пула (default: 20).
	MaxPoolSize int

	// StaleWorkerAge — возраст heartbeat, после которого воркер
	// удаляется при ребалансировке (default: 300s).
	StaleWorkerAge time.Duration

	// Logger — логгер (опционально; если nil — slog.Default()).
	Logger *slog.Logger
}

// BatchStats — агрегат одного батча для скользящего окна статистики.
type BatchStats struct {
	BalanceScore  float64 `json:"balance_score"`
	RejectionRate float64 `json:"rejection_rate"`
}

// LoadStatistics — снапшот состояния балансировщика.
type LoadStatistics struct {
	Pools         map[domain.WorkerType]PoolStats `json:"pools"`
	RecentBatches []BatchStats                    `json:"recent_batches"`
}

// New создаёт DynamicLoadBalancer с пулом на каждый тип воркера.
func New(cfg Config) *DynamicLoadBalancer {
	settings := cfg.PoolSettings
	if settings == nil {
		settings = DefaultPoolSettings()
	}

	initial := cfg.InitialWorkers
	if initial <= 0 {
		initial = defaultInitialWorkers
	}

	threshold := cfg.LoadThreshold
	if threshold <= 0 {
		threshold = defaultLoadThreshold
	}

	maxPool := cfg.MaxPoolSize
	if maxPool <= 0 {
		maxPool = defaultMaxPoolSize
	}

	staleAge := cfg.StaleWorkerAge
	if staleAge <= 0 {
		staleAge = defaultStaleWorkerAge
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pools := make(map[domain.WorkerType]*WorkerPool)
	for _, wt := range domain.AllWorkerTypes() {
		defaults, ok := settings[wt]
		if !ok {
			defaults = DefaultPoolSettings()[wt]
		}
		pools[wt] = NewWorkerPool(wt, defaults, initial)
	}

	return &DynamicLoadBalancer{
		pools:         pools,
		loadThreshold: threshold,
		maxPoolSize:   maxPool,
		staleAge:      staleAge,
		logger:        logger,
	}
}

// DistributeTask распределяет батч подзадач задачи mainTaskID.
//
// Подзадачи обрабатываются строго по убыванию приоритета; при равенстве
// сохраняется порядок подачи (стабильная сортировка) — именно это
// определяет, кому достанется дефицитная ёмкость.
//
// Исчерпание пула — не ошибка: после неудачного прохода
// авто-масштабирования subtask ID попадает в RejectedSubtaskIDs.
func (b *DynamicLoadBalancer) DistributeTask(mainTaskID string, subtasks []domain.Subtask) (*domain.LoadBalancingResult, error) {
	ordered := make([]domain.Subtask, len(subtasks))
	copy(ordered, subtasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	// Типы проверяются до выделения слотов: ошибка посреди батча
	// оставила бы занятые слоты, которые вызывающему нечем освободить.
	for i := range ordered {
		st := &ordered[i]
		workerType, ok := st.Type.WorkerTypeFor()
		if !ok {
			return nil, fmt.Errorf("%w: %s (subtask %s)", ErrUnknownSubtaskType, st.Type, st.ID)
		}
		if _, ok := b.pools[workerType]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownWorkerType, workerType)
		}
	}

	result := &domain.LoadBalancingResult{}

	for i := range ordered {
		st := &ordered[i]

		workerType, _ := st.Type.WorkerTypeFor()
		pool := b.pools[workerType]

		workerID, allocated := pool.AllocateTask()
		if !allocated {
			// Пул исчерпан — пробуем добавить воркера и повторить один раз.
			if b.tryAutoScale(workerType, pool) {
				workerID, allocated = pool.AllocateTask()
			}
		}

		if !allocated {
			result.RejectedSubtaskIDs = append(result.RejectedSubtaskIDs, st.ID)
			b.logger.Warn("subtask rejected, pool exhausted",
				"main_task_id", mainTaskID,
				"subtask_id", st.ID,
				"worker_type", workerType,
			)
			continue
		}

		estimate := st.EstimatedDuration
		if estimate <= 0 {
			estimate = pool.defaults.EstimatedSeconds
		}

		result.Allocations = append(result.Allocations, domain.TaskAllocation{
			TaskID:            mainTaskID,
			SubtaskID:         st.ID,
			WorkerID:          workerID,
			WorkerType:        workerType,
			Priority:          st.Priority,
			EstimatedDuration: estimate,
			AllocatedAt:       time.Now(),
		})
	}

	result.TotalEstimatedTime = totalEstimatedTime(result.Allocations)
	result.LoadBalanceScore = b.loadBalanceScore(result.Allocations)

	b.recordBatch(BatchStats{
		BalanceScore:  result.LoadBalanceScore,
		RejectionRate: result.RejectionRate(),
	})

	b.logger.Info("batch distributed",
		"main_task_id", mainTaskID,
		"subtasks", len(subtasks),
		"allocated", len(result.Allocations),
		"rejected", len(result.RejectedSubtaskIDs),
		"estimated_time_sec", result.TotalEstimatedTime,
		"balance_score", result.LoadBalanceScore,
	)

	return result, nil
}

// CompleteTask сообщает о завершении подзадачи: освобождает воркера
// и обновляет его статистику.
func (b *DynamicLoadBalancer) CompleteTask(alloc *domain.TaskAllocation, execSeconds float64, success bool) error {
	pool, ok := b.pools[alloc.WorkerType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorkerType, alloc.WorkerType)
	}
	return pool.ReleaseTask(alloc.WorkerID, execSeconds, success)
}

// tryAutoScale добавляет одного воркера в пул, если загрузка превысила
// порог и пул меньше жёсткого предела. Возвращает true, если воркер добавлен.
func (b *DynamicLoadBalancer) tryAutoScale(workerType domain.WorkerType, pool *WorkerPool) bool {
	stats := pool.Stats()
	if stats.LoadRatio < b.loadThreshold {
		return false
	}
	if pool.Size() >= b.maxPoolSize {
		b.logger.Warn("auto-scaling skipped, pool at hard cap",
			"worker_type", workerType,
			"size", pool.Size(),
		)
		return false
	}

	workerID := pool.AddWorker()
	b.logger.Info("auto-scaled pool",
		"worker_type", workerType,
		"worker_id", workerID,
		"pool_size", pool.Size(),
		"load_ratio", stats.LoadRatio,
	)
	return true
}

// LoadStatistics возвращает статистику пулов и окно последних батчей.
func (b *DynamicLoadBalancer) LoadStatistics() LoadStatistics {
	stats := LoadStatistics{
		Pools: make(map[domain.WorkerType]PoolStats, len(b.pools)),
	}
	for wt, pool := range b.pools {
		stats.Pools[wt] = pool.Stats()
	}

	b.historyMu.Lock()
	stats.RecentBatches = append([]BatchStats(nil), b.history...)
	b.historyMu.Unlock()

	return stats
}

// RebalanceWorkers — периодическое обслуживание пулов.
//
// Удаляет воркеров без heartbeat дольше staleAge (и неактивных);
// если после чистки в пуле меньше двух активных воркеров —
// добавляет одного, чтобы пул не деградировал до нуля.
func (b *DynamicLoadBalancer) RebalanceWorkers() {
	for wt, pool := range b.pools {
		removed := pool.RemoveStale(b.staleAge)
		if removed > 0 {
			b.logger.Info("removed stale workers",
				"worker_type", wt,
				"removed", removed,
			)
		}

		if stats := pool.Stats(); stats.ActiveWorkers < defaultMinActive && pool.Size() < b.maxPoolSize {
			workerID := pool.AddWorker()
			b.logger.Info("pool below minimum, added worker",
				"worker_type", wt,
				"worker_id", workerID,
			)
		}
	}
}

// Pool возвращает пул для типа воркера (для тестов и диагностики).
func (b *DynamicLoadBalancer) Pool(workerType domain.WorkerType) (*WorkerPool, bool) {
	p, ok := b.pools[workerType]
	return p, ok
}

// recordBatch добавляет запись в скользящее окно статистики.
func (b *DynamicLoadBalancer) recordBatch(s BatchStats) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	b.history = append(b.history, s)
	if len(b.history) > historyWindow {
		b.history = b.history[len(b.history)-historyWindow:]
	}
}

// totalEstimatedTime — оценка времени батча: сумма длительностей
// по каждому воркеру, максимум по воркерам. Воркеры работают
// параллельно, очередь одного воркера — последовательно.
func totalEstimatedTime(allocations []domain.TaskAllocation) int {
	perWorker := make(map[string]int)
	for i := range allocations {
		perWorker[allocations[i].WorkerID] += allocations[i].EstimatedDuration
	}

	max := 0
	for _, sum := range perWorker {
		if sum > max {
			max = sum
		}
	}
	return max
}

// loadBalanceScore — эвристика равномерности распределения [0,1].
//
// Считает дисперсию числа размещений по активным воркерам затронутых
// пулов (воркеры без размещений учитываются нулём), нормирует на
// приближённый максимум дисперсии N²/4 и инвертирует.
// Пустой батч или батч на одном воркере — 1.0 независимо от размера.
func (b *DynamicLoadBalancer) loadBalanceScore(allocations []domain.TaskAllocation) float64 {
	if len(allocations) == 0 {
		return 1.0
	}

	counts := make(map[string]int)
	usedPools := make(map[domain.WorkerType]bool)
	for i := range allocations {
		counts[allocations[i].WorkerID]++
		usedPools[allocations[i].WorkerType] = true
	}

	// Один воркер — распределять нечего, батч равномерен по определению.
	// Проверка до нулевых счётчиков: иначе батч из одной подзадачи на
	// пуле из двух воркеров давал бы score 0 вместо 1.
	if len(counts) == 1 {
		return 1.0
	}

	// Нулевые счётчики простаивающих воркеров затронутых пулов:
	// неравномерное использование пула снижает score.
	for wt := range usedPools {
		if pool, ok := b.pools[wt]; ok {
			for _, id := range pool.activeWorkerIDs() {
				if _, seen := counts[id]; !seen {
					counts[id] = 0
				}
			}
		}
	}

	n := float64(len(allocations))
	mean := n / float64(len(counts))

	var variance float64
	for _, c := range counts {
		d := float64(c) - mean
		variance += d * d
	}
	variance /= float64(len(counts))

	// Приближение максимума дисперсии: N²/4 (см. DESIGN.md).
	maxVariance := n * n / 4
	normalized := variance / maxVariance
	if normalized > 1 {
		normalized = 1
	}
	return 1 - normalized
}
