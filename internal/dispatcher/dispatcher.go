package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kongusen/AutoReportAI-sub016/internal/balancer"
	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
	"github.com/kongusen/AutoReportAI-sub016/internal/executor"
	"github.com/kongusen/AutoReportAI-sub016/internal/mq"
	"github.com/kongusen/AutoReportAI-sub016/internal/resilience"
	"github.com/kongusen/AutoReportAI-sub016/internal/telemetry"
)

// defaultMaxConcurrency — потолок одновременно выполняемых подзадач.
const defaultMaxConcurrency = 32

// Dispatcher — конвейер выполнения батчей подзадач.
type Dispatcher struct {
	balancer   *balancer.DynamicLoadBalancer
	registry   *executor.Registry
	resilience *resilience.Manager

	// MQ (опционально: без соединения dispatcher работает
	// только через прямой Submit)
	publisher *mq.Publisher
	conn      *mq.Connection
	consumer  *mq.Consumer

	// sem ограничивает число одновременных executeAllocation
	sem chan struct{}

	// execCtx живёт от New до Stop. Выполнение подзадач асинхронно
	// и не должно наследовать отмену контекста вызывающего: HTTP-запрос
	// завершается сразу после приёма батча.
	execCtx    context.Context
	execCancel context.CancelFunc

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	stoppedMu sync.RWMutex
	stopped   bool
}

// Config — конфигурация Dispatcher.
type Config struct {
	Balancer   *balancer.DynamicLoadBalancer
	Registry   *executor.Registry
	Resilience *resilience.Manager

	// Publisher и Conn — транспорт событий (опционально).
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// MaxConcurrency — потолок одновременных подзадач (default: 32).
	MaxConcurrency int

	// Logger — логгер (опционально; если nil — slog.Default()).
	Logger *slog.Logger
}

// New создаёт Dispatcher.
func New(cfg Config) *Dispatcher {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	execCtx, execCancel := context.WithCancel(context.Background())

	return &Dispatcher{
		balancer:   cfg.Balancer,
		registry:   cfg.Registry,
		resilience: cfg.Resilience,
		publisher:  cfg.Publisher,
		conn:       cfg.Conn,
		sem:        make(chan struct{}, maxConcurrency),
		execCtx:    execCtx,
		execCancel: execCancel,
		logger:     logger,
	}
}

// Start запускает consumer очереди subtasks.pending (если настроен транспорт).
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancelFunc = cancel

	if d.conn == nil {
		d.logger.Info("dispatcher started without MQ, direct submit only")
		return nil
	}

	d.consumer = mq.NewConsumer(d.conn, mq.ConsumerConfig{
		Queue:  mq.QueueSubtasksPending,
		Logger: d.logger,
	})

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.consumer.Run(ctx, d.handleBatch); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("batch consumer error", "error", err)
		}
	}()

	d.logger.Info("dispatcher started", "queue", mq.QueueSubtasksPending)
	return nil
}

// Stop останавливает Dispatcher и дожидается выполняемых подзадач.
func (d *Dispatcher) Stop() {
	d.stoppedMu.Lock()
	d.stopped = true
	d.stoppedMu.Unlock()

	d.logger.Info("stopping dispatcher...")

	if d.cancelFunc != nil {
		d.cancelFunc()
	}
	d.wg.Wait()
	d.execCancel()

	d.logger.Info("dispatcher stopped")
}

// isStopped проверяет, остановлен ли Dispatcher.
func (d *Dispatcher) isStopped() bool {
	d.stoppedMu.RLock()
	defer d.stoppedMu.RUnlock()
	return d.stopped
}

// Submit распределяет и запускает батч подзадач задачи mainTaskID.
//
// Возвращает результат распределения сразу после размещения;
// выполнение подзадач идёт асинхронно на собственном контексте
// Dispatcher'а — отмена ctx вызывающего (например, завершение
// HTTP-запроса) не обрывает уже размещённые подзадачи.
// Отказы по ёмкости — часть результата (RejectedSubtaskIDs), не ошибка.
func (d *Dispatcher) Submit(ctx context.Context, mainTaskID string, subtasks []domain.Subtask) (*domain.LoadBalancingResult, error) {
	if d.isStopped() {
		return nil, ErrStopped
	}
	if len(subtasks) == 0 {
		return nil, ErrEmptyBatch
	}

	result, err := d.balancer.DistributeTask(mainTaskID, subtasks)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Subtask, len(subtasks))
	for i := range subtasks {
		byID[subtasks[i].ID] = &subtasks[i]
	}

	d.observeBatch(result, byID)

	// События отказа публикуются сразу: слот не выделялся,
	// executor не запускался
	for _, rejectedID := range result.RejectedSubtaskIDs {
		d.publishCompletion(ctx, mq.SubtaskCompletedPayload{
			MainTaskID: mainTaskID,
			SubtaskID:  rejectedID,
			Status:     mq.CompletionRejected,
			Error:      "no worker capacity",
		})
	}

	for i := range result.Allocations {
		alloc := result.Allocations[i]
		subtask := byID[alloc.SubtaskID]

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()

			d.sem <- struct{}{}
			defer func() { <-d.sem }()

			d.executeAllocation(d.execCtx, &alloc, subtask)
		}()
	}

	return result, nil
}

// executeAllocation выполняет одну размещённую подзадачу и закрывает
// жизненный цикл слота: CompleteTask вызывается на любом пути выхода.
func (d *Dispatcher) executeAllocation(ctx context.Context, alloc *domain.TaskAllocation, subtask *domain.Subtask) {
	start := time.Now()

	exec, err := d.registry.Get(subtask.Type)
	if err != nil {
		d.finishAllocation(ctx, alloc, start, nil, err)
		return
	}

	opName := resilience.OperationName("executor", string(alloc.WorkerType))

	var result *executor.Result
	err = d.resilience.Execute(ctx, opName, func(ctx context.Context) error {
		r, execErr := exec.Execute(ctx, subtask)
		if execErr != nil {
			return execErr
		}
		result = r
		return nil
	}, resilience.WithRetryConfig(resilience.RetryConfig{
		// Битый payload не станет валидным от повторов
		Retryable: func(err error) bool {
			return !errors.Is(err, executor.ErrInvalidPayload)
		},
	}))

	d.finishAllocation(ctx, alloc, start, result, err)
}

// finishAllocation освобождает слот воркера, пишет метрики
// и публикует событие завершения.
func (d *Dispatcher) finishAllocation(ctx context.Context, alloc *domain.TaskAllocation, start time.Time, result *executor.Result, execErr error) {
	elapsed := time.Since(start)
	success := execErr == nil && (result == nil || result.Error == "")

	if err := d.balancer.CompleteTask(alloc, elapsed.Seconds(), success); err != nil {
		d.logger.Error("failed to release worker",
			"worker_id", alloc.WorkerID,
			"subtask_id", alloc.SubtaskID,
			"error", err,
		)
	}

	telemetry.SubtaskDuration.WithLabelValues(string(alloc.WorkerType)).Observe(elapsed.Seconds())

	outcome := "success"
	if !success {
		outcome = "failure"
	}
	telemetry.ResilientOperations.WithLabelValues(
		resilience.OperationName("executor", string(alloc.WorkerType)),
		outcome,
	).Inc()

	payload := mq.SubtaskCompletedPayload{
		MainTaskID: alloc.TaskID,
		SubtaskID:  alloc.SubtaskID,
		WorkerID:   alloc.WorkerID,
		WorkerType: alloc.WorkerType,
		Status:     mq.CompletionSucceeded,
		DurationMs: elapsed.Milliseconds(),
	}
	switch {
	case execErr != nil:
		payload.Status = mq.CompletionFailed
		payload.Error = execErr.Error()
	case result != nil && result.Error != "":
		payload.Status = mq.CompletionFailed
		payload.Error = result.Error
	case result != nil:
		payload.Outputs = result.Outputs
	}

	d.publishCompletion(ctx, payload)

	d.logger.Info("subtask finished",
		"main_task_id", alloc.TaskID,
		"subtask_id", alloc.SubtaskID,
		"worker_id", alloc.WorkerID,
		"status", payload.Status,
		"duration", elapsed,
	)
}

// handleBatch — обработчик сообщений из subtasks.pending.
func (d *Dispatcher) handleBatch(ctx context.Context, msg *mq.Message) error {
	payload, err := mq.ParsePayload[mq.SubtaskBatchPayload](msg)
	if err != nil {
		return err
	}

	if _, err := d.Submit(ctx, payload.MainTaskID, payload.Subtasks); err != nil {
		return fmt.Errorf("submit batch %s: %w", payload.MainTaskID, err)
	}
	return nil
}

// publishCompletion публикует событие завершения, если настроен транспорт.
func (d *Dispatcher) publishCompletion(ctx context.Context, payload mq.SubtaskCompletedPayload) {
	if d.publisher == nil {
		return
	}
	if err := d.publisher.PublishSubtaskCompleted(ctx, payload); err != nil {
		d.logger.Error("failed to publish completion event",
			"subtask_id", payload.SubtaskID,
			"error", err,
		)
	}
}

// observeBatch обновляет метрики по результату распределения батча.
func (d *Dispatcher) observeBatch(result *domain.LoadBalancingResult, byID map[string]*domain.Subtask) {
	for i := range result.Allocations {
		telemetry.SubtasksAllocated.WithLabelValues(string(result.Allocations[i].WorkerType)).Inc()
	}
	for _, rejectedID := range result.RejectedSubtaskIDs {
		subtaskType := "unknown"
		if st, ok := byID[rejectedID]; ok {
			subtaskType = string(st.Type)
		}
		telemetry.SubtasksRejected.WithLabelValues(subtaskType).Inc()
	}

	telemetry.BatchBalanceScore.Set(result.LoadBalanceScore)

	stats := d.balancer.LoadStatistics()
	for wt, pool := range stats.Pools {
		telemetry.PoolLoadRatio.WithLabelValues(string(wt)).Set(pool.LoadRatio)
	}
}

// Stats возвращает статистику балансировщика.
func (d *Dispatcher) Stats() balancer.LoadStatistics {
	return d.balancer.LoadStatistics()
}

// Health возвращает отчёт о здоровье внешних зависимостей
// и обновляет gauge состояний breaker'ов.
func (d *Dispatcher) Health() resilience.HealthReport {
	report := d.resilience.HealthReport()

	for name, state := range report.BreakerStates {
		var v float64
		switch state {
		case resilience.StateHalfOpen:
			v = 1
		case resilience.StateOpen:
			v = 2
		}
		telemetry.BreakerState.WithLabelValues(name).Set(v)
	}

	return report
}
