package maintenance

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/kongusen/AutoReportAI-sub016/internal/balancer"
	"github.com/kongusen/AutoReportAI-sub016/internal/resilience"
)

// defaultSchedule — ребалансировка раз в минуту.
const defaultSchedule = "@every 1m"

// Maintainer запускает периодическое обслуживание по cron-расписанию.
type Maintainer struct {
	balancer   *balancer.DynamicLoadBalancer
	resilience *resilience.Manager

	cron     *cron.Cron
	schedule string
	logger   *slog.Logger
}

// Config — конфигурация Maintainer.
type Config struct {
	Balancer   *balancer.DynamicLoadBalancer
	Resilience *resilience.Manager

	// Schedule — cron-выражение (default: "@every 1m").
	Schedule string

	// Logger — логгер (опционально; если nil — slog.Default()).
	Logger *slog.Logger
}

// New создаёт Maintainer.
func New(cfg Config) *Maintainer {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = defaultSchedule
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Maintainer{
		balancer:   cfg.Balancer,
		resilience: cfg.Resilience,
		cron:       cron.New(),
		schedule:   schedule,
		logger:     logger,
	}
}

// Start регистрирует задачу обслуживания и запускает cron.
func (m *Maintainer) Start() error {
	if _, err := m.cron.AddFunc(m.schedule, m.Tick); err != nil {
		return fmt.Errorf("schedule maintenance %q: %w", m.schedule, err)
	}

	m.cron.Start()
	m.logger.Info("maintenance started", "schedule", m.schedule)
	return nil
}

// Stop останавливает cron и дожидается выполняемого тика.
func (m *Maintainer) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.logger.Info("maintenance stopped")
}

// Tick выполняет один цикл обслуживания.
//
// Ребалансирует пулы воркеров и логирует сводку здоровья;
// вызывается по расписанию, но может быть вызван и вручную.
func (m *Maintainer) Tick() {
	m.balancer.RebalanceWorkers()

	stats := m.balancer.LoadStatistics()
	for wt, pool := range stats.Pools {
		m.logger.Debug("pool state",
			"worker_type", wt,
			"active_workers", pool.ActiveWorkers,
			"load_ratio", pool.LoadRatio,
			"avg_success_rate", pool.AvgSuccessRate,
		)
	}

	report := m.resilience.HealthReport()
	if report.OverallHealth != resilience.OverallHealthy {
		m.logger.Warn("dependencies degraded",
			"overall_health", report.OverallHealth,
			"unhealthy", report.UnhealthyConnections,
			"open_breakers", report.OpenCircuitBreakers,
		)
	}
}
