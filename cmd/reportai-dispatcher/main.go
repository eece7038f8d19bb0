// ReportAI Dispatcher — сервис распределения подзадач генерации отчётов.
//
// Dispatcher:
//   - Получает батчи подзадач из RabbitMQ и через HTTP API
//   - Распределяет их по типизированным пулам воркеров
//   - Выполняет подзадачи через executor'ов под circuit breaker'ами
//   - Публикует события завершения и отдаёт метрики
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kongusen/AutoReportAI-sub016/internal/api"
	"github.com/kongusen/AutoReportAI-sub016/internal/balancer"
	"github.com/kongusen/AutoReportAI-sub016/internal/dispatcher"
	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
	"github.com/kongusen/AutoReportAI-sub016/internal/executor"
	"github.com/kongusen/AutoReportAI-sub016/internal/maintenance"
	"github.com/kongusen/AutoReportAI-sub016/internal/mq"
	"github.com/kongusen/AutoReportAI-sub016/internal/resilience"
	"github.com/kongusen/AutoReportAI-sub016/internal/telemetry"
	"github.com/kongusen/AutoReportAI-sub016/internal/warehouse"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting reportai-dispatcher")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Executor'ы: без хранилища SQL/ETL подзадачи не выполняются,
	// без API-ключа — анализ плейсхолдеров
	registry := executor.NewRegistry()
	registry.Register(domain.SubtaskReportCompile, executor.NewCompileExecutor())

	pool, err := warehouse.NewPool(ctx)
	if err != nil {
		logger.Warn("warehouse not available, SQL and ETL subtasks disabled", "error", err)
	} else {
		defer pool.Close()
		logger.Info("warehouse connected")

		runner := warehouse.NewRunner(pool, warehouse.RunnerConfig{})
		sqlExec := executor.NewSQLExecutor(runner)
		registry.Register(domain.SubtaskSQLQuery, sqlExec)
		registry.Register(domain.SubtaskCacheUpdate, sqlExec)
		registry.Register(domain.SubtaskDataExtraction, executor.NewETLExecutor(runner))
	}

	agentExec, err := executor.NewAgentExecutor()
	if err != nil {
		logger.Warn("agent executor disabled", "error", err)
	} else {
		registry.Register(domain.SubtaskPlaceholderAnalysis, agentExec)
	}

	// RabbitMQ (опционально: без него остаётся только HTTP API)
	var publisher *mq.Publisher
	var mqConn *mq.Connection
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in API-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Ядро: balancer + resilience + dispatcher
	lb := balancer.New(balancer.Config{Logger: logger})
	rm := resilience.NewManager(resilience.Config{Logger: logger})

	disp := dispatcher.New(dispatcher.Config{
		Balancer:   lb,
		Registry:   registry,
		Resilience: rm,
		Publisher:  publisher,
		Conn:       mqConn,
		Logger:     logger,
	})

	if err := disp.Start(ctx); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	// Периодическое обслуживание пулов
	maint := maintenance.New(maintenance.Config{
		Balancer:   lb,
		Resilience: rm,
		Logger:     logger,
	})
	if err := maint.Start(); err != nil {
		logger.Error("failed to start maintenance", "error", err)
		os.Exit(1)
	}

	// HTTP: /healthz + /metrics + API
	handler := api.NewHandler(api.Config{
		Dispatcher: disp,
		Balancer:   lb,
		Logger:     logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("DISPATCHER_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	maint.Stop()
	disp.Stop()
	logger.Info("reportai-dispatcher stopped")
}
