package api

import (
	"log/slog"

	"github.com/kongusen/AutoReportAI-sub016/internal/balancer"
	"github.com/kongusen/AutoReportAI-sub016/internal/dispatcher"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	dispatcher *dispatcher.Dispatcher
	balancer   *balancer.DynamicLoadBalancer
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Dispatcher *dispatcher.Dispatcher
	Balancer   *balancer.DynamicLoadBalancer
	Logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		dispatcher: cfg.Dispatcher,
		balancer:   cfg.Balancer,
		logger:     logger,
	}
}
