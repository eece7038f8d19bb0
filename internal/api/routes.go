package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Tasks
	mux.Handle("POST /api/v1/tasks", chain(http.HandlerFunc(h.SubmitTask)))

	// Diagnostics
	mux.Handle("GET /api/v1/stats", chain(http.HandlerFunc(h.GetStats)))
	mux.Handle("GET /api/v1/health", chain(http.HandlerFunc(h.GetHealth)))

	// Workers
	mux.Handle("GET /api/v1/workers", chain(http.HandlerFunc(h.ListWorkers)))
	mux.Handle("POST /api/v1/workers/rebalance", chain(http.HandlerFunc(h.Rebalance)))
}
