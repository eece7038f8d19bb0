package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/kongusen/AutoReportAI-sub016/internal/dispatcher"
	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
)

// maxBatchSize — потолок размера батча в одном запросе.
const maxBatchSize = 500

// SubmitTaskRequest — запрос на распределение батча подзадач.
type SubmitTaskRequest struct {
	// MainTaskID — идентификатор задачи генерации отчёта.
	// Пустой — сгенерировать.
	MainTaskID string `json:"main_task_id"`

	Subtasks []domain.Subtask `json:"subtasks"`
}

// validate проверяет запрос и заполняет значения по умолчанию.
func (r *SubmitTaskRequest) validate() error {
	if len(r.Subtasks) == 0 {
		return fmt.Errorf("subtasks are required")
	}
	if len(r.Subtasks) > maxBatchSize {
		return fmt.Errorf("batch too large: %d subtasks, max %d", len(r.Subtasks), maxBatchSize)
	}

	if r.MainTaskID == "" {
		r.MainTaskID = uuid.New().String()
	}

	seen := make(map[string]bool, len(r.Subtasks))
	for i := range r.Subtasks {
		st := &r.Subtasks[i]
		if st.ID == "" {
			return fmt.Errorf("subtask[%d]: id is required", i)
		}
		if seen[st.ID] {
			return fmt.Errorf("duplicate subtask id: %s", st.ID)
		}
		seen[st.ID] = true

		if _, ok := st.Type.WorkerTypeFor(); !ok {
			return fmt.Errorf("subtask %s: unknown type %q", st.ID, st.Type)
		}
	}
	return nil
}

// SubmitTaskResponse — результат распределения батча.
type SubmitTaskResponse struct {
	MainTaskID string                      `json:"main_task_id"`
	Result     *domain.LoadBalancingResult `json:"result"`
}

// SubmitTask обрабатывает POST /api/v1/tasks.
//
// Принимает батч подзадач, возвращает результат распределения.
// Выполнение идёт асинхронно; клиент следит за событиями завершения
// или опрашивает статистику.
func (h *Handler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON: "+err.Error())
		return
	}

	if err := req.validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}

	result, err := h.dispatcher.Submit(r.Context(), req.MainTaskID, req.Subtasks)
	if err != nil {
		if errors.Is(err, dispatcher.ErrStopped) {
			Unavailable(w, "dispatcher is shutting down")
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Accepted(w, SubmitTaskResponse{
		MainTaskID: req.MainTaskID,
		Result:     result,
	})
}

// GetStats обрабатывает GET /api/v1/stats.
func (h *Handler) GetStats(w http.ResponseWriter, _ *http.Request) {
	Success(w, h.dispatcher.Stats())
}

// GetHealth обрабатывает GET /api/v1/health.
func (h *Handler) GetHealth(w http.ResponseWriter, _ *http.Request) {
	report := h.dispatcher.Health()

	status := http.StatusOK
	if report.OverallHealth == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	JSON(w, status, DataResponse{Data: report})
}

// ListWorkers обрабатывает GET /api/v1/workers.
func (h *Handler) ListWorkers(w http.ResponseWriter, _ *http.Request) {
	workers := make(map[string]any, len(domain.AllWorkerTypes()))
	for _, wt := range domain.AllWorkerTypes() {
		if pool, ok := h.balancer.Pool(wt); ok {
			workers[string(wt)] = pool.Snapshot()
		}
	}
	Success(w, workers)
}

// Rebalance обрабатывает POST /api/v1/workers/rebalance.
//
// Ручной запуск обслуживания пулов вне cron-расписания.
func (h *Handler) Rebalance(w http.ResponseWriter, _ *http.Request) {
	h.balancer.RebalanceWorkers()
	Success(w, h.dispatcher.Stats())
}
