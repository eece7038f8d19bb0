package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kongusen/AutoReportAI-sub016/internal/balancer"
	"github.com/kongusen/AutoReportAI-sub016/internal/dispatcher"
	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
	"github.com/kongusen/AutoReportAI-sub016/internal/executor"
	"github.com/kongusen/AutoReportAI-sub016/internal/resilience"
)

type okExecutor struct{}

func (okExecutor) Execute(_ context.Context, _ *domain.Subtask) (*executor.Result, error) {
	return &executor.Result{Outputs: map[string]any{"ok": true}}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *dispatcher.Dispatcher) {
	t.Helper()

	registry := executor.NewRegistry()
	for _, st := range []domain.SubtaskType{
		domain.SubtaskPlaceholderAnalysis,
		domain.SubtaskSQLQuery,
		domain.SubtaskDataExtraction,
		domain.SubtaskReportCompile,
		domain.SubtaskCacheUpdate,
	} {
		registry.Register(st, okExecutor{})
	}

	b := balancer.New(balancer.Config{})
	d := dispatcher.New(dispatcher.Config{
		Balancer:   b,
		Registry:   registry,
		Resilience: resilience.NewManager(resilience.Config{}),
	})

	h := NewHandler(Config{
		Dispatcher: d,
		Balancer:   b,
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, d
}

func TestSubmitTask(t *testing.T) {
	srv, d := newTestServer(t)

	body := `{
		"main_task_id": "report-7",
		"subtasks": [
			{"id": "st-1", "type": "SQL_QUERY", "priority": 5},
			{"id": "st-2", "type": "SQL_QUERY", "priority": 9}
		]
	}`

	resp, err := http.Post(srv.URL+"/api/v1/tasks", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/v1/tasks: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	var envelope struct {
		Data SubmitTaskResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if envelope.Data.MainTaskID != "report-7" {
		t.Errorf("main_task_id = %s, want report-7", envelope.Data.MainTaskID)
	}
	if got := len(envelope.Data.Result.Allocations); got != 2 {
		t.Errorf("allocations = %d, want 2", got)
	}
	if len(envelope.Data.Result.RejectedSubtaskIDs) != 0 {
		t.Errorf("unexpected rejections: %v", envelope.Data.Result.RejectedSubtaskIDs)
	}

	d.Stop()
}

func TestSubmitTaskValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty subtasks", `{"main_task_id": "r", "subtasks": []}`},
		{"missing subtask id", `{"subtasks": [{"type": "SQL_QUERY"}]}`},
		{"unknown type", `{"subtasks": [{"id": "st-1", "type": "NOPE"}]}`},
		{"duplicate id", `{"subtasks": [{"id": "st-1", "type": "SQL_QUERY"}, {"id": "st-1", "type": "SQL_QUERY"}]}`},
		{"malformed json", `{"subtasks": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/tasks", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestGetStats(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/stats")
	if err != nil {
		t.Fatalf("GET /api/v1/stats: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var envelope struct {
		Data balancer.LoadStatistics `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if len(envelope.Data.Pools) != len(domain.AllWorkerTypes()) {
		t.Errorf("pools = %d, want %d", len(envelope.Data.Pools), len(domain.AllWorkerTypes()))
	}
}

func TestGetHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET /api/v1/health: %v", err)
	}
	defer resp.Body.Close()

	// Без единого запроса все зависимости считаются здоровыми
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestListWorkers(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/workers")
	if err != nil {
		t.Fatalf("GET /api/v1/workers: %v", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data map[string][]balancer.WorkerInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	for _, wt := range domain.AllWorkerTypes() {
		workers, ok := envelope.Data[string(wt)]
		if !ok {
			t.Errorf("missing pool %s", wt)
			continue
		}
		if len(workers) == 0 {
			t.Errorf("pool %s has no workers", wt)
		}
	}
}

func TestRebalance(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/workers/rebalance", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/v1/workers/rebalance: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
