package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// --- Response types (дублируются из api, CLI не импортирует internal/api) ---

// PoolStatsResponse — статистика одного пула из API.
type PoolStatsResponse struct {
	WorkerType     string  `json:"worker_type"`
	ActiveWorkers  int     `json:"active_workers"`
	TotalCapacity  int     `json:"total_capacity"`
	CurrentLoad    int     `json:"current_load"`
	LoadRatio      float64 `json:"load_ratio"`
	AvgSuccessRate float64 `json:"avg_success_rate"`
}

// BatchStatsResponse — агрегат батча из окна статистики.
type BatchStatsResponse struct {
	BalanceScore  float64 `json:"balance_score"`
	RejectionRate float64 `json:"rejection_rate"`
}

// StatsResponse — статистика балансировщика из API.
type StatsResponse struct {
	Pools         map[string]PoolStatsResponse `json:"pools"`
	RecentBatches []BatchStatsResponse         `json:"recent_batches"`
}

// WorkerResponse — воркер из API.
type WorkerResponse struct {
	WorkerID         string  `json:"worker_id"`
	WorkerType       string  `json:"worker_type"`
	CurrentLoad      int     `json:"current_load"`
	MaxCapacity      int     `json:"max_capacity"`
	AvgExecutionTime float64 `json:"avg_execution_time"`
	SuccessRate      float64 `json:"success_rate"`
	LastHeartbeat    string  `json:"last_heartbeat"`
	IsActive         bool    `json:"is_active"`
}

// HealthResponse — отчёт о здоровье из API.
type HealthResponse struct {
	OverallHealth        string            `json:"overall_health"`
	UnhealthyConnections []string          `json:"unhealthy_connections"`
	TotalCircuitBreakers int               `json:"total_circuit_breakers"`
	OpenCircuitBreakers  int               `json:"open_circuit_breakers"`
	BreakerStates        map[string]string `json:"breaker_states"`
}

// AllocationResponse — размещение подзадачи из API.
type AllocationResponse struct {
	TaskID            string `json:"task_id"`
	SubtaskID         string `json:"subtask_id"`
	WorkerID          string `json:"worker_id"`
	WorkerType        string `json:"worker_type"`
	Priority          int    `json:"priority"`
	EstimatedDuration int    `json:"estimated_duration"`
}

// SubmitResultResponse — результат распределения батча из API.
type SubmitResultResponse struct {
	MainTaskID string `json:"main_task_id"`
	Result     struct {
		Allocations        []AllocationResponse `json:"allocations"`
		TotalEstimatedTime int                  `json:"total_estimated_time"`
		LoadBalanceScore   float64              `json:"load_balance_score"`
		RejectedSubtaskIDs []string             `json:"rejected_subtask_ids"`
	} `json:"result"`
}

// --- Request types ---

// SubtaskRequest — подзадача в запросе на распределение.
type SubtaskRequest struct {
	ID                string         `json:"id"`
	Type              string         `json:"type"`
	Priority          int            `json:"priority"`
	EstimatedDuration int            `json:"estimated_duration,omitempty"`
	Payload           map[string]any `json:"payload,omitempty"`
}

// SubmitTaskRequest — запрос на распределение батча.
type SubmitTaskRequest struct {
	MainTaskID string           `json:"main_task_id,omitempty"`
	Subtasks   []SubtaskRequest `json:"subtasks"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для API диспетчера.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Stats возвращает статистику балансировщика.
func (c *Client) Stats() (*StatsResponse, error) {
	var stats StatsResponse
	err := c.get("/api/v1/stats", &stats)
	return &stats, err
}

// Health возвращает отчёт о здоровье зависимостей.
// 503 — тоже валидный ответ: тело содержит отчёт с деталями.
func (c *Client) Health() (*HealthResponse, error) {
	resp, err := c.do(http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var health HealthResponse
	if err := json.Unmarshal(dr.Data, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// ListWorkers возвращает воркеров по типам пулов.
func (c *Client) ListWorkers() (map[string][]WorkerResponse, error) {
	var workers map[string][]WorkerResponse
	err := c.get("/api/v1/workers", &workers)
	return workers, err
}

// SubmitTask отправляет батч подзадач на распределение.
func (c *Client) SubmitTask(req SubmitTaskRequest) (*SubmitResultResponse, error) {
	var result SubmitResultResponse
	err := c.post("/api/v1/tasks", req, &result)
	return &result, err
}

// Rebalance запускает ручную ребалансировку пулов.
func (c *Client) Rebalance() (*StatsResponse, error) {
	var stats StatsResponse
	err := c.post("/api/v1/workers/rebalance", nil, &stats)
	return &stats, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
