package executor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
)

const (
	// defaultAgentModel — модель для анализа плейсхолдеров.
	defaultAgentModel = "claude-3-5-haiku-latest"

	defaultAgentMaxTokens = 1024
	defaultAgentTimeout   = 60 * time.Second
)

// analysisSystemPrompt — системный промпт для анализа плейсхолдеров.
//
// Агент получает описание плейсхолдера и контекст отчёта и возвращает
// текст секции либо параметры SQL-запроса для последующих подзадач.
const analysisSystemPrompt = `You are a report analysis assistant.
You receive a report placeholder description and surrounding context.
Respond with the analysis text for that placeholder only, no preamble.`

// AgentExecutor — executor для подзадачи PLACEHOLDER_ANALYSIS.
//
// Payload:
//   - prompt (string): описание плейсхолдера и контекст (обязательно)
//   - model (string): переопределение модели
//   - timeout_sec (number): таймаут запроса. Default: 60
//
// Outputs:
//   - text (string): текст анализа
//   - model (string): использованная модель
type AgentExecutor struct {
	client anthropic.Client
	model  string
}

// NewAgentExecutor создаёт AgentExecutor.
// API-ключ берётся из ANTHROPIC_API_KEY.
func NewAgentExecutor() (*AgentExecutor, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY is not set", ErrAgentRequest)
	}

	return &AgentExecutor{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  defaultAgentModel,
	}, nil
}

// Execute выполняет анализ плейсхолдера через Anthropic API.
func (e *AgentExecutor) Execute(ctx context.Context, subtask *domain.Subtask) (*Result, error) {
	prompt := getString(subtask.Payload, "prompt", "")
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidPayload)
	}

	model := getString(subtask.Payload, "model", e.model)

	ctx, cancel := context.WithTimeout(ctx, getTimeout(subtask.Payload, defaultAgentTimeout))
	defer cancel()

	message, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: defaultAgentMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: analysisSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAgentRequest, err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		sb.WriteString(block.Text)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		// Пустой ответ — логическая ошибка, сеть и API в порядке
		return &Result{Error: "agent returned empty analysis"}, nil
	}

	return &Result{
		Outputs: map[string]any{
			"text":  text,
			"model": model,
		},
	}, nil
}
