package executor

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
)

// CompileExecutor — executor для подзадачи REPORT_COMPILE.
//
// Собирает секцию отчёта из шаблона и готовых данных секций.
// Шаблон — text/template; в качестве данных доступны sections.
//
// Payload:
//   - template (string): текст шаблона (обязательно)
//   - sections (map[string]any): данные секций, доступные в шаблоне
//
// Outputs:
//   - content (string): собранный текст секции
//   - length (int): длина текста
type CompileExecutor struct{}

// NewCompileExecutor создаёт CompileExecutor.
func NewCompileExecutor() *CompileExecutor {
	return &CompileExecutor{}
}

// Execute рендерит шаблон секции отчёта.
func (e *CompileExecutor) Execute(_ context.Context, subtask *domain.Subtask) (*Result, error) {
	tmplText := getString(subtask.Payload, "template", "")
	if tmplText == "" {
		return nil, fmt.Errorf("%w: template is required", ErrInvalidPayload)
	}

	sections, _ := subtask.Payload["sections"].(map[string]any)

	tmpl, err := template.New("section").Option("missingkey=error").Parse(tmplText)
	if err != nil {
		// Битый шаблон — логическая ошибка, retry не поможет
		return &Result{
			Error: fmt.Sprintf("parse template: %v", err),
		}, nil
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, map[string]any{"sections": sections}); err != nil {
		return &Result{
			Error: fmt.Sprintf("render template: %v", err),
		}, nil
	}

	content := sb.String()
	return &Result{
		Outputs: map[string]any{
			"content": content,
			"length":  len(content),
		},
	}, nil
}
