package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
)

type stubExecutor struct {
	result *Result
	err    error
}

func (s *stubExecutor) Execute(_ context.Context, _ *domain.Subtask) (*Result, error) {
	return s.result, s.err
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	stub := &stubExecutor{result: &Result{Outputs: map[string]any{"ok": true}}}
	r.Register(domain.SubtaskSQLQuery, stub)

	got, err := r.Get(domain.SubtaskSQLQuery)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != stub {
		t.Error("registry returned different executor")
	}

	_, err = r.Get(domain.SubtaskReportCompile)
	if !errors.Is(err, ErrUnknownSubtaskType) {
		t.Errorf("expected ErrUnknownSubtaskType, got %v", err)
	}
}

func TestCompileExecutor(t *testing.T) {
	e := NewCompileExecutor()

	subtask := &domain.Subtask{
		ID:   "st-compile",
		Type: domain.SubtaskReportCompile,
		Payload: map[string]any{
			"template": "Revenue: {{.sections.revenue}}, Costs: {{.sections.costs}}",
			"sections": map[string]any{
				"revenue": "120k",
				"costs":   "80k",
			},
		},
	}

	result, err := e.Execute(context.Background(), subtask)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Error != "" {
		t.Fatalf("unexpected logical error: %s", result.Error)
	}

	content, _ := result.Outputs["content"].(string)
	want := "Revenue: 120k, Costs: 80k"
	if content != want {
		t.Errorf("content = %q, want %q", content, want)
	}
	if result.Outputs["length"] != len(want) {
		t.Errorf("length = %v, want %d", result.Outputs["length"], len(want))
	}
}

func TestCompileExecutorMissingTemplate(t *testing.T) {
	e := NewCompileExecutor()

	_, err := e.Execute(context.Background(), &domain.Subtask{
		ID:      "st-compile",
		Type:    domain.SubtaskReportCompile,
		Payload: map[string]any{},
	})
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestCompileExecutorBadTemplate(t *testing.T) {
	e := NewCompileExecutor()

	// Синтаксическая ошибка шаблона — логическая ошибка, не error
	result, err := e.Execute(context.Background(), &domain.Subtask{
		ID:   "st-compile",
		Type: domain.SubtaskReportCompile,
		Payload: map[string]any{
			"template": "{{.sections.revenue",
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Error == "" {
		t.Error("expected logical error for malformed template")
	}
}

func TestApplyProjection(t *testing.T) {
	rows := []map[string]any{
		{"region": "EU", "revenue": 100, "internal_id": 1},
		{"region": "US", "revenue": 200, "internal_id": 2},
	}

	got := applyProjection(rows, map[string]any{
		"fields": []any{"region", "revenue"},
	})

	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}
	for _, row := range got {
		if _, ok := row["internal_id"]; ok {
			t.Error("internal_id should be projected out")
		}
		if _, ok := row["region"]; !ok {
			t.Error("region should be kept")
		}
	}
}

func TestApplyRename(t *testing.T) {
	rows := []map[string]any{
		{"rev": 100},
	}

	got := applyRename(rows, map[string]any{
		"rename": map[string]any{"rev": "revenue"},
	})

	if got[0]["revenue"] != 100 {
		t.Errorf("revenue = %v, want 100", got[0]["revenue"])
	}
	if _, ok := got[0]["rev"]; ok {
		t.Error("old column name should be removed")
	}
}

func TestGetTimeout(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		wantSec float64
	}{
		{"default", map[string]any{}, 30},
		{"float from json", map[string]any{"timeout_sec": 5.0}, 5},
		{"int", map[string]any{"timeout_sec": 10}, 10},
		{"non-positive ignored", map[string]any{"timeout_sec": -1.0}, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := getTimeout(tt.payload, defaultQueryTimeout)
			if got.Seconds() != tt.wantSec {
				t.Errorf("timeout = %v, want %vs", got, tt.wantSec)
			}
		})
	}
}
