package mq

import (
	"testing"

	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
)

func TestNewMessageAndParsePayload(t *testing.T) {
	original := SubtaskBatchPayload{
		MainTaskID: "report-42",
		Subtasks: []domain.Subtask{
			{
				ID:                "st-1",
				Type:              domain.SubtaskSQLQuery,
				Priority:          7,
				EstimatedDuration: 3,
				Payload:           map[string]any{"query": "SELECT 1"},
			},
		},
	}

	msg, err := NewMessage(MessageTypeBatchPending, original)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	if msg.ID == "" {
		t.Error("message ID is empty")
	}
	if msg.Type != MessageTypeBatchPending {
		t.Errorf("type = %s, want %s", msg.Type, MessageTypeBatchPending)
	}

	parsed, err := ParsePayload[SubtaskBatchPayload](msg)
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}

	if parsed.MainTaskID != original.MainTaskID {
		t.Errorf("main task id = %s, want %s", parsed.MainTaskID, original.MainTaskID)
	}
	if len(parsed.Subtasks) != 1 {
		t.Fatalf("subtasks = %d, want 1", len(parsed.Subtasks))
	}
	if parsed.Subtasks[0].Type != domain.SubtaskSQLQuery {
		t.Errorf("subtask type = %s, want %s", parsed.Subtasks[0].Type, domain.SubtaskSQLQuery)
	}
}

func TestParsePayloadMalformed(t *testing.T) {
	msg := &Message{
		ID:      "m-1",
		Type:    MessageTypeSubtaskCompleted,
		Payload: []byte(`{"main_task_id": 123`),
	}

	if _, err := ParsePayload[SubtaskCompletedPayload](msg); err == nil {
		t.Error("expected error for malformed payload")
	}
}
