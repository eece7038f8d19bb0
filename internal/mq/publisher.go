package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kongusen/AutoReportAI-sub016/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeBatchPending     MessageType = "batch.pending"
	MessageTypeSubtaskCompleted MessageType = "subtask.completed"
)

// Message — сообщение в очереди.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка (тип зависит от Type).
	Payload json.RawMessage `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// SubtaskBatchPayload — payload батча подзадач на распределение.
type SubtaskBatchPayload struct {
	MainTaskID string           `json:"main_task_id"`
	Subtasks   []domain.Subtask `json:"subtasks"`
}

// SubtaskCompletedPayload — payload результата выполнения подзадачи.
type SubtaskCompletedPayload struct {
	MainTaskID string            `json:"main_task_id"`
	SubtaskID  string            `json:"subtask_id"`
	WorkerID   string            `json:"worker_id,omitempty"`
	WorkerType domain.WorkerType `json:"worker_type,omitempty"`

	// Status: SUCCEEDED, FAILED или REJECTED (не нашлось ёмкости).
	Status string `json:"status"`

	Error      string         `json:"error,omitempty"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
}

// Статусы завершения подзадачи.
const (
	CompletionSucceeded = "SUCCEEDED"
	CompletionFailed    = "FAILED"
	CompletionRejected  = "REJECTED"
)

// ParsePayload распаковывает payload сообщения в тип T.
func ParsePayload[T any](msg *Message) (T, error) {
	var payload T
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, fmt.Errorf("parse %s payload: %w", msg.Type, err)
	}
	return payload, nil
}

// NewMessage собирает сообщение с сериализованным payload.
func NewMessage(msgType MessageType, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now(),
	}, nil
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishSubtaskBatch публикует батч подзадач на распределение.
// Потребитель: Dispatcher.
func (p *Publisher) PublishSubtaskBatch(ctx context.Context, mainTaskID string, subtasks []domain.Subtask) error {
	msg, err := NewMessage(MessageTypeBatchPending, SubtaskBatchPayload{
		MainTaskID: mainTaskID,
		Subtasks:   subtasks,
	})
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeTasks, RoutingKeyPending, msg)
}

// PublishSubtaskCompleted публикует результат выполнения подзадачи.
// Потребитель: бизнес-слой, породивший батч.
func (p *Publisher) PublishSubtaskCompleted(ctx context.Context, payload SubtaskCompletedPayload) error {
	msg, err := NewMessage(MessageTypeSubtaskCompleted, payload)
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeTasks, RoutingKeyCompleted, msg)
}
