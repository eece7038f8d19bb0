package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// defaultPrefetch — сколько сообщений воркер берёт без подтверждения.
const defaultPrefetch = 8

// Handler обрабатывает сообщение из очереди.
//
// Возврат nil — ack; возврат ошибки — nack без requeue
// (сообщение уходит в DLQ, если очередь так настроена).
type Handler func(ctx context.Context, msg *Message) error

// Consumer потребляет сообщения из очереди с ручным подтверждением.
type Consumer struct {
	conn     *Connection
	queue    Queue
	prefetch int
	logger   *slog.Logger
}

// ConsumerConfig — параметры Consumer.
type ConsumerConfig struct {
	Queue Queue

	// Prefetch — QoS prefetch count. По умолчанию 8.
	Prefetch int

	Logger *slog.Logger
}

// NewConsumer создаёт Consumer для очереди.
func NewConsumer(conn *Connection, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	return &Consumer{
		conn:     conn,
		queue:    cfg.Queue,
		prefetch: prefetch,
		logger:   cfg.Logger,
	}
}

// Run запускает цикл потребления до отмены контекста.
//
// При разрыве соединения цикл ждёт уведомления о reconnect
// и переподписывается на очередь.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		if err := c.consumeOnce(ctx, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("consume loop interrupted",
				"queue", c.queue,
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
			c.logger.Info("resubscribing after reconnect", "queue", c.queue)
		}
	}
}

// consumeOnce подписывается на очередь и обрабатывает поставки,
// пока не закроется канал поставок или контекст.
func (c *Consumer) consumeOnce(ctx context.Context, handler Handler) error {
	ch := c.conn.Channel()
	if ch == nil {
		return fmt.Errorf("no channel available")
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(c.queue), // queue
		"",              // consumer tag
		false,           // auto-ack
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}

	c.logger.Info("consuming", "queue", c.queue, "prefetch", c.prefetch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handleDelivery(ctx, &d, handler)
		}
	}
}

// handleDelivery разбирает и обрабатывает одну поставку.
func (c *Consumer) handleDelivery(ctx context.Context, d *amqp.Delivery, handler Handler) {
	var msg Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		// Некорректный JSON — ретраить бесполезно
		c.logger.Error("malformed message",
			"queue", c.queue,
			"message_id", d.MessageId,
			"error", err,
		)
		c.nack(d)
		return
	}

	if err := handler(ctx, &msg); err != nil {
		c.logger.Warn("handler failed",
			"queue", c.queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		c.nack(d)
		return
	}

	if err := d.Ack(false); err != nil {
		c.logger.Error("ack failed",
			"queue", c.queue,
			"message_id", msg.ID,
			"error", err,
		)
	}
}

// nack отклоняет поставку без requeue.
func (c *Consumer) nack(d *amqp.Delivery) {
	if err := d.Nack(false, false); err != nil {
		c.logger.Error("nack failed",
			"queue", c.queue,
			"message_id", d.MessageId,
			"error", err,
		)
	}
}
