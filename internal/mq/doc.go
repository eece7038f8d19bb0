// Package mq — событийный транспорт диспетчера на RabbitMQ.
//
// Бизнес-слой публикует батчи подзадач в subtasks.pending;
// dispatcher потребляет их, распределяет по пулам и публикует
// результаты выполнения в subtasks.completed. Ядро распределения
// (balancer, resilience) про транспорт ничего не знает.
//
// Включает:
//   - connection.go — обёртка соединения с автоматическим reconnect
//   - topology.go — exchanges, очереди и binding'и
//   - publisher.go — публикация типизированных сообщений
//   - consumer.go — потребление с ручным ack/nack
package mq
