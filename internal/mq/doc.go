// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — Dial, переподключение с растущей паузой, Healthy для /healthz
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий мастера (EventPublisher)
//   - consumer.go   — аудит на бэкенде: ack, повтор один раз, затем DLQ
//
// Типы сообщений:
//   - wizard.event — событие прохождения мастера (payload — domain.Event)
//
// Exchanges:
//   - provisio.wizard — события мастера, routing key = тип события
//   - provisio.dlq    — dead letter queue
package mq
