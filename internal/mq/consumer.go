package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Provisio/internal/domain"
)

// errDeliveriesClosed — брокер закрыл канал доставки.
var errDeliveriesClosed = errors.New("deliveries channel closed")

// Delivery — доставленное сообщение.
type Delivery struct {
	Message Message

	// Redelivered — брокер уже доставлял это сообщение.
	Redelivered bool
}

// Handler обрабатывает одно сообщение. Ошибка означает nack.
type Handler func(ctx context.Context, d *Delivery) error

// settlement — что сделать с сообщением после обработчика.
type settlement int

const (
	settleAck settlement = iota
	settleRequeue
	settleDeadLetter
)

// settle решает судьбу сообщения: успех подтверждается, первая ошибка
// возвращает сообщение в очередь, повторная отправляет его в DLQ.
func settle(err error, redelivered bool) settlement {
	switch {
	case err == nil:
		return settleAck
	case redelivered:
		return settleDeadLetter
	default:
		return settleRequeue
	}
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Queue — имя очереди (default: wizard.events).
	Queue string

	// Handler — обработчик сообщений (обязательный).
	Handler Handler

	// Prefetch (default: 1).
	Prefetch int
}

// Consumer читает очередь и передаёт сообщения обработчику по одному.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	queue := cfg.Queue
	if queue == "" {
		queue = string(QueueWizardEvents)
	}
	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", queue),
		queue:    queue,
		handler:  cfg.Handler,
		prefetch: max(cfg.Prefetch, 1),
	}
}

// Run читает очередь до отмены ctx. После разрыва соединения ждёт
// переподключения и подписывается заново.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		deliveries, err := c.subscribe()
		if err == nil {
			c.logger.Info("consumer started")
			err = c.loop(ctx, deliveries)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("consumer interrupted, waiting for reconnect", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.Reconnected():
		}
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	// manual ack, имя консьюмера выдаёт брокер
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

func (c *Consumer) loop(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.deliver(ctx, raw)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message, dead-lettering", "error", err, "body", string(raw.Body))
		raw.Nack(false, false)
		return
	}

	err := c.handler(ctx, &Delivery{Message: msg, Redelivered: raw.Redelivered})

	switch settle(err, raw.Redelivered) {
	case settleAck:
		c.logger.Debug("message handled", "message_id", msg.ID, "type", msg.Type)
		raw.Ack(false)
	case settleRequeue:
		c.logger.Warn("handler failed, requeueing", "message_id", msg.ID, "error", err)
		raw.Nack(false, true)
	case settleDeadLetter:
		c.logger.Error("handler failed again, dead-lettering", "message_id", msg.ID, "error", err)
		raw.Nack(false, false)
	}
}

// EventHandler — обработчик событий мастера.
type EventHandler func(ctx context.Context, ev domain.Event) error

// HandleEvents адаптирует EventHandler к Handler.
// Сообщения других типов подтверждаются без обработки.
func HandleEvents(fn EventHandler) Handler {
	return func(ctx context.Context, d *Delivery) error {
		if d.Message.Type != MessageTypeWizardEvent {
			return nil
		}
		ev, err := ParsePayload[domain.Event](&d.Message)
		if err != nil {
			return err
		}
		return fn(ctx, ev)
	}
}

// ParsePayload декодирует Payload сообщения в T.
// После json.Unmarshal в Message payload лежит как map, поэтому он кодируется заново.
func ParsePayload[T any](msg *Message) (T, error) {
	var out T
	b, err := json.Marshal(msg.Payload)
	if err != nil {
		return out, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return out, nil
}
