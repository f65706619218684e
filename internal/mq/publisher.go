package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shaiso/Provisio/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeWizardEvent MessageType = "wizard.event"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
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

// EventPublisher публикует события мастера в provisio.wizard.
//
// Реализует orchestrator.EventSink.
type EventPublisher struct {
	publisher *Publisher
}

// NewEventPublisher создаёт EventPublisher.
func NewEventPublisher(p *Publisher) *EventPublisher {
	return &EventPublisher{publisher: p}
}

// Emit публикует событие с routing key, равным типу события.
func (e *EventPublisher) Emit(ctx context.Context, ev domain.Event) error {
	msg := EventMessage(ev)
	return e.publisher.Publish(ctx, ExchangeWizard, RoutingKey(ev.Type), msg)
}

// EventMessage заворачивает событие в Message.
func EventMessage(ev domain.Event) *Message {
	id := ev.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return &Message{
		ID:        id.String(),
		Type:      MessageTypeWizardEvent,
		Payload:   ev,
		Timestamp: ts,
	}
}
