package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeWizard Exchange = "provisio.wizard"
	ExchangeDLQ    Exchange = "provisio.dlq"
)

// Queues — имена очередей.
const (
	QueueWizardEvents Queue = "wizard.events"
	QueueDLQEvents    Queue = "dlq.wizard.events"
)

// Routing keys.
const (
	// RoutingKeyAll — все события мастера (ключ события = его тип, например "step.entered").
	RoutingKeyAll RoutingKey = "#"

	RoutingKeyDLQEvents RoutingKey = "wizard.events"
)

// binding — привязка очереди к обменнику.
type binding struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

var (
	exchanges = []struct {
		name Exchange
		kind string
	}{
		{ExchangeWizard, amqp.ExchangeTopic},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	queues = []struct {
		name Queue
		args amqp.Table
	}{
		// wizard.events — аудит, с DLQ для событий, которые не удалось сохранить
		{QueueWizardEvents, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQEvents),
		}},

		// dlq.wizard.events — ручная обработка
		{QueueDLQEvents, nil},
	}

	bindings = []binding{
		{QueueWizardEvents, RoutingKeyAll, ExchangeWizard},
		{QueueDLQEvents, RoutingKeyDLQEvents, ExchangeDLQ},
	}
)

// SetupTopology объявляет обменники, очереди и привязки.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range exchanges {
			err := ch.ExchangeDeclare(
				string(ex.name), // name
				ex.kind,         // type
				true,            // durable
				false,           // auto-deleted
				false,           // internal
				false,           // no-wait
				nil,             // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		for _, q := range queues {
			_, err := ch.QueueDeclare(
				string(q.name), // name
				true,           // durable
				false,          // delete when unused
				false,          // exclusive
				false,          // no-wait
				q.args,         // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		for _, b := range bindings {
			err := ch.QueueBind(
				string(b.queue),      // queue name
				string(b.routingKey), // routing key
				string(b.exchange),   // exchange
				false,                // no-wait
				nil,                  // arguments
			)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Provisio RabbitMQ Topology:

    provisio.wizard (topic)
    └── wizard.events [routing: #]
            Consumer: provisio-api (audit)
            DLQ: dlq.wizard.events

    provisio.dlq (direct)
    └── dlq.wizard.events [routing: wizard.events]
            Manual processing
  `
}
