package mq

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges.
const (
	ExchangeRuns Exchange = "player.runs"
	ExchangeDLQ  Exchange = "player.dlq"
)

// Queues.
const (
	QueueRunsPending  Queue = "runs.pending"
	QueueRunsFinished Queue = "runs.finished"
	QueueDLQRuns      Queue = "dlq.runs"
)

// Routing keys.
const (
	RoutingKeyPending  RoutingKey = "pending"
	RoutingKeyFinished RoutingKey = "finished"
	RoutingKeyDLQRuns  RoutingKey = "runs"
)

type queueSpec struct {
	name     Queue
	exchange Exchange
	key      RoutingKey
	args     amqp.Table
	consumer string
}

// topology — все очереди Player с их привязками.
var topology = []queueSpec{
	{
		name:     QueueRunsPending,
		exchange: ExchangeRuns,
		key:      RoutingKeyPending,
		args: amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
		},
		consumer: "player-worker",
	},
	{
		name:     QueueRunsFinished,
		exchange: ExchangeRuns,
		key:      RoutingKeyFinished,
		consumer: "host application",
	},
	{
		name:     QueueDLQRuns,
		exchange: ExchangeDLQ,
		key:      RoutingKeyDLQRuns,
		consumer: "manual processing",
	},
}

// SetupTopology объявляет exchanges и очереди и связывает их.
// Повторный вызов безопасен.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range []Exchange{ExchangeRuns, ExchangeDLQ} {
			if err := ch.ExchangeDeclare(string(ex), "direct", true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		for _, q := range topology {
			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
			if err := ch.QueueBind(string(q.name), string(q.key), string(q.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", q.name, q.exchange, err)
			}
		}
		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	var b strings.Builder
	b.WriteString("Player RabbitMQ topology:\n")
	for _, q := range topology {
		fmt.Fprintf(&b, "  %s (direct) -> %s [routing: %s] consumer: %s", q.exchange, q.name, q.key, q.consumer)
		if dlx, ok := q.args["x-dead-letter-exchange"]; ok {
			fmt.Fprintf(&b, ", DLQ via %s", dlx)
		}
		b.WriteString("\n")
	}
	return b.String()
}
