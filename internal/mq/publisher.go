package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunPending  MessageType = "run.pending"
	MessageTypeRunFinished MessageType = "run.finished"
)

// Message — конверт сообщения.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// RunPendingPayload — run создан и ждёт выполнения.
type RunPendingPayload struct {
	RunID uuid.UUID `json:"run_id"`
}

// RunFinishedPayload — run достиг терминального состояния.
type RunFinishedPayload struct {
	RunID uuid.UUID `json:"run_id"`
	State string    `json:"state"`
}

// Publisher публикует события runs.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{conn: conn, logger: logger}
}

// newMessage оборачивает payload в конверт с новым ID.
func newMessage(t MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Publish публикует сообщение как persistent JSON.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         string(msg.Type),
			Timestamp:    msg.Timestamp,
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish %s to %s/%s: %w", msg.Type, exchange, routingKey, err)
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

// PublishRunPending сообщает воркерам о новом run.
func (p *Publisher) PublishRunPending(ctx context.Context, runID uuid.UUID) error {
	msg := newMessage(MessageTypeRunPending, RunPendingPayload{RunID: runID})
	return p.Publish(ctx, ExchangeRuns, RoutingKeyPending, msg)
}

// PublishRunFinished сообщает хост-приложению об итоге run.
func (p *Publisher) PublishRunFinished(ctx context.Context, runID uuid.UUID, state string) error {
	msg := newMessage(MessageTypeRunFinished, RunFinishedPayload{RunID: runID, State: state})
	return p.Publish(ctx, ExchangeRuns, RoutingKeyFinished, msg)
}
