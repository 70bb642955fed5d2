package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"bookswap/internal/domain"
)

const (
	eventsExchange    = "chat.events"
	appendedKey       = "chat.message.appended"
	notificationQueue = "notifications.email"
)

// RabbitMQ publishes chat events for external consumers. The email
// notification service binds to the notifications queue; delivery of the
// emails themselves happens outside this process.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// MessageAppendedEvent is emitted after a message commit
type MessageAppendedEvent struct {
	EventID       string      `json:"event_id"`
	ThreadID      string      `json:"thread_id"`
	BookID        string      `json:"book_id"`
	SenderRole    domain.Role `json:"sender_role"`
	RecipientID   string      `json:"recipient_id"`
	RecipientRole domain.Role `json:"recipient_role"`
	Preview       string      `json:"preview"`
	Timestamp     int64       `json:"timestamp"`
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		channel: ch,
	}

	if err := rmq.Setup(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

// NewRabbitMQWithRetry dials with backoff until the context expires.
// The broker commonly starts after the app in container environments.
func NewRabbitMQWithRetry(ctx context.Context, url string) (*RabbitMQ, error) {
	backoff := time.Second
	for {
		rmq, err := NewRabbitMQ(url)
		if err == nil {
			return rmq, nil
		}

		slog.Warn("rabbitmq not ready, retrying",
			slog.String("error", err.Error()),
			slog.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq connection timed out: %w", err)
		case <-time.After(backoff):
		}

		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

// Setup declares the events exchange and the notification queue binding
func (r *RabbitMQ) Setup() error {
	if err := r.channel.ExchangeDeclare(
		eventsExchange, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	); err != nil {
		return fmt.Errorf("failed to declare events exchange: %w", err)
	}

	if _, err := r.channel.QueueDeclare(
		notificationQueue, // name
		true,              // durable
		false,             // delete when unused
		false,             // exclusive
		false,             // no-wait
		nil,               // arguments
	); err != nil {
		return fmt.Errorf("failed to declare notification queue: %w", err)
	}

	if err := r.channel.QueueBind(
		notificationQueue,
		appendedKey,
		eventsExchange,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind notification queue: %w", err)
	}

	slog.Info("rabbitmq setup completed successfully")
	return nil
}

// PublishMessageAppended emits a message-appended event. An event id is
// assigned if the caller did not set one.
func (r *RabbitMQ) PublishMessageAppended(ctx context.Context, event *MessageAppendedEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		eventsExchange,
		appendedKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.EventID,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	slog.Debug("published message appended event",
		slog.String("event_id", event.EventID),
		slog.String("thread_id", event.ThreadID))
	return nil
}

func (r *RabbitMQ) IsClosed() bool {
	return r.conn == nil || r.conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
