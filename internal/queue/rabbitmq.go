package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQQueue publishes to and consumes from a durable RabbitMQ queue.
type RabbitMQQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	name string
}

// NewRabbitMQQueue dials url and declares the queue.
func NewRabbitMQQueue(url, name string) (*RabbitMQQueue, error) {
	if name == "" {
		name = "rollcall.events"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq declare %s: %w", name, err)
	}
	return &RabbitMQQueue{conn: conn, ch: ch, name: name}, nil
}

// Publish sends a persistent message; the event type travels in the AMQP type property.
func (q *RabbitMQQueue) Publish(ctx context.Context, msg Message) error {
	return q.ch.PublishWithContext(ctx, "", q.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         msg.Type,
		Timestamp:    time.Now().UTC(),
		Body:         msg.Body,
	})
}

// Consume opens a dedicated channel and acks each delivery once it is handed off.
func (q *RabbitMQQueue) Consume(ctx context.Context) (<-chan Message, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq consumer channel: %w", err)
	}
	deliveries, err := ch.Consume(q.name, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("rabbitmq consume %s: %w", q.name, err)
	}
	out := make(chan Message)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- Message{Type: d.Type, Body: d.Body}:
					if err := d.Ack(false); err != nil {
						slog.Warn("rabbitmq ack failed", "queue", q.name, "error", err)
					}
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

func (q *RabbitMQQueue) Close() error {
	if q.ch != nil {
		if err := q.ch.Close(); err != nil {
			return err
		}
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
