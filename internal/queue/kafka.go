package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const typeHeader = "type"

// KafkaQueue writes events to a topic and reads them through a consumer group.
type KafkaQueue struct {
	writer  *kafka.Writer
	brokers []string
	topic   string
	groupID string
}

// NewKafkaQueue creates a Kafka-backed queue. brokers must be non-empty.
func NewKafkaQueue(brokers []string, topic, groupID string) (*KafkaQueue, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("queue: kafka backend requires brokers")
	}
	if topic == "" {
		topic = "rollcall-events"
	}
	if groupID == "" {
		groupID = "rollcall-worker"
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaQueue{writer: writer, brokers: brokers, topic: topic, groupID: groupID}, nil
}

// Publish writes msg with a short timeout so a slow broker does not block callers.
func (q *KafkaQueue) Publish(ctx context.Context, msg Message) error {
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return q.writer.WriteMessages(writeCtx, kafka.Message{
		Value:   msg.Body,
		Headers: []kafka.Header{{Key: typeHeader, Value: []byte(msg.Type)}},
	})
}

// Consume reads the topic as part of the configured consumer group.
func (q *KafkaQueue) Consume(ctx context.Context) (<-chan Message, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        q.brokers,
		Topic:          q.topic,
		GroupID:        q.groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
	out := make(chan Message)
	go func() {
		defer close(out)
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("kafka read failed", "topic", q.topic, "error", err)
				continue
			}
			msg := Message{Body: m.Value}
			for _, h := range m.Headers {
				if h.Key == typeHeader {
					msg.Type = string(h.Value)
				}
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (q *KafkaQueue) Close() error {
	if q.writer == nil {
		return nil
	}
	return q.writer.Close()
}
