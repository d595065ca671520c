package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Message represents work to be processed.
type Message struct {
	Type string
	Body []byte
}

// Publisher is the write side of a queue.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Queue is the abstraction over different backends.
type Queue interface {
	Publisher
	Consume(ctx context.Context) (<-chan Message, error)
	Close() error
}

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendRabbitMQ = "rabbitmq"
	BackendKafka    = "kafka"
)

// Options carries the connection details each backend needs.
type Options struct {
	Name         string // list key, queue name or topic
	BufferSize   int
	Redis        *redis.Client
	RabbitMQURL  string
	KafkaBrokers []string
	KafkaGroupID string
}

// New opens the queue for backend.
func New(backend string, opts Options) (Queue, error) {
	switch backend {
	case BackendMemory:
		size := opts.BufferSize
		if size <= 0 {
			size = 64
		}
		return NewInMemory(size), nil
	case BackendRedis:
		if opts.Redis == nil {
			return nil, fmt.Errorf("queue: redis backend requires a redis client")
		}
		return NewRedisQueue(opts.Redis, opts.Name), nil
	case BackendRabbitMQ:
		return NewRabbitMQQueue(opts.RabbitMQURL, opts.Name)
	case BackendKafka:
		return NewKafkaQueue(opts.KafkaBrokers, opts.Name, opts.KafkaGroupID)
	default:
		return nil, fmt.Errorf("queue: unknown backend %q", backend)
	}
}

// serialize stores messages as Type|Body.
func serialize(msg Message) string {
	return msg.Type + "|" + string(msg.Body)
}

func deserialize(s string) Message {
	typ, body, ok := strings.Cut(s, "|")
	if !ok {
		return Message{Body: []byte(s)}
	}
	return Message{Type: typ, Body: []byte(body)}
}
