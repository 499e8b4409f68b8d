package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"agora/pkg/logger"
)

// Consumer reads one topic as part of a consumer group
type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	TopicPrefix string
	Topic       string
}

// NewConsumer creates a new Kafka consumer. Topic is prefixed the same way the producer does it.
func NewConsumer(cfg ConsumerConfig) *Consumer {
	topic := cfg.Topic
	if cfg.TopicPrefix != "" {
		topic = cfg.TopicPrefix + "." + topic
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})

	log := logger.Get().With("component", "kafka_consumer", "topic", topic)
	log.Infow("Kafka consumer created", "brokers", cfg.Brokers, "group_id", cfg.GroupID)

	return &Consumer{reader: reader, log: log}
}

// ReadMessage reads the next message. A cancelled ctx is reported as ctx.Err()
// rather than whatever the reader returned while shutting down.
func (c *Consumer) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	default:
	}

	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return kafka.Message{}, ctx.Err()
		}
		return kafka.Message{}, err
	}
	return msg, nil
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
