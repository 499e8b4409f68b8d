package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"

	"agora/internal/metrics"
	"agora/pkg/errors"
	"agora/pkg/logger"
)

// Producer handles Kafka message publishing
type Producer struct {
	brokers []string
	prefix  string
	log     *logger.Logger

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
}

// NewProducer creates a new Kafka producer. Writers are created lazily per topic.
func NewProducer(cfg ProducerConfig) *Producer {
	return &Producer{
		writers: make(map[string]*kafka.Writer),
		brokers: cfg.Brokers,
		prefix:  cfg.TopicPrefix,
		log:     logger.Component("kafka_producer"),
	}
}

func (p *Producer) topic(name string) string {
	if p.prefix == "" {
		return name
	}
	return p.prefix + "." + name
}

func (p *Producer) getWriter(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	p.writers[topic] = w
	return w
}

// Publish sends a JSON-encoded event. key keeps a session's events on one partition.
func (p *Producer) Publish(ctx context.Context, name string, key string, event interface{}) error {
	topic := p.topic(name)

	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "marshal %s event", name)
	}

	err = p.getWriter(topic).WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data})
	metrics.RecordKafkaMessage(topic, err)
	if err != nil {
		return errors.Wrapf(err, "publish to %s", topic)
	}

	p.log.Debugw("Published event", "topic", topic, "key", key)
	return nil
}

// Close closes all writers
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var merr errors.MultiError
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			merr.Add(errors.Wrapf(err, "close writer %s", topic))
		}
	}
	return merr.ToError()
}
