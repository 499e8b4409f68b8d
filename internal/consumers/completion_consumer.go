package consumers

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"agora/internal/adapters/kafka"
	"agora/pkg/errors"
	"agora/pkg/logger"
	"agora/pkg/reconnect"
)

// MessageReader is the part of kafka.Consumer the completion consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// Handler receives decoded completion events. Exactly one of the pointers is set.
type Handler func(ctx context.Context, chat *kafka.ChatCompletedEvent, discussion *kafka.DiscussionCompletedEvent) error

// CompletionConsumer follows chat.completed and discussion.completed events.
type CompletionConsumer struct {
	reader  MessageReader
	topic   string
	handler Handler
	backoff *reconnect.Backoff
	log     *logger.Logger
}

// NewCompletionConsumer creates a consumer for one completion topic (without prefix).
func NewCompletionConsumer(reader MessageReader, topic string, handler Handler) *CompletionConsumer {
	return &CompletionConsumer{
		reader:  reader,
		topic:   topic,
		handler: handler,
		backoff: reconnect.New(reconnect.Config{MinBackoff: time.Second, MaxBackoff: 30 * time.Second}),
		log:     logger.Get().With("component", "completion_consumer", "topic", topic),
	}
}

// Start consumes until ctx is cancelled. Undecodable messages are logged and skipped.
func (c *CompletionConsumer) Start(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.log.Errorw("Failed to close consumer", "error", err)
		}
	}()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Completion consumer stopped")
				return nil
			}
			c.log.Errorw("Failed to read message", "error", err, "failures", c.backoff.Failures()+1)
			if c.backoff.Wait(ctx) != nil {
				return nil
			}
			continue
		}
		c.backoff.Success()

		if err := c.handle(ctx, msg.Value); err != nil {
			c.log.Errorw("Failed to process completion event", "error", err, "offset", msg.Offset)
		}
	}
}

func (c *CompletionConsumer) handle(ctx context.Context, data []byte) error {
	switch c.topic {
	case kafka.TopicChatCompleted:
		var ev kafka.ChatCompletedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return errors.Wrap(err, "decode chat event")
		}
		return c.handler(ctx, &ev, nil)
	case kafka.TopicDiscussionCompleted:
		var ev kafka.DiscussionCompletedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return errors.Wrap(err, "decode discussion event")
		}
		return c.handler(ctx, nil, &ev)
	default:
		return errors.Wrapf(errors.ErrInvalidInput, "unknown topic %s", c.topic)
	}
}
