package events

import (
	"context"
	"time"

	"agora/internal/adapters/kafka"
	"agora/pkg/logger"
)

const publishTimeout = 5 * time.Second

// Sender delivers one encoded event. Implemented by kafka.Producer.
type Sender interface {
	Publish(ctx context.Context, topic, key string, event interface{}) error
}

// Publisher emits completion events. Publishing is best effort: failures are
// logged and never reach the caller. A nil sender disables publishing.
type Publisher struct {
	sender Sender
	log    *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(sender Sender) *Publisher {
	return &Publisher{
		sender: sender,
		log:    logger.Get().With("component", "event_publisher"),
	}
}

// Enabled reports whether events are actually sent.
func (p *Publisher) Enabled() bool {
	return p != nil && p.sender != nil
}

// ChatCompleted publishes a chat.completed event keyed by session.
func (p *Publisher) ChatCompleted(ctx context.Context, event kafka.ChatCompletedEvent) {
	p.publish(ctx, kafka.TopicChatCompleted, event.SessionID, event)
}

// DiscussionCompleted publishes a discussion.completed event keyed by session, or by query when sessionless.
func (p *Publisher) DiscussionCompleted(ctx context.Context, event kafka.DiscussionCompletedEvent) {
	key := event.SessionID
	if key == "" {
		key = event.Query
	}
	p.publish(ctx, kafka.TopicDiscussionCompleted, key, event)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event interface{}) {
	if !p.Enabled() {
		return
	}

	// the request may finish before the broker answers
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.sender.Publish(ctx, topic, key, event); err != nil {
		p.log.Warnw("Failed to publish event", "topic", topic, "key", key, "error", err)
	}
}
