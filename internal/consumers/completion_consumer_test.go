package consumers

import (
	"context"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/internal/adapters/kafka"
)

// scriptedReader returns its messages, then cancels the consumer.
type scriptedReader struct {
	msgs   [][]byte
	cancel context.CancelFunc
	closed bool
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafkago.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafkago.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return kafkago.Message{Value: m}, nil
}

func (r *scriptedReader) Close() error {
	r.closed = true
	return nil
}

func TestCompletionConsumerDecodesChatEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &scriptedReader{
		msgs:   [][]byte{[]byte(`{"session_id":"s1","used_discussion":true}`), []byte(`not json`)},
		cancel: cancel,
	}

	var got []*kafka.ChatCompletedEvent
	c := NewCompletionConsumer(reader, kafka.TopicChatCompleted, func(_ context.Context, chat *kafka.ChatCompletedEvent, d *kafka.DiscussionCompletedEvent) error {
		assert.Nil(t, d)
		got = append(got, chat)
		return nil
	})

	require.NoError(t, c.Start(ctx))
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SessionID)
	assert.True(t, got[0].UsedDiscussion)
	assert.True(t, reader.closed)
}

func TestCompletionConsumerDecodesDiscussionEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &scriptedReader{
		msgs:   [][]byte{[]byte(`{"query":"q","outcome":"threshold","rounds_run":2,"score":8}`)},
		cancel: cancel,
	}

	var got *kafka.DiscussionCompletedEvent
	c := NewCompletionConsumer(reader, kafka.TopicDiscussionCompleted, func(_ context.Context, _ *kafka.ChatCompletedEvent, d *kafka.DiscussionCompletedEvent) error {
		got = d
		return nil
	})

	require.NoError(t, c.Start(ctx))
	require.NotNil(t, got)
	assert.Equal(t, 2, got.RoundsRun)
	require.NotNil(t, got.Score)
	assert.Equal(t, 8.0, *got.Score)
}
