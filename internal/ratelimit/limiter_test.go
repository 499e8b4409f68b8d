package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/pkg/errors"
)

func TestTokenBucket(t *testing.T) {
	t.Run("burst then deny", func(t *testing.T) {
		l := NewTokenBucket("llm", 60, 2)

		assert.True(t, l.Allow())
		assert.True(t, l.Allow())
		assert.False(t, l.Allow())
		assert.InDelta(t, 60.0, l.Limit(), 0.001)
	})

	t.Run("default burst is ten percent", func(t *testing.T) {
		assert.Equal(t, 12, defaultBurst(120, 0))
		assert.Equal(t, 1, defaultBurst(5, 0))
		assert.Equal(t, 3, defaultBurst(120, 3))
	})

	t.Run("wait honours context", func(t *testing.T) {
		l := NewTokenBucket("llm", 1, 1)
		require.NoError(t, l.Wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := l.Wait(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrRateLimitExceeded))

		var rlErr *Error
		require.True(t, errors.As(err, &rlErr))
		assert.Equal(t, "llm", rlErr.Name)
	})
}

func TestLocalKeyed(t *testing.T) {
	ctx := context.Background()
	l := NewLocalKeyed(60, 1)

	ok, err := l.AllowKey(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = l.AllowKey(ctx, "10.0.0.1")
	assert.False(t, ok, "second request from same client inside a second")

	ok, _ = l.AllowKey(ctx, "10.0.0.2")
	assert.True(t, ok, "other clients have their own bucket")
}

func TestLocalKeyedEvictsIdleBuckets(t *testing.T) {
	l := NewLocalKeyed(60, 1)
	l.idleTTL = time.Millisecond

	_, _ = l.AllowKey(context.Background(), "a")
	time.Sleep(5 * time.Millisecond)
	_, _ = l.AllowKey(context.Background(), "b")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.buckets, "a")
	assert.Contains(t, l.buckets, "b")
}

func TestNoOp(t *testing.T) {
	var l NoOp
	assert.NoError(t, l.Wait(context.Background()))
	assert.True(t, l.Allow())
	ok, err := l.AllowKey(context.Background(), "x")
	assert.NoError(t, err)
	assert.True(t, ok)
}
