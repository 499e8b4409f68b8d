package reconnect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := New(Config{MinBackoff: 10 * time.Millisecond, MaxBackoff: 35 * time.Millisecond, BackoffMultiplier: 2})

	assert.Equal(t, 10*time.Millisecond, b.Failure())
	assert.Equal(t, 20*time.Millisecond, b.Failure())
	assert.Equal(t, 35*time.Millisecond, b.Failure())
	assert.Equal(t, 35*time.Millisecond, b.Failure())
	assert.Equal(t, 4, b.Failures())

	b.Success()
	assert.Equal(t, 0, b.Failures())
	assert.Equal(t, 10*time.Millisecond, b.Failure())
}

func TestBackoffDefaults(t *testing.T) {
	b := New(Config{})
	assert.Equal(t, time.Second, b.Failure())
	assert.Equal(t, 2*time.Second, b.Failure())
}

func TestBackoffWaitHonoursContext(t *testing.T) {
	b := New(Config{MinBackoff: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, b.Wait(ctx), context.Canceled)
	assert.Equal(t, 1, b.Failures())
}

func TestBackoffWait(t *testing.T) {
	b := New(Config{MinBackoff: time.Millisecond})
	assert.NoError(t, b.Wait(context.Background()))
}
