package reconnect

import (
	"context"
	"sync"
	"time"
)

// Config configures the backoff
type Config struct {
	MinBackoff        time.Duration // first delay (default 1s)
	MaxBackoff        time.Duration // delay cap (default 1m)
	BackoffMultiplier float64       // growth per failure (default 2.0)
}

// Backoff tracks consecutive failures of a long-running loop (a consumer read,
// a connection) and hands out exponentially growing delays. Safe for concurrent use.
type Backoff struct {
	min, max   time.Duration
	multiplier float64

	mu       sync.Mutex
	current  time.Duration
	failures int
}

// New creates a backoff, filling unset config fields with defaults.
func New(cfg Config) *Backoff {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Minute
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = cfg.MinBackoff
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 2.0
	}
	return &Backoff{
		min:        cfg.MinBackoff,
		max:        cfg.MaxBackoff,
		multiplier: cfg.BackoffMultiplier,
		current:    cfg.MinBackoff,
	}
}

// Failure records a failure and returns how long to wait before retrying.
func (b *Backoff) Failure() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	delay := b.current

	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next
	return delay
}

// Success resets the delay and the failure count.
func (b *Backoff) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.min
	b.failures = 0
}

// Failures returns the number of consecutive failures.
func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Wait records a failure and sleeps for the resulting delay.
// Returns ctx.Err() when ctx ends first.
func (b *Backoff) Wait(ctx context.Context) error {
	t := time.NewTimer(b.Failure())
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
