// Package ratelimit throttles outbound LLM calls and inbound API requests.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"agora/pkg/errors"
)

// Limiter gates a single stream of requests.
type Limiter interface {
	// Wait blocks until request can proceed or context is cancelled.
	Wait(ctx context.Context) error

	// Allow checks if request can proceed without blocking.
	Allow() bool

	// Limit returns current rate limit (requests per minute).
	Limit() float64
}

// KeyedLimiter gates many independent streams, one per key (client address, user id).
type KeyedLimiter interface {
	AllowKey(ctx context.Context, key string) (bool, error)
}

// TokenBucket is an in-process limiter.
type TokenBucket struct {
	name    string
	limiter *rate.Limiter
}

// NewTokenBucket creates a limiter allowing reqPerMinute with the given burst.
// burst <= 0 defaults to 10% of the per-minute rate.
func NewTokenBucket(name string, reqPerMinute float64, burst int) *TokenBucket {
	return &TokenBucket{
		name:    name,
		limiter: rate.NewLimiter(rate.Limit(reqPerMinute/60.0), defaultBurst(reqPerMinute, burst)),
	}
}

func defaultBurst(reqPerMinute float64, burst int) int {
	if burst > 0 {
		return burst
	}
	burst = int(reqPerMinute / 10)
	if burst < 1 {
		burst = 1
	}
	return burst
}

func (l *TokenBucket) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return &Error{Name: l.name, Limit: l.Limit(), Err: err}
	}
	return nil
}

func (l *TokenBucket) Allow() bool {
	return l.limiter.Allow()
}

func (l *TokenBucket) Limit() float64 {
	return float64(l.limiter.Limit()) * 60.0
}

// NoOp never blocks.
type NoOp struct{}

func (NoOp) Wait(context.Context) error                    { return nil }
func (NoOp) Allow() bool                                   { return true }
func (NoOp) Limit() float64                                { return -1 }
func (NoOp) AllowKey(context.Context, string) (bool, error) { return true, nil }

// LocalKeyed keeps one token bucket per key in memory.
// Idle buckets are evicted after idleTTL so the map does not grow with every client.
type LocalKeyed struct {
	reqPerMinute float64
	burst        int
	idleTTL      time.Duration

	mu      sync.Mutex
	buckets map[string]*keyedBucket
	lastGC  time.Time
}

type keyedBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLocalKeyed(reqPerMinute float64, burst int) *LocalKeyed {
	return &LocalKeyed{
		reqPerMinute: reqPerMinute,
		burst:        defaultBurst(reqPerMinute, burst),
		idleTTL:      10 * time.Minute,
		buckets:      make(map[string]*keyedBucket),
		lastGC:       time.Now(),
	}
}

func (l *LocalKeyed) AllowKey(_ context.Context, key string) (bool, error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > l.idleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.idleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastGC = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &keyedBucket{limiter: rate.NewLimiter(rate.Limit(l.reqPerMinute/60.0), l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

// Error wraps rate limit failures with limiter context.
type Error struct {
	Name  string
	Limit float64
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit %s (%.0f req/min): %v", e.Name, e.Limit, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{errors.ErrRateLimitExceeded, e.Err}
}
