package tools

import (
	"context"
	"time"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"agora/internal/metrics"
	"agora/pkg/errors"
)

// Handler is the typed body of a tool.
type Handler[A, R any] func(ctx context.Context, args A) (R, error)

// Builder provides a fluent API for creating ADK function tools with middleware.
type Builder[A, R any] struct {
	name        string
	description string
	fn          Handler[A, R]

	attempts int
	backoff  time.Duration
	timeout  time.Duration
	metered  bool
}

// NewBuilder starts a tool definition.
func NewBuilder[A, R any](name, description string, fn Handler[A, R]) *Builder[A, R] {
	return &Builder[A, R]{name: name, description: description, fn: fn, attempts: 1}
}

// WithRetry retries failed executions. Invalid input and missing resources are never retried.
func (b *Builder[A, R]) WithRetry(attempts int, backoff time.Duration) *Builder[A, R] {
	b.attempts = max(attempts, 1)
	b.backoff = backoff
	return b
}

// WithTimeout bounds every execution, retries included.
func (b *Builder[A, R]) WithTimeout(timeout time.Duration) *Builder[A, R] {
	b.timeout = timeout
	return b
}

// WithMetrics records executions in agora_tool_executions_total.
func (b *Builder[A, R]) WithMetrics() *Builder[A, R] {
	b.metered = true
	return b
}

// Handler returns the tool body with middleware applied: retry, then timeout, then metrics.
func (b *Builder[A, R]) Handler() Handler[A, R] {
	fn := b.fn
	if b.attempts > 1 {
		fn = withRetry(b.attempts, b.backoff, fn)
	}
	if b.timeout > 0 {
		fn = withTimeout(b.timeout, fn)
	}
	if b.metered {
		fn = withMetrics(b.name, fn)
	}
	return fn
}

// Build creates the ADK tool.
func (b *Builder[A, R]) Build() (tool.Tool, error) {
	h := b.Handler()
	t, err := functiontool.New(functiontool.Config{
		Name:        b.name,
		Description: b.description,
	}, func(ctx tool.Context, args A) (R, error) {
		return h(ctx, args)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "build tool %s", b.name)
	}
	return t, nil
}

func withRetry[A, R any](attempts int, backoff time.Duration, fn Handler[A, R]) Handler[A, R] {
	return func(ctx context.Context, args A) (R, error) {
		var (
			res R
			err error
		)
		for i := 0; i < attempts; i++ {
			res, err = fn(ctx, args)
			if err == nil || !retryable(err) {
				return res, err
			}

			if backoff > 0 && i < attempts-1 {
				select {
				case <-ctx.Done():
					return res, ctx.Err()
				case <-time.After(backoff):
				}
			}
		}
		return res, err
	}
}

func retryable(err error) bool {
	return !errors.Is(err, errors.ErrInvalidInput) &&
		!errors.Is(err, errors.ErrNotFound) &&
		!errors.Is(err, context.Canceled)
}

func withTimeout[A, R any](timeout time.Duration, fn Handler[A, R]) Handler[A, R] {
	return func(ctx context.Context, args A) (R, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		res, err := fn(ctx, args)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return res, errors.Wrapf(errors.ErrTimeout, "tool timed out after %s", timeout)
		}
		return res, err
	}
}

func withMetrics[A, R any](name string, fn Handler[A, R]) Handler[A, R] {
	return func(ctx context.Context, args A) (R, error) {
		start := time.Now()
		res, err := fn(ctx, args)
		metrics.RecordToolExecution(name, time.Since(start), err)
		return res, err
	}
}
