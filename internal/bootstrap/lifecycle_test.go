package bootstrap

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"agora/pkg/errors"
	"agora/pkg/logger"
)

type countingTracker struct {
	flushes int
}

func (t *countingTracker) CaptureError(context.Context, error, map[string]string) error { return nil }

func (t *countingTracker) CaptureMessage(context.Context, string, errors.Level, map[string]string) error {
	return nil
}

func (t *countingTracker) AddBreadcrumb(context.Context, string, string, errors.Level, map[string]interface{}) {
}

func (t *countingTracker) Flush(context.Context) error {
	t.flushes++
	return nil
}

func TestLifecycleShutdownRunsOnce(t *testing.T) {
	tracker := &countingTracker{}
	l := NewLifecycle()

	assert.NotPanics(t, func() {
		l.Shutdown(&sync.WaitGroup{}, nil, nil, nil, nil, nil, nil, tracker, logger.Nop())
		l.Shutdown(&sync.WaitGroup{}, nil, nil, nil, nil, nil, nil, tracker, logger.Nop())
	})
	assert.Equal(t, 1, tracker.flushes)
}

func TestContainerMetricsWithoutEngine(t *testing.T) {
	c := NewContainer()
	assert.Empty(t, c.GetMetrics())
}
