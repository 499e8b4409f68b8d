package bootstrap

import (
	"context"
	"sync"
	"time"

	"agora/internal/adapters/kafka"
	pgclient "agora/internal/adapters/postgres"
	redisclient "agora/internal/adapters/redis"
	"agora/internal/api"
	"agora/pkg/errors"
	"agora/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
	once            sync.Once
}

// NewLifecycle creates a new lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		// a chat request can wait on several model calls
		shutdownTimeout: 2 * time.Minute,
	}
}

// Shutdown performs coordinated cleanup of all components in the correct order:
// stop accepting requests, unblock consumers, close the producer, flush
// errors and logs, and close databases last. Only the first call does anything.
func (l *Lifecycle) Shutdown(
	wg *sync.WaitGroup,
	httpServer *api.Server,
	kafkaProducer *kafka.Producer,
	kafkaConsumers map[string]*kafka.Consumer,
	pgClient *pgclient.Client,
	business *pgclient.BusinessManager,
	redisClient *redisclient.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	l.once.Do(func() {
		l.shutdown(wg, httpServer, kafkaProducer, kafkaConsumers, pgClient, business, redisClient, errorTracker, log)
	})
}

func (l *Lifecycle) shutdown(
	wg *sync.WaitGroup,
	httpServer *api.Server,
	kafkaProducer *kafka.Producer,
	kafkaConsumers map[string]*kafka.Consumer,
	pgClient *pgclient.Client,
	business *pgclient.BusinessManager,
	redisClient *redisclient.Client,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	if log == nil {
		log = logger.Get()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	// Step 1: HTTP server drains in-flight chats
	if httpServer != nil {
		log.Info("[1/6] Stopping HTTP server...")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		}
	}

	// Step 2: consumers unblock ReadMessage before we wait on goroutines
	if len(kafkaConsumers) > 0 {
		log.Info("[2/6] Closing Kafka consumers...")
		l.closeKafkaConsumers(kafkaConsumers, log)
	}
	if wg != nil {
		l.waitForGoroutines(wg, 5*time.Second, log)
	}

	// Step 3
	if kafkaProducer != nil {
		log.Info("[3/6] Closing Kafka producer...")
		if err := kafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		} else {
			log.Info("Kafka producer closed")
		}
	}

	// Step 4
	log.Info("[4/6] Flushing error tracker...")
	l.flushErrorTracker(shutdownCtx, errorTracker, log)

	// Step 5
	log.Info("[5/6] Syncing logs...")
	if err := logger.Sync(); err != nil {
		log.Debugw("Log sync completed with warnings", "error", err)
	}

	// Step 6: databases last, other components may need them during shutdown
	log.Info("[6/6] Closing database connections...")
	l.closeDatabases(pgClient, business, redisClient, log)

	log.Info("Graceful shutdown complete")
}

// closeKafkaConsumers closes all Kafka consumers
func (l *Lifecycle) closeKafkaConsumers(consumers map[string]*kafka.Consumer, log *logger.Logger) {
	for name, consumer := range consumers {
		if consumer == nil {
			continue
		}
		if err := consumer.Close(); err != nil {
			log.Errorw("Kafka consumer close failed", "consumer", name, "error", err)
		}
	}
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Warnw("Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

// flushErrorTracker flushes the error tracker (Sentry, etc.)
func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	}
}

// closeDatabases closes all database connections
func (l *Lifecycle) closeDatabases(
	pgClient *pgclient.Client,
	business *pgclient.BusinessManager,
	redisClient *redisclient.Client,
	log *logger.Logger,
) {
	var merr errors.MultiError

	if pgClient != nil {
		if err := pgClient.Close(); err != nil {
			merr.Add(errors.Wrap(err, "postgres"))
		}
	}
	if business != nil {
		if err := business.Close(); err != nil {
			merr.Add(errors.Wrap(err, "business databases"))
		}
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			merr.Add(errors.Wrap(err, "redis"))
		}
	}

	if merr.HasErrors() {
		log.Errorw("Database close errors", "error", merr.ToError())
	} else {
		log.Info("Database connections closed")
	}
}
