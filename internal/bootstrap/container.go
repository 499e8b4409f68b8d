package bootstrap

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"google.golang.org/adk/model"

	"agora/internal/adapters/ai"
	"agora/internal/adapters/config"
	"agora/internal/adapters/embeddings"
	"agora/internal/adapters/kafka"
	pgclient "agora/internal/adapters/postgres"
	redisclient "agora/internal/adapters/redis"
	"agora/internal/agents"
	"agora/internal/api"
	"agora/internal/api/health"
	"agora/internal/discussion"
	"agora/internal/domain/conversation"
	"agora/internal/domain/knowledge"
	"agora/internal/events"
	"agora/internal/ratelimit"
	"agora/internal/tools"
	"agora/internal/workflow"
	"agora/pkg/errors"
	"agora/pkg/logger"
	"agora/pkg/templates"
)

// Container holds all application dependencies and their lifecycle
// Components are organized in initialization order
type Container struct {
	// Core configuration & logging
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure Layer (Data stores)
	PG       *pgclient.Client
	Business *pgclient.BusinessManager
	Redis    *redisclient.Client

	// Domain Layer - Repositories
	Repos *Repositories

	// Domain Layer - Services
	Services *Services

	// External Adapters
	Adapters *Adapters

	// Agents, tools and the discussion loop
	Engine *Engine

	// Application Layer
	Application *Application

	// Lifecycle management
	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
}

// Repositories groups all domain repositories
type Repositories struct {
	Conversation conversation.Repository
	Knowledge    knowledge.Repository
}

// Services groups all domain services
type Services struct {
	Conversation *conversation.Service
	// Knowledge is nil when no embedding provider is configured.
	Knowledge *knowledge.Service
}

// Adapters groups all external adapters
type Adapters struct {
	KafkaProducer *kafka.Producer
	Events        *events.Publisher

	ChatProvider      ai.ChatProvider
	Model             model.LLM
	EmbeddingProvider embeddings.Provider
}

// Engine groups the agents and the components built on them
type Engine struct {
	Tools      *tools.Registry
	Factory    *agents.Factory
	Agents     *agents.Registry
	Invoker    *agents.Invoker
	Discussion *discussion.Controller
	Workflow   *workflow.Workflow
	Templates  *templates.Registry
}

// Application groups application layer components
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
	Limiter       ratelimit.KeyedLimiter
}

// NewContainer creates a new dependency container
func NewContainer() *Container {
	return &Container{
		Repos:       &Repositories{},
		Services:    &Services{},
		Adapters:    &Adapters{},
		Engine:      &Engine{},
		Application: &Application{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
	}
}

// Init initializes every component in dependency order. The HTTP layer is
// only built when withHTTP is set; the CLI commands run without it.
func (c *Container) Init(ctx context.Context, withHTTP bool) error {
	if err := c.InitConfig(); err != nil {
		return err
	}
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"infrastructure", c.InitInfrastructure},
		{"repositories", c.InitRepositories},
		{"adapters", c.InitAdapters},
		{"services", c.InitServices},
		{"engine", c.InitEngine},
	}
	if withHTTP {
		steps = append(steps, struct {
			name string
			fn   func(context.Context) error
		}{"application", c.InitApplication})
	}

	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return errors.Wrapf(err, "init %s", step.name)
		}
	}
	return nil
}

// Serve runs the HTTP server until ctx is cancelled or the server fails,
// then shuts everything down.
func (c *Container) Serve(ctx context.Context) error {
	if c.Application.HTTPServer == nil {
		return errors.Wrap(errors.ErrInvalidInput, "http server not initialized")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.Application.HTTPServer.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		c.Log.Info("Initiating graceful shutdown...")
		c.Shutdown()
		return nil
	})

	c.Log.Info("All systems operational")
	err := g.Wait()
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Lifecycle.Shutdown(
		c.WG,
		c.Application.HTTPServer,
		c.Adapters.KafkaProducer,
		nil,
		c.PG,
		c.Business,
		c.Redis,
		c.ErrorTracker,
		c.Log,
	)
}

// Close releases stores and flushes logs without touching the HTTP server.
// Used by the one-shot CLI commands.
func (c *Container) Close() {
	c.Lifecycle.Shutdown(c.WG, nil, c.Adapters.KafkaProducer, nil, c.PG, c.Business, c.Redis, c.ErrorTracker, c.Log)
}

// GetMetrics returns metrics for observability
func (c *Container) GetMetrics() map[string]interface{} {
	out := map[string]interface{}{}
	if c.Engine.Tools != nil {
		out["tools"] = len(c.Engine.Tools.List())
	}
	if c.Engine.Agents != nil {
		out["agents"] = len(c.Engine.Agents.List())
	}
	if c.Business != nil {
		out["business_databases"] = len(c.Business.Databases())
	}
	return out
}
