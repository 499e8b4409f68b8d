package bootstrap

import (
	"context"
	"time"

	"agora/internal/adapters/adk"
	"agora/internal/adapters/ai"
	"agora/internal/adapters/config"
	"agora/internal/adapters/embeddings"
	errnoop "agora/internal/adapters/errors/noop"
	"agora/internal/adapters/errors/sentry"
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
	"agora/internal/metrics"
	"agora/internal/ratelimit"
	pgrepo "agora/internal/repository/postgres"
	redisrepo "agora/internal/repository/redis"
	"agora/internal/tools"
	"agora/internal/workflow"
	"agora/pkg/errors"
	"agora/pkg/logger"
	"agora/pkg/templates"
)

const embeddingTimeout = 30 * time.Second

// ========================================
// Phase 1: Configuration & Logging
// ========================================

// InitConfig loads configuration and initializes logger and error tracking
func (c *Container) InitConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return errors.Wrap(err, "init logger")
	}

	c.Log = logger.Get()
	c.Log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	c.ErrorTracker = provideErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()
	return nil
}

// ========================================
// Phase 2: Infrastructure Layer
// ========================================

// InitInfrastructure connects the agent database, Redis and the business databases
func (c *Container) InitInfrastructure(ctx context.Context) error {
	var err error

	c.Log.Info("Connecting to PostgreSQL...")
	c.PG, err = pgclient.NewClient(ctx, c.Config.Postgres)
	if err != nil {
		return err
	}
	c.Log.Info("PostgreSQL connected")

	if c.Config.Redis.Enabled {
		c.Log.Info("Connecting to Redis...")
		c.Redis, err = redisclient.NewClient(ctx, c.Config.Redis)
		if err != nil {
			return err
		}
		c.Log.Info("Redis connected")
	}

	if len(c.Config.Business.Databases) == 0 {
		c.Log.Warn("No business databases configured, database tools disabled")
		return nil
	}

	var cache pgclient.SchemaCache
	if c.Redis != nil {
		cache = c.Redis
	}
	c.Business, err = pgclient.OpenBusiness(ctx, c.Config.Business, cache)
	if err != nil {
		return err
	}
	c.Log.Infow("Business databases connected", "databases", c.Business.Databases())
	return nil
}

// Migrate applies pending agent database migrations.
func (c *Container) Migrate(ctx context.Context) ([]string, error) {
	if c.PG == nil {
		return nil, errors.Wrap(errors.ErrUnavailable, "postgres not connected")
	}
	applied, err := pgrepo.Migrate(ctx, c.PG.DB())
	if err != nil {
		return nil, err
	}
	c.Log.Infow("Migrations applied", "count", len(applied), "files", applied)
	return applied, nil
}

// ========================================
// Phase 3: Domain Layer - Repositories
// ========================================

// InitRepositories initializes all domain repositories
func (c *Container) InitRepositories(context.Context) error {
	var turns conversation.Repository = pgrepo.NewConversationRepository(c.PG.DB())
	if c.Redis != nil {
		turns = redisrepo.NewConversationCache(turns, c.Redis.Client(), redisrepo.DefaultHistoryTTL)
	}
	c.Repos.Conversation = turns
	c.Repos.Knowledge = pgrepo.NewKnowledgeRepository(c.PG.DB())

	c.Log.Info("Repositories initialized")
	return nil
}

// ========================================
// Phase 4: External Adapters
// ========================================

// InitAdapters initializes Kafka, the chat model and the embedding provider
func (c *Container) InitAdapters(context.Context) error {
	c.Adapters.KafkaProducer = provideKafkaProducer(c.Config, c.Log)

	var sender events.Sender
	if c.Adapters.KafkaProducer != nil {
		sender = c.Adapters.KafkaProducer
	}
	c.Adapters.Events = events.NewPublisher(sender)

	provider, err := ai.NewCompatProvider(c.Config.Model, c.provideModelLimiter())
	if err != nil {
		return err
	}
	c.Adapters.ChatProvider = provider
	c.Adapters.Model = adk.NewModelAdapter(provider, c.Config.Model.Name, c.Config.Model.MaxTokens)
	c.Log.Infow("Chat model configured", "model", c.Config.Model.Name, "base_url", c.Config.Model.BaseURL)

	c.Adapters.EmbeddingProvider, err = embeddings.NewProvider(c.Config.Embedding, embeddingTimeout)
	switch {
	case errors.Is(err, errors.ErrUnavailable):
		c.Log.Warnw("Embedding provider not configured, knowledge store disabled", "reason", err)
	case err != nil:
		return err
	default:
		c.Log.Infof("Embedding provider initialized: %s (%d dimensions)",
			c.Adapters.EmbeddingProvider.Name(),
			c.Adapters.EmbeddingProvider.Dimensions(),
		)
	}
	return nil
}

// provideModelLimiter shares the model budget across replicas when Redis is available.
func (c *Container) provideModelLimiter() ratelimit.Limiter {
	rpm := c.Config.Model.ReqPerMinute
	if rpm <= 0 {
		return ratelimit.NoOp{}
	}
	if c.Redis != nil {
		return ratelimit.NewRedis(c.Redis.Client(), "model", rpm, 0)
	}
	return ratelimit.NewTokenBucket("model", rpm, 0)
}

// ========================================
// Phase 5: Domain Layer - Services
// ========================================

// InitServices initializes all domain services
func (c *Container) InitServices(context.Context) error {
	c.Services.Conversation = conversation.NewService(c.Repos.Conversation)
	if c.Adapters.EmbeddingProvider != nil {
		c.Services.Knowledge = knowledge.NewService(c.Repos.Knowledge, c.Adapters.EmbeddingProvider)
	}

	c.Log.Info("Services initialized")
	return nil
}

// ========================================
// Phase 6: Agents, discussion and workflow
// ========================================

// InitEngine builds tools, agents, the discussion controller and the chat workflow
func (c *Container) InitEngine(context.Context) error {
	var err error

	toolDeps := tools.Deps{}
	if c.Business != nil {
		toolDeps.Business = c.Business
	}
	if c.Services.Knowledge != nil {
		toolDeps.Knowledge = c.Services.Knowledge
	}
	c.Engine.Tools, err = tools.NewCatalog(toolDeps)
	if err != nil {
		return err
	}

	c.Engine.Factory, err = agents.NewFactory(agents.FactoryDeps{
		Model: c.Adapters.Model,
		Tools: c.Engine.Tools.Tools(),
	})
	if err != nil {
		return err
	}
	c.Engine.Agents, err = c.Engine.Factory.CreateDefaultRegistry()
	if err != nil {
		return err
	}
	c.Engine.Invoker = agents.NewInvoker(c.Config.App.Name, 0)

	c.Engine.Discussion, err = provideDiscussion(c.Config.Discussion, c.Engine.Agents, c.Engine.Invoker)
	if err != nil {
		return err
	}

	c.Engine.Templates = templates.Get()

	var wfAgents workflow.Agents
	if wfAgents.Intent, err = c.Engine.Agents.Require(agents.AgentIntent); err != nil {
		return err
	}
	if wfAgents.DB, err = c.Engine.Agents.Require(agents.AgentDB); err != nil {
		return err
	}
	if wfAgents.Output, err = c.Engine.Agents.Require(agents.AgentOutput); err != nil {
		return err
	}

	c.Engine.Workflow, err = workflow.New(workflow.Deps{
		Runner:       c.Engine.Invoker,
		Agents:       wfAgents,
		Discusser:    c.Engine.Discussion,
		Turns:        c.Services.Conversation,
		Events:       c.Adapters.Events,
		Templates:    c.Engine.Templates,
		HistoryTurns: c.Config.Chat.HistoryTurns,
	})
	if err != nil {
		return err
	}

	c.Log.Infow("Engine initialized", "tools", c.Engine.Tools.List(), "agents", c.Engine.Agents.List())
	return nil
}

// ========================================
// Phase 7: Application Layer
// ========================================

// InitApplication builds the health handler, the API rate limiter and the HTTP server
func (c *Container) InitApplication(context.Context) error {
	checks := map[string]health.Checker{"postgres": c.PG}
	if c.Business != nil {
		checks["business_db"] = c.Business
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis
	}
	c.Application.HealthHandler = health.New(checks, c.Config.App.Name, c.Config.App.Version)

	c.Application.Limiter = c.provideAPILimiter()

	if err := metrics.RegisterStoreCollector(metrics.NewStoreCollector(c.PG.DB())); err != nil {
		c.Log.Warnw("Store collector not registered", "error", err)
	}

	svc := api.Services{
		Chat:        c.Engine.Workflow,
		Discussions: c.Engine.Discussion,
		History:     c.Services.Conversation,
		Events:      c.Adapters.Events,
		Limiter:     c.Application.Limiter,
	}
	if c.Business != nil {
		svc.Business = c.Business
	}
	if c.Services.Knowledge != nil {
		svc.Knowledge = c.Services.Knowledge
	}

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Port:         c.Config.HTTP.Port,
		ServiceName:  c.Config.App.Name,
		Version:      c.Config.App.Version,
		CORSOrigins:  c.Config.HTTP.CORSOrigins,
		ReadTimeout:  c.Config.HTTP.ReadTimeout,
		WriteTimeout: c.Config.HTTP.WriteTimeout,
	}, c.Application.HealthHandler, svc)
	return nil
}

func (c *Container) provideAPILimiter() ratelimit.KeyedLimiter {
	rl := c.Config.RateLimit
	if !rl.Enabled || rl.ReqPerMinute <= 0 {
		c.Log.Info("API rate limiting disabled")
		return nil
	}
	if c.Redis != nil {
		return ratelimit.NewRedis(c.Redis.Client(), "api", float64(rl.ReqPerMinute), 0)
	}
	return ratelimit.NewLocalKeyed(float64(rl.ReqPerMinute), 0)
}

// ========================================
// Providers
// ========================================

func provideErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return errnoop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment, cfg.App.Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return errnoop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// provideKafkaProducer returns nil when no brokers are configured; events are then dropped.
func provideKafkaProducer(cfg *config.Config, log *logger.Logger) *kafka.Producer {
	if !cfg.Kafka.Enabled() {
		log.Info("Kafka brokers not configured, completion events disabled")
		return nil
	}

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:     cfg.Kafka.Brokers,
		TopicPrefix: cfg.Kafka.Topic,
	})
	log.Infow("Kafka producer initialized", "brokers", cfg.Kafka.Brokers, "prefix", cfg.Kafka.Topic)
	return producer
}

// ProvideKafkaConsumer builds a consumer for one completion topic.
func ProvideKafkaConsumer(cfg *config.Config, groupID, topic string) (*kafka.Consumer, error) {
	if !cfg.Kafka.Enabled() {
		return nil, errors.Wrap(errors.ErrUnavailable, "KAFKA_BROKERS not set")
	}
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:     cfg.Kafka.Brokers,
		GroupID:     groupID,
		TopicPrefix: cfg.Kafka.Topic,
		Topic:       topic,
	}), nil
}

func provideDiscussion(cfg config.DiscussionConfig, reg *agents.Registry, runner *agents.Invoker) (*discussion.Controller, error) {
	team, err := reg.Require(agents.AgentDiscussionTeam)
	if err != nil {
		return nil, err
	}
	judge, err := reg.Require(agents.AgentJudge)
	if err != nil {
		return nil, err
	}

	return discussion.NewController(
		discussion.NewTeam(runner, team),
		discussion.NewLLMJudge(runner, judge, ""),
		discussion.Options{
			MaxRounds:      cfg.MaxRounds,
			ScoreThreshold: cfg.ScoreThreshold,
			CallTimeout:    cfg.CallTimeout,
		},
	)
}
