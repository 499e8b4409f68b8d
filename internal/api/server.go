package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"agora/internal/api/health"
	"agora/internal/metrics"
	"agora/internal/ratelimit"
	"agora/pkg/errors"
	"agora/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Port         int
	ServiceName  string
	Version      string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Services are the application services behind the /api routes. Nil members
// disable their routes.
type Services struct {
	Chat        Chatter
	Discussions Discussions
	History     History
	Business    BusinessDB
	Knowledge   Knowledge
	Events      DiscussionSink
	// Limiter throttles /api requests per client address. Nil disables it.
	Limiter ratelimit.KeyedLimiter
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	log        *logger.Logger
}

// NewServer creates and configures HTTP server with all routes
func NewServer(cfg ServerConfig, healthHandler *health.Handler, svc Services) *Server {
	log := logger.Get().With("component", "http")

	engine := NewRouter(cfg, healthHandler, svc)

	port := 8080
	if cfg.Port > 0 {
		port = cfg.Port
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15 * time.Second
	}
	// chat and discussion requests wait on several model calls
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Minute
	}

	log.Infof("HTTP server configured on port %d", port)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      engine,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		engine: engine,
		log:    log,
	}
}

// NewRouter builds the gin engine with every route. Exposed for tests.
func NewRouter(cfg ServerConfig, healthHandler *health.Handler, svc Services) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(), requestMetrics(), corsMiddleware(cfg.CORSOrigins))

	if healthHandler != nil {
		healthHandler.Register(engine)
	}
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": cfg.ServiceName, "version": cfg.Version, "status": "running"})
	})

	h := &handlers{svc: svc, log: logger.Get().With("component", "api")}

	group := engine.Group("/api", sessionScope())
	if svc.Limiter != nil {
		group.Use(rateLimit(svc.Limiter))
	}

	if svc.Chat != nil {
		group.POST("/chat", h.chat)
	}
	if svc.Discussions != nil {
		group.POST("/discussions", h.discuss)
	}
	if svc.History != nil {
		group.GET("/sessions/:id/turns", h.sessionTurns)
		group.GET("/users/:id/sessions", h.userSessions)
	}
	if svc.Business != nil {
		group.GET("/databases", h.databases)
		group.POST("/query", h.query)
		group.GET("/tables", h.tables)
		group.GET("/tables/:table/info", h.tableInfo)
		group.GET("/tables/:table/count", h.tableCount)
	}
	if svc.Knowledge != nil {
		group.GET("/knowledge/collections", h.listCollections)
		group.POST("/knowledge/collections", h.createCollection)
		group.GET("/knowledge/collections/:name", h.getCollection)
		group.POST("/knowledge/collections/:name/documents", h.addDocuments)
		group.POST("/knowledge/search", h.searchKnowledge)
	}

	return engine
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	return cors.New(cfg)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
// Waits for active connections to complete within timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("HTTP server stopped")
	return nil
}
