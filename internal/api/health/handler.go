package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"agora/pkg/logger"
)

// Checker reports whether one dependency is reachable.
type Checker interface {
	Health(ctx context.Context) error
}

// CheckFunc adapts a function to Checker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Health(ctx context.Context) error { return f(ctx) }

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	checks      map[string]Checker
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler. checks maps a component name
// ("postgres", "business_db", "redis") to its probe.
func New(checks map[string]Checker, serviceName, version string) *Handler {
	return &Handler{
		log:         logger.Get().With("component", "health"),
		checks:      checks,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Register mounts /health, /ready and /live.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/health", h.HandleHealth)
	r.GET("/ready", h.HandleReadiness)
	r.GET("/live", h.HandleLiveness)
}

// HandleLiveness returns 200 OK if service is running
func (h *Handler) HandleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// HandleReadiness is 200 only when every component is healthy
func (h *Handler) HandleReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, healthy := h.run(ctx)
	if healthy < len(status.Checks) {
		status.Status = "unhealthy"
		h.log.Warnw("Readiness check failed", "checks", status.Checks)
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

// HandleHealth reports every component; partial failure is "degraded" but still 200
func (h *Handler) HandleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	status, healthy := h.run(ctx)
	switch {
	case len(status.Checks) > 0 && healthy == 0:
		status.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	case healthy < len(status.Checks):
		status.Status = "degraded"
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) run(ctx context.Context) (HealthStatus, int) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make(map[string]ComponentHealth, len(names)),
	}

	healthy := 0
	for _, name := range names {
		res := h.check(ctx, name, h.checks[name])
		if res.Status == "healthy" {
			healthy++
		}
		status.Checks[name] = res
	}
	return status, healthy
}

func (h *Handler) check(ctx context.Context, name string, c Checker) ComponentHealth {
	start := time.Now()
	err := c.Health(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Warnw("Health check failed", "component", name, "error", err, "elapsed", elapsed)
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}

	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: elapsed.String(),
	}
}
