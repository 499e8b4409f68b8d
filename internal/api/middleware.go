package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"agora/internal/metrics"
	"agora/internal/ratelimit"
	"agora/pkg/errors"
	"agora/pkg/logger"
)

func requestLogger() gin.HandlerFunc {
	log := logger.Get().With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"client", c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			last := c.Errors.Last()
			if last == nil {
				// readiness probes answer 503 without a handler error
				log.Warnw("Request failed", fields...)
				break
			}
			fields = append(fields, "error", last.Err)
			log.ErrorwContext(c.Request.Context(), "Request failed", fields...)
		case status >= http.StatusBadRequest:
			log.Warnw("Request rejected", fields...)
		default:
			log.Debugw("Request served", fields...)
		}
	}
}

// sessionHeader lets clients tag requests that do not carry a session in the body.
const sessionHeader = "X-Session-ID"

// sessionScope puts the request's chat session on the context for error reports.
func sessionScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(sessionHeader)
		if id == "" && c.FullPath() == "/api/sessions/:id/turns" {
			id = c.Param("id")
		}
		withSession(c, id)
		c.Next()
	}
}

func withSession(c *gin.Context, sessionID string) {
	if sessionID != "" {
		c.Request = c.Request.WithContext(errors.WithSessionID(c.Request.Context(), sessionID))
	}
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// the route pattern keeps label cardinality bounded
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// rateLimit rejects clients over their budget with 429. A limiter failure lets
// the request through.
func rateLimit(limiter ratelimit.KeyedLimiter) gin.HandlerFunc {
	log := logger.Get().With("component", "http")
	return func(c *gin.Context) {
		ok, err := limiter.AllowKey(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Warnw("Rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
