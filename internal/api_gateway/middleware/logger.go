package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// healthPath is excluded from request logging; orchestrator probes would
// otherwise dominate the log volume.
const healthPath = "/health"

// Logger emits one structured line per request with method, path, status,
// latency and client details. Server errors log at error level so they
// surface in level-filtered queries.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == healthPath {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		requestLogger := logger
		if id := GetCorrelationID(c); id != "" {
			requestLogger = logger.With("correlation_id", id)
		}

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"bytes", c.Writer.Size(),
		}

		if status >= 500 {
			requestLogger.Error("HTTP request", fields...)
			return
		}
		requestLogger.Info("HTTP request", fields...)
	}
}
