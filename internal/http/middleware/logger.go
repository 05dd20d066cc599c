package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/freedom_case_2/fire/internal/metrics"
)

// Logger writes one line per request and records its latency.
func Logger(l zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(latency.Seconds())

		ev := l.Info()
		if status >= 500 {
			ev = l.Error()
		}
		ev.Str("request_id", c.GetString(RequestIDHeader)).
			Str("method", method).
			Str("path", path).
			Int("status", status).
			Dur("latency", latency).
			Msg("request")
	}
}
