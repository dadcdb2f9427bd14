package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openride/openride/internal/telemetry"
)

// MetricsMiddleware records http_requests_total and
// http_request_duration_seconds for every request. The path label uses
// c.FullPath() — the matched route template, e.g. /api/v1/admin/users/:id —
// rather than the raw URL, so user-supplied path segments cannot inflate
// label cardinality. Requests that match no route are labelled "<no-route>".
//
// Register after gin.Recovery() and RequestIDMiddleware so the status set by
// error handlers is captured correctly.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		duration := time.Since(start).Seconds()
		method := c.Request.Method
		status := fmt.Sprintf("%d", c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}
