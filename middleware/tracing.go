package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"study-notes-platform/internal/logger"
	"study-notes-platform/internal/telemetry"
)

// TracingMiddleware provides OpenTelemetry tracing for Gin
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// EnrichTrace adds the document and content type route parameters to the
// request span.
func EnrichTrace() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if id := c.Param("id"); id != "" {
			span.SetAttributes(attribute.String("document.id", id))
		}
		if ct := c.Param("contentType"); ct != "" {
			span.SetAttributes(attribute.String("content.type", ct))
		}
		span.SetAttributes(attribute.String("http.client_ip", c.ClientIP()))

		c.Next()

		span.SetAttributes(
			attribute.Int("http.response.status_code", c.Writer.Status()),
			attribute.Int("http.response.size", c.Writer.Size()),
		)
	}
}

// MetricsMiddleware records one request metric and one access log line per
// request. Paths are the route templates, not the raw URLs.
func MetricsMiddleware(metrics *telemetry.Metrics) gin.HandlerFunc {
	log := logger.With("http")
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		metrics.RecordRequest(c.Request.Method, path, strconv.Itoa(status), duration.Seconds())

		log.Info("request",
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", duration.Milliseconds(),
			"request_id", GetRequestID(c),
		)
	}
}
