package middleware

import (
	"time"

	"masterclass-pods/internal/telemetry"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TracingMiddleware(service string) gin.HandlerFunc {
	return otelgin.Middleware(service)
}

// EnrichTrace adds the request id, admin identity and pod id to the span.
func EnrichTrace() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		span.SetAttributes(attribute.String("request.id", GetRequestID(c)))

		c.Next()

		if claims := GetClaims(c); claims != nil {
			span.SetAttributes(
				attribute.String("user.id", claims.UserID),
				attribute.String("user.role", claims.Role),
			)
		}
		if id := c.Param("id"); id != "" {
			span.SetAttributes(attribute.String("pod.id", id))
		}
		span.SetAttributes(attribute.Int("http.response.status_code", c.Writer.Status()))
	}
}

// MetricsMiddleware records request metrics
func MetricsMiddleware(metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := "success"
		if c.Writer.Status() >= 400 {
			status = "error"
		}
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordRequest(c.Request.Method, path, status, time.Since(start).Seconds())
	}
}
