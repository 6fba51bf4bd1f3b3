package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// DefaultTracingConfig returns default tracing configuration
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "tuitionhub-settlement",
		Enabled:     true,
	}
}

// TracingWithConfig returns the otelgin server middleware. Spans are named
// "METHOD /route/:pattern".
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return otelgin.Middleware(cfg.ServiceName)
}

// SpanAttributes copies the request id onto the active span. It runs after
// TracingWithConfig and RequestID.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if requestID := c.GetString(RequestIDKey); requestID != "" {
				span.SetAttributes(attribute.String("request_id", requestID))
			}
		}
		c.Next()
	}
}

// SpanErrorMarker marks the active span as failed for 4xx and 5xx responses
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		msg := "Client Error"
		switch {
		case status >= http.StatusInternalServerError:
			msg = "Internal Server Error"
		case status == http.StatusNotFound:
			msg = "Not Found"
		case status == http.StatusConflict:
			msg = "Conflict"
		}
		span.SetStatus(codes.Error, msg)
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}
