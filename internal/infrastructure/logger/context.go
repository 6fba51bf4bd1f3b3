package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey    contextKey = "logger"
	requestIDKey contextKey = "request_id"
	cashierIDKey contextKey = "cashier_id"
)

// WithContext returns a new context carrying the logger
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}

// WithRequestID stores the request id and a logger tagged with it
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return WithContext(ctx, logger.With(zap.String("request_id", requestID)))
}

// WithCashierID stores the acting cashier and tags the context logger
func WithCashierID(ctx context.Context, cashierID string) context.Context {
	ctx = context.WithValue(ctx, cashierIDKey, cashierID)
	return WithContext(ctx, FromContext(ctx).With(zap.String("cashier_id", cashierID)))
}

// GetRequestID returns the request id stored in ctx
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// GetCashierID returns the cashier id stored in ctx
func GetCashierID(ctx context.Context) string {
	id, _ := ctx.Value(cashierIDKey).(string)
	return id
}

// L returns the context logger with trace_id and span_id attached when ctx
// carries a valid span
func L(ctx context.Context) *zap.Logger {
	return WithTraceContext(ctx, FromContext(ctx))
}

// WithTraceContext adds trace correlation fields to logger
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}
