package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer used for service spans
const TracerName = "tuitionhub-settlement"

// Span attribute keys used by the settlement services
const (
	SpanAttrTransactionID = "transaction_id"
	SpanAttrStudentID     = "student_id"
	SpanAttrClassID       = "class_id"
	SpanAttrSessionID     = "session_id"
	SpanAttrCashierID     = "cashier_id"
	SpanAttrAmount        = "amount"
	SpanAttrStatus        = "status"
	SpanAttrReportType    = "report_type"
	SpanAttrAttempt       = "attempt"
)

// StartServiceSpan starts a span named {service}.{method}.
//
//	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "process")
//	defer span.End()
func StartServiceSpan(ctx context.Context, service, method string, keyValues ...interface{}) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	ctx, span := tracer.Start(ctx, fmt.Sprintf("%s.%s", service, method), trace.WithSpanKind(trace.SpanKindInternal))
	SetAttributes(span, keyValues...)
	return ctx, span
}

// SetAttributes adds alternating key/value attributes to a span
func SetAttributes(span trace.Span, keyValues ...interface{}) {
	if span == nil || len(keyValues) < 2 {
		return
	}
	span.SetAttributes(toAttributes(keyValues)...)
}

// RecordError records err on the span and marks it failed
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddEvent adds a time-stamped event with alternating key/value attributes
func AddEvent(span trace.Span, name string, keyValues ...interface{}) {
	if span == nil {
		return
	}
	span.AddEvent(name, trace.WithAttributes(toAttributes(keyValues)...))
}

// GetTraceID returns the trace ID of the span in ctx, or ""
func GetTraceID(ctx context.Context) string {
	traceID := trace.SpanFromContext(ctx).SpanContext().TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}

// GetSpanID returns the span ID of the span in ctx, or ""
func GetSpanID(ctx context.Context) string {
	spanID := trace.SpanFromContext(ctx).SpanContext().SpanID()
	if !spanID.IsValid() {
		return ""
	}
	return spanID.String()
}

func toAttributes(keyValues []interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, keyValues[i+1]))
	}
	return attrs
}

func toAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
