package logging

import (
	"context"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type requestIDKey struct{}

const maxRequestIDLen = 128

// Request IDs come from the X-Request-Id header, so clients choose them.
var requestIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// WithRequestID returns ctx carrying requestID. Empty, oversized or
// malformed IDs are dropped and ctx is returned unchanged.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" || len(requestID) > maxRequestIDLen || !requestIDPattern.MatchString(requestID) {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextFields returns the correlation fields carried by ctx: the active
// span's trace and span IDs, and the request ID.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	return fields
}

// ForContext returns base with the correlation fields of ctx attached.
// Services holding a plain *zap.Logger call it once per request.
func ForContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
