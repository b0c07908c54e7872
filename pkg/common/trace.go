package common

import "context"

// traceIDKey is the context key for the trace ID
type traceIDKey struct{}

// WithTraceID returns a copy of ctx carrying the trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceID extracts the trace ID from a context.
// Returns an empty string if no trace ID is found.
func TraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey{}).(string); ok {
		return traceID
	}
	return ""
}
