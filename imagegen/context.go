package imagegen

import "context"

type correlationKey struct{}

// WithCorrelationID returns a context carrying a generation's correlation ID.
// Sinks read it to label their output.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the correlation ID, or "run" when unset.
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := correlationID(ctx); ok {
		return id
	}
	return "run"
}

func correlationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok && id != ""
}
