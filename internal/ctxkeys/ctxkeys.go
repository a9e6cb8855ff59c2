package ctxkeys

import "context"

// contextKey is the type used for values stored in a context.Context.
type contextKey string

const (
	traceIDKey  contextKey = "trace_id"
	jobIDKey    contextKey = "job_id"
	sourceIDKey contextKey = "source_id"
	userIDKey   contextKey = "user_id"
)

// WithTraceID attaches a trace id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID reads the trace id, if present.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithJobID attaches a scheduler job id.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// JobID reads the scheduler job id, if present.
func JobID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(jobIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithSourceID attaches a source connection id.
func WithSourceID(ctx context.Context, sourceID string) context.Context {
	return context.WithValue(ctx, sourceIDKey, sourceID)
}

// SourceID reads the source connection id, if present.
func SourceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sourceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithUserID attaches the budget-ledger user id used for admission checks.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID reads the budget-ledger user id, if present.
func UserID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(userIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
