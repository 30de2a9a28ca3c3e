package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	TraceIDKey ContextKey = "trace_id"
	RunIDKey   ContextKey = "run_id"
	// BackendKey carries the name of the backend currently serving a call.
	BackendKey ContextKey = "backend"
)

// TraceContext holds the identifiers attached to a single agent run.
type TraceContext struct {
	TraceID string
	RunID   string
	Backend string
}

func NewTraceID() string {
	return uuid.New().String()
}

func NewRunID() string {
	return uuid.New().String()
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

func WithBackend(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, BackendKey, name)
}

func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, TraceIDKey)
}

func GetRunID(ctx context.Context) string {
	return stringValue(ctx, RunIDKey)
}

func GetBackend(ctx context.Context) string {
	return stringValue(ctx, BackendKey)
}

func stringValue(ctx context.Context, key ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID: GetTraceID(ctx),
		RunID:   GetRunID(ctx),
		Backend: GetBackend(ctx),
	}
}

// NewRunContext starts a new run: a fresh run id, and a fresh trace id when
// the parent does not carry one yet.
func NewRunContext(ctx context.Context) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	return WithRunID(ctx, NewRunID())
}
