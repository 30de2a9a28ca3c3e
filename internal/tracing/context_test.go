package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIDsAreUnique(t *testing.T) {
	assert.NotEqual(t, NewTraceID(), NewTraceID())
	assert.NotEqual(t, NewRunID(), NewRunID())
	assert.NotEmpty(t, NewRunID())
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithRunID(ctx, "run-1")
	ctx = WithBackend(ctx, "openrouter")

	tc := FromContext(ctx)
	assert.Equal(t, "trace-1", tc.TraceID)
	assert.Equal(t, "run-1", tc.RunID)
	assert.Equal(t, "openrouter", tc.Backend)
}

func TestEmptyContext(t *testing.T) {
	tc := FromContext(context.Background())
	assert.Empty(t, tc.TraceID)
	assert.Empty(t, tc.RunID)
	assert.Empty(t, tc.Backend)
}

func TestNewRunContextKeepsTraceID(t *testing.T) {
	parent := WithTraceID(context.Background(), "trace-keep")

	ctx := NewRunContext(parent)
	assert.Equal(t, "trace-keep", GetTraceID(ctx))
	assert.NotEmpty(t, GetRunID(ctx))

	fresh := NewRunContext(context.Background())
	assert.NotEmpty(t, GetTraceID(fresh))
}
