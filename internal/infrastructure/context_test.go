package infrastructure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureTraceID(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	id := GetTraceID(ctx)
	require.NotEmpty(t, id)

	// An existing trace ID is kept, not replaced.
	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)))
}

func TestGetTraceIDMissing(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestLoggerWithContext(t *testing.T) {
	require.NotNil(t, LoggerWithContext(context.Background()))
	require.NotNil(t, LoggerWithContext(WithTraceID(context.Background(), "abc-123")))
}
