package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithPrincipal_RoundTrips(t *testing.T) {
	ctx := WithPrincipal(context.Background(), "u1", "t1")

	assert.Equal(t, "u1", UserIDFromContext(ctx))
	assert.Equal(t, "t1", TenantIDFromContext(ctx))
}

func TestWithPrincipal_EmptyValuesLeaveContextUnset(t *testing.T) {
	ctx := WithPrincipal(context.Background(), "", "")

	assert.Empty(t, UserIDFromContext(ctx))
	assert.Empty(t, TenantIDFromContext(ctx))
}

func TestFromContext_AttachesPrincipalFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	t.Cleanup(func() { Init(Config{Level: "info"}) })

	ctx := WithPrincipal(context.Background(), "u1", "t1")
	ctx = WithTraceID(ctx, "trace-1")

	FromContext(ctx).Info().Msg("test event")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, "t1", entry["tenant_id"])
	assert.Equal(t, "trace-1", entry["trace_id"])
}

func TestNewContextWithIDs(t *testing.T) {
	ctx := NewContextWithIDs(context.Background(), "trace-1", "corr-1")

	assert.Equal(t, "trace-1", TraceIDFromContext(ctx))
	assert.Equal(t, "corr-1", CorrelationIDFromContext(ctx))
}
