package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimitAllowsUpToMaxCalls(t *testing.T) {
	rl := NewRateLimit(2, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, rl.BeforeToolCall(ctx, "greet", nil))
	require.NoError(t, rl.BeforeToolCall(ctx, "greet", nil))
	err := rl.BeforeToolCall(ctx, "greet", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "greet")
}

func TestRateLimitResetsAfterWindow(t *testing.T) {
	rl := NewRateLimit(1, 10*time.Millisecond, nil)
	ctx := context.Background()

	require.NoError(t, rl.BeforeToolCall(ctx, "greet", nil))
	require.Error(t, rl.BeforeToolCall(ctx, "greet", nil))

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, rl.BeforeToolCall(ctx, "greet", nil))
}

func TestRateLimitWindowsAreIndependentPerTool(t *testing.T) {
	rl := NewRateLimit(1, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, rl.BeforeToolCall(ctx, "greet", nil))
	require.NoError(t, rl.BeforeToolCall(ctx, "farewell", nil))
	require.Error(t, rl.BeforeToolCall(ctx, "greet", nil))
}

func TestRateLimitKeyByToolAndSessionSeparatesCallers(t *testing.T) {
	rl := NewRateLimit(1, time.Minute, KeyByToolAndSession)
	ctx := context.Background()

	require.NoError(t, rl.BeforeToolCall(ctx, "greet", map[string]any{"sessionId": "a"}))
	require.NoError(t, rl.BeforeToolCall(ctx, "greet", map[string]any{"sessionId": "b"}))
	require.Error(t, rl.BeforeToolCall(ctx, "greet", map[string]any{"sessionId": "a"}))
}
