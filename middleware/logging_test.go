package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggingRecordsStartAndFinish(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogging(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, l.BeforeToolCall(context.Background(), "greet", nil))
	require.NoError(t, l.AfterToolCall(context.Background(), "greet", nil, "hi"))

	out := buf.String()
	require.Contains(t, out, "tool call started")
	require.Contains(t, out, "tool call finished")
	require.Contains(t, out, "greet")
}

func TestLoggingOnErrorRecordsFailure(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogging(slog.New(slog.NewTextHandler(&buf, nil)))

	l.OnError(context.Background(), errors.New("boom"), "tool_call", map[string]any{"tool": "greet"})

	out := buf.String()
	require.Contains(t, out, "tool call failed")
	require.Contains(t, out, "boom")
}
