package middleware

import (
	"context"
	"log/slog"
)

// Logging is a built-in middleware that records tool entry, exit and error
// through the kernel's diagnostic logger.
type Logging struct {
	logger *slog.Logger
}

// NewLogging creates a Logging middleware writing through logger.
func NewLogging(logger *slog.Logger) *Logging {
	return &Logging{logger: logger.With(slog.String("middleware", "logging"))}
}

// Name implements Middleware.
func (l *Logging) Name() string { return "logging" }

// BeforeToolCall implements BeforeToolCaller.
func (l *Logging) BeforeToolCall(_ context.Context, toolName string, _ map[string]any) error {
	l.logger.Info("tool call started", slog.String("tool", toolName))
	return nil
}

// AfterToolCall implements AfterToolCaller.
func (l *Logging) AfterToolCall(_ context.Context, toolName string, _ map[string]any, _ any) error {
	l.logger.Info("tool call finished", slog.String("tool", toolName))
	return nil
}

// OnError implements OnErrorer.
func (l *Logging) OnError(_ context.Context, err error, contextTag string, detail map[string]any) {
	l.logger.Error("tool call failed",
		slog.String("context", contextTag),
		slog.Any("detail", detail),
		slog.String("err", err.Error()))
}
