package plugin

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RequestContext is the per-call, kernel-owned request envelope: attached
// to the dispatch's context.Context on entry and never mutated afterward.
// Handlers must treat a returned RequestContext as immutable; the only
// supported write path for workflow state is CallContext.UpdateWorkflowState.
type RequestContext struct {
	SessionID       string
	UserID          string
	CurrentWorkflow string
	Message         string
	Timestamp       time.Time
	Metadata        map[string]any
}

// requestContextKey is the unexported context.Context key RequestContext is
// stored under, so concurrent dispatches on the same Host each carry their
// own RequestContext through the call stack instead of sharing one
// Host-level field.
type requestContextKey struct{}

// WithRequestContext returns a copy of ctx carrying rc. The kernel calls
// this exactly once per dispatch, before invoking any handler.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFromContext returns the RequestContext attached to ctx, or
// nil if none is attached.
func RequestContextFromContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}

// Logger is the collaborator interface plugins receive. The platform's
// own diagnostic logging is layered on log/slog, and NamespacedLogger below
// is the adapter every plugin actually gets.
type Logger interface {
	Debug(message string, args ...any)
	Info(message string, args ...any)
	Warn(message string, args ...any)
	Error(message string, args ...any)
}

// slogLogger adapts a *slog.Logger to the Logger collaborator interface, and
// is what NewNamespacedLogger returns.
type slogLogger struct {
	logger *slog.Logger
}

// NewNamespacedLogger wraps logger so every message it emits is tagged
// with the owning plugin's id. Level filtering is inherited from the
// wrapped logger, i.e. from the kernel.
func NewNamespacedLogger(logger *slog.Logger, pluginID string) Logger {
	return &slogLogger{logger: logger.With(slog.String("plugin", pluginID))}
}

func (l *slogLogger) Debug(message string, args ...any) { l.logger.Debug(message, args...) }
func (l *slogLogger) Info(message string, args ...any)  { l.logger.Info(message, args...) }
func (l *slogLogger) Warn(message string, args ...any)  { l.logger.Warn(message, args...) }
func (l *slogLogger) Error(message string, args ...any) { l.logger.Error(message, args...) }

// ErrRegistrationClosed is returned by RegisterTool, RegisterResource and
// RegisterPrompt once initialize has returned and the context has been sealed.
var ErrRegistrationClosed = errors.New("plugin: registration context is closed")

// RegistrationContext is the short-lived object a plugin receives during
// Initialize. registerTool/registerResource/registerPrompt are fail-active
// once sealed: calling them after Initialize returns always fails, rather
// than silently doing nothing.
type RegistrationContext struct {
	pluginID string
	logger   Logger
	config   map[string]any

	host   *Host
	sealed bool
}

// RegisterTool registers a tool under the key "{pluginId}:{name}".
func (r *RegistrationContext) RegisterTool(tool Tool) error {
	if r.sealed {
		return ErrRegistrationClosed
	}
	return r.host.registerTool(r.pluginID, tool)
}

// RegisterResource registers a resource under its bare, globally-unique uri.
func (r *RegistrationContext) RegisterResource(resource Resource) error {
	if r.sealed {
		return ErrRegistrationClosed
	}
	return r.host.registerResource(r.pluginID, resource)
}

// RegisterPrompt registers a prompt under the key "{pluginId}:{name}".
func (r *RegistrationContext) RegisterPrompt(prompt Prompt) error {
	if r.sealed {
		return ErrRegistrationClosed
	}
	return r.host.registerPrompt(r.pluginID, prompt)
}

// Logger returns the plugin's namespaced logger.
func (r *RegistrationContext) Logger() Logger {
	return r.logger
}

// Config returns the plugin's configuration map, supplied by the host when
// the plugin was registered.
func (r *RegistrationContext) Config() map[string]any {
	return r.config
}

// GetRequestContext exposes the RequestContext attached to ctx, if any, so
// a plugin can inspect it even during initialize-time setup that needs
// request-shaped defaults (rare, but available for symmetry with
// CallContext).
func (r *RegistrationContext) GetRequestContext(ctx context.Context) *RequestContext {
	return RequestContextFromContext(ctx)
}

func (r *RegistrationContext) seal() {
	r.sealed = true
}

// CallContext is the short-lived object passed to every tool, resource and
// prompt handler. It grants a namespaced logger, read-only access to the
// current request's metadata, and the only supported mutation path for
// per-workflow scratch state kept by the Host.
//
// The Host's workflowStates map is a per-process scratch cache, distinct
// from and non-authoritative relative to the orchestrator's session-bound
// WorkflowState. CallContext only ever touches the Host's cache; callers
// that need the canonical state go through the orchestrator directly.
type CallContext struct {
	pluginID string
	logger   Logger
	host     *Host
}

// Logger returns the call's namespaced logger.
func (c *CallContext) Logger() Logger {
	return c.logger
}

// GetRequestContext returns the RequestContext attached to ctx, or nil if
// none is attached. Each dispatch attaches its own RequestContext to its
// own context.Context, so concurrent requests never observe each other's
// context even when they share this Host.
func (c *CallContext) GetRequestContext(ctx context.Context) *RequestContext {
	return RequestContextFromContext(ctx)
}

// GetWorkflowState returns the Host's scratch state for ctx's request's
// CurrentWorkflow, or nil if no workflow is active or no state has been
// recorded yet.
func (c *CallContext) GetWorkflowState(ctx context.Context) any {
	rc := RequestContextFromContext(ctx)
	if rc == nil || rc.CurrentWorkflow == "" {
		return nil
	}
	return c.host.getWorkflowState(rc.CurrentWorkflow)
}

// UpdateWorkflowState replaces the Host's scratch state for ctx's request's
// CurrentWorkflow. It is a no-op if no workflow is active.
func (c *CallContext) UpdateWorkflowState(ctx context.Context, state any) {
	rc := RequestContextFromContext(ctx)
	if rc == nil || rc.CurrentWorkflow == "" {
		return
	}
	c.host.setWorkflowState(rc.CurrentWorkflow, state)
}
