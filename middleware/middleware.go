// Package middleware implements the ordered pre-call/post-call/on-error
// pipeline wrapped around every tools/call dispatch.
package middleware

import "context"

// Middleware is a name plus any combination of the three optional hooks.
// Rather than dynamic-dispatch "does this middleware implement
// beforeToolCall" checks, the pipeline uses Go's own interface
// satisfaction — a Middleware advertises which hooks it implements simply
// by implementing the corresponding optional interface.
type Middleware interface {
	Name() string
}

// BeforeToolCaller is the optional pre-call hook. Returning an error aborts
// the call: the tool is never invoked, and OnError fires for every
// middleware in the pipeline.
type BeforeToolCaller interface {
	BeforeToolCall(ctx context.Context, toolName string, params map[string]any) error
}

// AfterToolCaller is the optional post-call hook, run after a successful tool
// invocation.
type AfterToolCaller interface {
	AfterToolCall(ctx context.Context, toolName string, params map[string]any, result any) error
}

// OnErrorer is the optional failure hook, run for every middleware in
// registration order whenever any stage of the call fails.
type OnErrorer interface {
	OnError(ctx context.Context, err error, contextTag string, detail map[string]any)
}

// ToolHandler is the underlying tool invocation the Pipeline wraps.
type ToolHandler func(ctx context.Context, toolName string, params map[string]any) (any, error)

// Pipeline runs an ordered chain of Middleware around a tool call: every
// BeforeToolCall in registration order, then the tool, then every
// AfterToolCall in registration order; on any failure anywhere, every
// OnError in registration order, then the failure propagates.
type Pipeline struct {
	middlewares []Middleware
}

// NewPipeline creates a Pipeline from an ordered list of middlewares.
func NewPipeline(middlewares ...Middleware) *Pipeline {
	return &Pipeline{middlewares: middlewares}
}

// Run executes toolName through the pipeline.
func (p *Pipeline) Run(ctx context.Context, toolName string, params map[string]any, handler ToolHandler) (any, error) {
	for _, m := range p.middlewares {
		before, ok := m.(BeforeToolCaller)
		if !ok {
			continue
		}
		if err := before.BeforeToolCall(ctx, toolName, params); err != nil {
			p.runOnError(ctx, err, "before_tool_call", map[string]any{"tool": toolName})
			return nil, err
		}
	}

	result, err := handler(ctx, toolName, params)
	if err != nil {
		p.runOnError(ctx, err, "tool_call", map[string]any{"tool": toolName})
		return nil, err
	}

	for _, m := range p.middlewares {
		after, ok := m.(AfterToolCaller)
		if !ok {
			continue
		}
		if err := after.AfterToolCall(ctx, toolName, params, result); err != nil {
			p.runOnError(ctx, err, "after_tool_call", map[string]any{"tool": toolName})
			return nil, err
		}
	}

	return result, nil
}

func (p *Pipeline) runOnError(ctx context.Context, err error, contextTag string, detail map[string]any) {
	for _, m := range p.middlewares {
		onErr, ok := m.(OnErrorer)
		if !ok {
			continue
		}
		onErr.OnError(ctx, err, contextTag, detail)
	}
}
