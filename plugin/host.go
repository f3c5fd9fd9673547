package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// registeredPlugin tracks a plugin alongside its config and the registry
// keys it registered, so per-plugin registries can be cleared on rollback or
// shutdown without touching sibling plugins.
type registeredPlugin struct {
	plugin  Plugin
	config  map[string]any
	tools   []string // tool registry keys owned by this plugin
	prompts []string // prompt registry keys owned by this plugin
	uris    []string // resource uris owned by this plugin
}

// Host is the Plugin Host. It owns the tool/resource/prompt registries
// and the plugin lifecycle; registries are write-once at
// registration/shutdown and read-many at dispatch.
type Host struct {
	logger *slog.Logger

	mu        sync.RWMutex
	plugins   map[string]*registeredPlugin
	order     []string // registration order, for reverse-order shutdown
	tools     map[string]Tool
	prompts   map[string]Prompt
	resources map[string]Resource

	stateMu sync.Mutex
	states  map[string]any // per-process scratch cache, keyed by workflowId
}

// NewHost creates an empty Plugin Host.
func NewHost(opts ...HostOption) *Host {
	h := &Host{
		logger:    slog.Default(),
		plugins:   make(map[string]*registeredPlugin),
		tools:     make(map[string]Tool),
		prompts:   make(map[string]Prompt),
		resources: make(map[string]Resource),
		states:    make(map[string]any),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithHostLogger sets the diagnostic logger the Host uses for its own
// messages (registration failures, shutdown errors); it is not the
// namespaced logger handed to plugins, which is always derived from it.
func WithHostLogger(logger *slog.Logger) HostOption {
	return func(h *Host) {
		h.logger = logger.With(slog.String("component", "plugin-host"))
	}
}

// Register drives the registration protocol: validate the plugin id,
// build a RegistrationContext, call Initialize, then seal the context. It
// fails synchronously (preventing server start) on a duplicate or empty
// id, or if Initialize itself fails; in either failure case nothing the
// plugin registered during the failed call is left behind.
func (h *Host) Register(ctx context.Context, p Plugin, config map[string]any) error {
	meta := p.Metadata()
	if meta.ID == "" {
		return fmt.Errorf("plugin: metadata.id must not be empty")
	}

	h.mu.Lock()
	if _, exists := h.plugins[meta.ID]; exists {
		h.mu.Unlock()
		return fmt.Errorf("plugin: id %q is already registered", meta.ID)
	}
	rp := &registeredPlugin{plugin: p, config: config}
	h.plugins[meta.ID] = rp
	h.mu.Unlock()

	reg := &RegistrationContext{
		pluginID: meta.ID,
		logger:   NewNamespacedLogger(h.logger, meta.ID),
		config:   config,
		host:     h,
	}

	if err := p.Initialize(ctx, reg); err != nil {
		h.rollback(meta.ID)
		return fmt.Errorf("plugin %q: initialize failed: %w", meta.ID, err)
	}
	reg.seal()

	h.mu.Lock()
	h.order = append(h.order, meta.ID)
	h.mu.Unlock()

	return nil
}

// rollback removes every registry entry a failed Initialize call may have
// left behind, restoring the Host to its pre-registration state.
func (h *Host) rollback(pluginID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rp, ok := h.plugins[pluginID]
	if !ok {
		return
	}
	for _, k := range rp.tools {
		delete(h.tools, k)
	}
	for _, k := range rp.prompts {
		delete(h.prompts, k)
	}
	for _, uri := range rp.uris {
		delete(h.resources, uri)
	}
	delete(h.plugins, pluginID)
}

func (h *Host) registerTool(pluginID string, tool Tool) error {
	if tool.Handler == nil {
		return fmt.Errorf("plugin %q: tool %q has no handler", pluginID, tool.Name)
	}
	for _, req := range tool.InputSchema.Required {
		if _, ok := tool.InputSchema.Properties[req]; !ok {
			return fmt.Errorf("plugin %q: tool %q required field %q is not in properties", pluginID, tool.Name, req)
		}
	}

	key := toolKey(pluginID, tool.Name)

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.tools[key]; exists {
		return fmt.Errorf("plugin %q: tool %q is already registered", pluginID, tool.Name)
	}
	h.tools[key] = tool
	if rp, ok := h.plugins[pluginID]; ok {
		rp.tools = append(rp.tools, key)
	}
	return nil
}

func (h *Host) registerResource(pluginID string, resource Resource) error {
	if resource.Handler == nil {
		return fmt.Errorf("plugin %q: resource %q has no handler", pluginID, resource.URI)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.resources[resource.URI]; exists {
		return fmt.Errorf("resource uri %q is already registered", resource.URI)
	}
	h.resources[resource.URI] = resource
	if rp, ok := h.plugins[pluginID]; ok {
		rp.uris = append(rp.uris, resource.URI)
	}
	return nil
}

func (h *Host) registerPrompt(pluginID string, prompt Prompt) error {
	if prompt.Handler == nil {
		return fmt.Errorf("plugin %q: prompt %q has no handler", pluginID, prompt.Name)
	}

	key := promptKey(pluginID, prompt.Name)

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.prompts[key]; exists {
		return fmt.Errorf("plugin %q: prompt %q is already registered", pluginID, prompt.Name)
	}
	h.prompts[key] = prompt
	if rp, ok := h.plugins[pluginID]; ok {
		rp.prompts = append(rp.prompts, key)
	}
	return nil
}

// Tools returns a snapshot of every registered tool. Each returned Tool's
// Name is its namespaced "{pluginId}:{name}" registry key, the name Tool and
// tools/call resolve.
func (h *Host) Tools() []Tool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Tool, 0, len(h.tools))
	for key, t := range h.tools {
		t.Name = key
		out = append(out, t)
	}
	return out
}

// Tool looks up a tool by its namespaced key.
func (h *Host) Tool(key string) (Tool, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.tools[key]
	return t, ok
}

// Resources returns a snapshot of every registered resource.
func (h *Host) Resources() []Resource {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Resource, 0, len(h.resources))
	for _, r := range h.resources {
		out = append(out, r)
	}
	return out
}

// Resource looks up a resource by its bare uri.
func (h *Host) Resource(uri string) (Resource, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.resources[uri]
	return r, ok
}

// Prompts returns a snapshot of every registered prompt.
func (h *Host) Prompts() []Prompt {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Prompt, 0, len(h.prompts))
	for _, p := range h.prompts {
		out = append(out, p)
	}
	return out
}

// Prompt looks up a prompt by its namespaced key.
func (h *Host) Prompt(key string) (Prompt, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.prompts[key]
	return p, ok
}

// NewCallContext builds the CallContext handed to a tool/resource/prompt
// handler for the given owning plugin id.
func (h *Host) NewCallContext(pluginID string) *CallContext {
	return &CallContext{
		pluginID: pluginID,
		logger:   NewNamespacedLogger(h.logger, pluginID),
		host:     h,
	}
}

func (h *Host) getWorkflowState(workflowID string) any {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return h.states[workflowID]
}

// SetWorkflowState is reserved for kernel internals: plugins mutate
// workflow state only through CallContext.UpdateWorkflowState, but the
// kernel itself may need to refresh the Host's scratch cache after a
// handler runs, e.g. when reconciling against the orchestrator's canonical
// state.
func (h *Host) SetWorkflowState(workflowID string, state any) {
	h.setWorkflowState(workflowID, state)
}

func (h *Host) setWorkflowState(workflowID string, state any) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	h.states[workflowID] = state
}

// Shutdown calls every plugin's optional Shutdown in reverse registration
// order. A failure is logged and does not prevent draining the rest;
// registries tied to the plugin are cleared regardless.
func (h *Host) Shutdown(ctx context.Context) {
	h.mu.RLock()
	order := make([]string, len(h.order))
	copy(order, h.order)
	h.mu.RUnlock()

	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]

		h.mu.RLock()
		rp, ok := h.plugins[id]
		h.mu.RUnlock()
		if !ok {
			continue
		}

		if sp, ok := rp.plugin.(ShutdownablePlugin); ok {
			if err := sp.Shutdown(ctx); err != nil {
				h.logger.Error("plugin shutdown failed", slog.String("pluginID", id), slog.String("err", err.Error()))
			}
		}

		h.rollback(id)
	}

	h.mu.Lock()
	h.order = nil
	h.mu.Unlock()
}
