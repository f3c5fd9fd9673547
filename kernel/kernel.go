// Package kernel implements the server kernel: the dispatcher that sits
// between a Transport and a Plugin Host, resolving the six JSON-RPC methods
// the platform exposes and wrapping every tools/call through the
// middleware pipeline.
package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/guahanweb/mcp-server-platform/jsonrpc"
	"github.com/guahanweb/mcp-server-platform/middleware"
	"github.com/guahanweb/mcp-server-platform/orchestrator"
	"github.com/guahanweb/mcp-server-platform/plugin"
	"github.com/guahanweb/mcp-server-platform/transport"
)

// Config is the kernel's own configuration surface, independent of how it
// got assembled (functional options here, spf13/viper in config.Load).
type Config struct {
	Name     string
	Version  string
	LogLevel string
}

// Server is the Server Kernel: it owns the Plugin Host and the Transport,
// registers the six JSON-RPC method handlers, and constructs the per-call
// CallContext around every dispatch.
type Server struct {
	cfg          Config
	host         *plugin.Host
	transport    transport.Transport
	pipeline     *middleware.Pipeline
	orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMiddleware installs the ordered middleware pipeline wrapped around
// every tools/call dispatch. Resource and prompt calls never see it.
func WithMiddleware(middlewares ...middleware.Middleware) Option {
	return func(s *Server) { s.pipeline = middleware.NewPipeline(middlewares...) }
}

// WithOrchestrator wires the session orchestrator into the dispatch path.
// When set, an incoming request's Message is routed through
// Orchestrator.ProcessMessage before dispatch, so the resolved tool sees
// the correct CurrentWorkflow.
func WithOrchestrator(o *orchestrator.Orchestrator) Option {
	return func(s *Server) { s.orchestrator = o }
}

// WithLogger overrides the kernel's diagnostic logger. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a Server over host and tr.
func New(cfg Config, host *plugin.Host, tr transport.Transport, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		host:      host,
		transport: tr,
		pipeline:  middleware.NewPipeline(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins accepting connections on the underlying transport, wiring
// dispatch through the kernel's handleRequest.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting kernel",
		slog.String("name", s.cfg.Name),
		slog.String("version", s.cfg.Version))
	return s.transport.Start(ctx, s.handleRequest)
}

// Stop stops accepting connections on the transport, then runs plugin
// shutdowns on the Plugin Host.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.transport.Stop(ctx); err != nil {
		s.logger.Error("transport stop failed", slog.String("err", err.Error()))
	}
	s.host.Shutdown(ctx)
	return nil
}

// handleRequest is the transport.Handler the kernel registers with every
// Transport variant. It never panics or lets an error escape: any failure
// is turned into a JSON-RPC error envelope and handed to reply.
//
// The resolved RequestContext is attached to ctx rather than pushed onto a
// shared Host field, so concurrent dispatches on the same Host — every
// transport variant serves requests concurrently — each carry their own
// RequestContext through the call stack and never observe one another's.
func (s *Server) handleRequest(ctx context.Context, req transport.Request, reply transport.ReplyFunc) {
	rc := s.buildRequestContext(ctx, req)
	ctx = plugin.WithRequestContext(ctx, rc)

	switch req.Method {
	case "tools/list":
		s.handleToolsList(ctx, req, reply)
	case "tools/call":
		s.handleToolsCall(ctx, req, reply)
	case "resources/list":
		s.handleResourcesList(ctx, req, reply)
	case "resources/read":
		s.handleResourcesRead(ctx, req, reply)
	case "prompts/list":
		s.handlePromptsList(ctx, req, reply)
	case "prompts/get":
		s.handlePromptsGet(ctx, req, reply)
	default:
		reply(ctx, jsonrpc.ErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))))
	}
}

// buildRequestContext resolves the per-call RequestContext, routing the
// message through the orchestrator first when one is wired in so
// CurrentWorkflow reflects any workflow switch the message just triggered.
func (s *Server) buildRequestContext(ctx context.Context, req transport.Request) *plugin.RequestContext {
	rc := &plugin.RequestContext{
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Message:   req.Message,
		Timestamp: time.Now(),
		Metadata:  metadataToAny(req.Metadata),
	}
	if req.WorkflowID != "" {
		rc.CurrentWorkflow = req.WorkflowID
	}

	if s.orchestrator == nil || req.Message == "" {
		return rc
	}

	result, err := s.orchestrator.ProcessMessage(ctx, req.Message, req.SessionID, req.UserID, "")
	if err != nil {
		s.logger.Warn("orchestrator processMessage failed", slog.String("err", err.Error()))
		return rc
	}

	rc.SessionID = result.Session.SessionID
	rc.CurrentWorkflow = result.Session.ActiveWorkflow
	return rc
}

func metadataToAny(m map[string]string) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func decodeParams[T any](raw []byte) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, err
	}
	return v, nil
}
