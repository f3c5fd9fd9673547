// Package transport defines the uniform transport-layer contract and
// provides the stdio, HTTP, WebSocket and SSE variants. Every variant
// frames JSON-RPC 2.0 messages the same way: it normalises the wire
// frame into a Request, calls the registered handler, and turns whatever the
// handler replies with back into bytes on the wire. Transports never panic or
// bubble an error out of the request path; parse and handler failures are
// always serialised into a JSON-RPC error envelope.
package transport

import (
	"context"

	"github.com/guahanweb/mcp-server-platform/jsonrpc"
)

// Request is the transport-normalised view of an incoming JSON-RPC call,
// carrying whatever request metadata that transport variant can harvest.
type Request struct {
	Method  string
	Params  []byte
	ID      jsonrpc.ID
	Message string

	SessionID  string
	UserID     string
	WorkflowID string
	Metadata   map[string]string
	ConnID     string
	RemoteAddr string
	UserAgent  string
}

// ReplyFunc sends a response back on the connection the Request arrived on.
// Implementations must tolerate being called after the originating connection
// went away; in that case Reply is a no-op.
type ReplyFunc func(ctx context.Context, resp jsonrpc.Response)

// Handler is called once per inbound Request. It must not block for longer
// than the caller is willing to wait; long-running work should be spun off
// into its own goroutine that eventually calls reply.
type Handler func(ctx context.Context, req Request, reply ReplyFunc)

// Transport is the uniform interface every variant satisfies: start
// accepting connections, stop accepting them, and (for variants that support
// it) push server-initiated broadcasts.
type Transport interface {
	// Start begins accepting connections and dispatching Requests to handler.
	// Start returns once the transport is ready to accept traffic; it does
	// not block for the lifetime of the transport.
	Start(ctx context.Context, handler Handler) error

	// Stop gracefully shuts the transport down: stop accepting new
	// connections, drain in-flight requests, then release resources. Stop
	// must be safe to call exactly once.
	Stop(ctx context.Context) error
}

// Broadcaster is implemented by transports that support server-initiated,
// broadcast-only pushes (WebSocket, SSE). Stdio and HTTP do not implement
// it: broadcast is not a meaningful operation on a single-request channel.
type Broadcaster interface {
	// Send broadcasts data to every open connection for which filter returns
	// true. A nil filter broadcasts to all open connections.
	Send(ctx context.Context, data any, filter func(connID string) bool) error
}
