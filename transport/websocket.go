package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/guahanweb/mcp-server-platform/jsonrpc"
)

// WebSocketOptions configures the WebSocket transport.
type WebSocketOptions struct {
	Port              int
	Host              string
	Path              string
	HeartbeatInterval time.Duration
	MaxConnections    int
}

const (
	defaultWSPath              = "/ws"
	defaultWSHeartbeatInterval = 30 * time.Second
)

// WebSocket implements a long-lived, bidirectional transport variant.
// Every connection is assigned an opaque connection id, sends
// a welcome frame on connect, and is pinged on HeartbeatInterval; a
// connection that fails to pong across two consecutive heartbeats is
// terminated. Send broadcasts raw JSON to every open socket a filter admits.
type WebSocket struct {
	opts   WebSocketOptions
	logger *slog.Logger

	server *http.Server

	mu    sync.Mutex
	conns map[string]*wsConn
}

type wsConn struct {
	id          string
	conn        *websocket.Conn
	missedPongs int
	lastPong    time.Time
}

// NewWebSocket creates a WebSocket transport with the given options.
func NewWebSocket(opts WebSocketOptions, wsOpts ...WebSocketOption) *WebSocket {
	if opts.Port == 0 {
		opts.Port = 8081
	}
	if opts.Path == "" {
		opts.Path = defaultWSPath
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = defaultWSHeartbeatInterval
	}
	w := &WebSocket{
		opts:   opts,
		logger: slog.Default(),
		conns:  make(map[string]*wsConn),
	}
	for _, o := range wsOpts {
		o(w)
	}
	return w
}

// WebSocketOption configures ancillary WebSocket transport behavior.
type WebSocketOption func(*WebSocket)

// WithWebSocketLogger sets the diagnostic logger for the WebSocket transport.
func WithWebSocketLogger(logger *slog.Logger) WebSocketOption {
	return func(w *WebSocket) {
		w.logger = logger.With(slog.String("transport", "websocket"))
	}
}

// Start implements Transport, binding a listener and serving in the background.
func (w *WebSocket) Start(ctx context.Context, handler Handler) error {
	mux := http.NewServeMux()
	mux.HandleFunc(w.opts.Path, w.handleConn(handler))

	addr := fmt.Sprintf("%s:%d", w.opts.Host, w.opts.Port)
	w.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go w.heartbeatLoop(ctx)

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start websocket transport: %w", err)
	case <-time.After(50 * time.Millisecond):
	}
	return nil
}

// Stop implements Transport, closing every socket with code 1001 (going away).
func (w *WebSocket) Stop(ctx context.Context) error {
	w.mu.Lock()
	for _, c := range w.conns {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	w.conns = make(map[string]*wsConn)
	w.mu.Unlock()

	if w.server == nil {
		return nil
	}
	if err := w.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down websocket transport: %w", err)
	}
	return nil
}

// Send implements Broadcaster.
func (w *WebSocket) Send(ctx context.Context, data any, filter func(connID string) bool) error {
	bs, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast payload: %w", err)
	}

	w.mu.Lock()
	targets := make([]*wsConn, 0, len(w.conns))
	for id, c := range w.conns {
		if filter == nil || filter(id) {
			targets = append(targets, c)
		}
	}
	w.mu.Unlock()

	for _, c := range targets {
		if err := c.conn.Write(ctx, websocket.MessageText, bs); err != nil {
			w.logger.Error("failed to broadcast to connection",
				slog.String("connID", c.id), slog.String("err", err.Error()))
		}
	}
	return nil
}

func (w *WebSocket) handleConn(handler Handler) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(rw, r, nil)
		if err != nil {
			w.logger.Error("failed to accept websocket connection", slog.String("err", err.Error()))
			return
		}

		connID := uuid.NewString()

		w.mu.Lock()
		if w.opts.MaxConnections > 0 && len(w.conns) >= w.opts.MaxConnections {
			w.mu.Unlock()
			_ = conn.Close(websocket.StatusCode(1013), "max connections reached")
			return
		}
		wc := &wsConn{id: connID, conn: conn, lastPong: time.Now()}
		w.conns[connID] = wc
		w.mu.Unlock()

		defer func() {
			w.mu.Lock()
			delete(w.conns, connID)
			w.mu.Unlock()
			_ = conn.CloseNow()
		}()

		ctx := r.Context()

		welcome, _ := json.Marshal(map[string]any{
			"type":         "welcome",
			"connectionId": connID,
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		})
		if err := conn.Write(ctx, websocket.MessageText, welcome); err != nil {
			w.logger.Error("failed to send welcome frame", slog.String("err", err.Error()))
			return
		}

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}

			req, parseErr := jsonrpc.ParseRequest(data)
			if parseErr != nil {
				w.writeResponse(ctx, conn, jsonrpc.ErrorResponse("", parseErr))
				continue
			}

			normalized := Request{
				Method:     req.Method,
				Params:     req.Params,
				ID:         req.ID,
				ConnID:     connID,
				RemoteAddr: r.RemoteAddr,
				UserAgent:  r.UserAgent(),
			}

			handler(ctx, normalized, func(replyCtx context.Context, resp jsonrpc.Response) {
				w.writeResponse(replyCtx, conn, resp)
			})
		}
	}
}

func (w *WebSocket) writeResponse(ctx context.Context, conn *websocket.Conn, resp jsonrpc.Response) {
	bs, err := json.Marshal(resp)
	if err != nil {
		w.logger.Error("failed to marshal response", slog.String("err", err.Error()))
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, bs); err != nil {
		w.logger.Error("failed to write response", slog.String("err", err.Error()))
	}
}

func (w *WebSocket) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(w.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pingAll(ctx)
		}
	}
}

func (w *WebSocket) pingAll(ctx context.Context) {
	w.mu.Lock()
	targets := make([]*wsConn, 0, len(w.conns))
	for _, c := range w.conns {
		targets = append(targets, c)
	}
	w.mu.Unlock()

	for _, c := range targets {
		pingCtx, cancel := context.WithTimeout(ctx, w.opts.HeartbeatInterval/2)
		err := c.conn.Ping(pingCtx)
		cancel()

		if err != nil {
			c.missedPongs++
			if c.missedPongs >= 2 {
				w.logger.Warn("connection missed heartbeats, closing", slog.String("connID", c.id))
				_ = c.conn.Close(websocket.StatusPolicyViolation, "heartbeat timeout")
				w.mu.Lock()
				delete(w.conns, c.id)
				w.mu.Unlock()
			}
			continue
		}
		c.missedPongs = 0
		c.lastPong = time.Now()
	}
}
