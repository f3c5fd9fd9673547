package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"

	"github.com/guahanweb/mcp-server-platform/jsonrpc"
)

// SSEOptions configures the SSE transport, additive alongside stdio, HTTP
// and WebSocket rather than a replacement for any of them.
type SSEOptions struct {
	Port        int
	Host        string
	StreamPath  string
	MessagePath string
}

const (
	defaultSSEStreamPath  = "/sse"
	defaultSSEMessagePath = "/sse/message"
)

// SSE implements a Server-Sent-Events transport: clients open a GET stream
// to receive responses and POST requests to a per-connection message
// endpoint discovered from the stream's first "endpoint" event.
type SSE struct {
	opts   SSEOptions
	logger *slog.Logger

	server *http.Server

	mu       sync.Mutex
	sessions map[string]*sse.Session
}

// NewSSE creates an SSE transport with the given options.
func NewSSE(opts SSEOptions, sseOpts ...SSEOption) *SSE {
	if opts.Port == 0 {
		opts.Port = 8082
	}
	if opts.StreamPath == "" {
		opts.StreamPath = defaultSSEStreamPath
	}
	if opts.MessagePath == "" {
		opts.MessagePath = defaultSSEMessagePath
	}
	s := &SSE{
		opts:     opts,
		logger:   slog.Default(),
		sessions: make(map[string]*sse.Session),
	}
	for _, o := range sseOpts {
		o(s)
	}
	return s
}

// SSEOption configures ancillary SSE transport behavior.
type SSEOption func(*SSE)

// WithSSELogger sets the diagnostic logger for the SSE transport.
func WithSSELogger(logger *slog.Logger) SSEOption {
	return func(s *SSE) {
		s.logger = logger.With(slog.String("transport", "sse"))
	}
}

// Start implements Transport.
func (s *SSE) Start(_ context.Context, handler Handler) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.opts.StreamPath, s.handleStream())
	mux.HandleFunc(s.opts.MessagePath, s.handleMessage(handler))

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start sse transport: %w", err)
	case <-time.After(50 * time.Millisecond):
	}
	return nil
}

// Stop implements Transport.
func (s *SSE) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down sse transport: %w", err)
	}
	return nil
}

// Send implements Broadcaster, pushing a raw JSON event to every open stream a filter admits.
func (s *SSE) Send(_ context.Context, data any, filter func(connID string) bool) error {
	bs, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal broadcast payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := &sse.Message{Type: sse.Type("broadcast")}
	msg.AppendData(string(bs))

	for id, sess := range s.sessions {
		if filter != nil && !filter(id) {
			continue
		}
		if err := sess.Send(msg); err != nil {
			s.logger.Error("failed to broadcast to sse session", slog.String("sessionID", id), slog.String("err", err.Error()))
			continue
		}
		if err := sess.Flush(); err != nil {
			s.logger.Error("failed to flush sse broadcast", slog.String("sessionID", id), slog.String("err", err.Error()))
		}
	}
	return nil
}

func (s *SSE) handleStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := sse.Upgrade(w, r)
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to upgrade sse session: %s", err), http.StatusInternalServerError)
			return
		}

		sessID := uuid.NewString()

		endpoint := fmt.Sprintf("%s?sessionID=%s", s.opts.MessagePath, sessID)
		endpointMsg := &sse.Message{Type: sse.Type("endpoint")}
		endpointMsg.AppendData(endpoint)
		if err := sess.Send(endpointMsg); err != nil {
			s.logger.Error("failed to send endpoint event", slog.String("err", err.Error()))
			return
		}
		if err := sess.Flush(); err != nil {
			s.logger.Error("failed to flush endpoint event", slog.String("err", err.Error()))
			return
		}

		s.mu.Lock()
		s.sessions[sessID] = sess
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			delete(s.sessions, sessID)
			s.mu.Unlock()
		}()

		<-r.Context().Done()
	}
}

func (s *SSE) handleMessage(handler Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessID := r.URL.Query().Get("sessionID")
		if sessID == "" {
			http.Error(w, "missing sessionID query parameter", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(r.Body)
		r.Body.Close()
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		req, parseErr := jsonrpc.ParseRequest(body)
		if parseErr != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(jsonrpc.ErrorResponse("", parseErr))
			return
		}

		normalized := Request{
			Method:     req.Method,
			Params:     req.Params,
			ID:         req.ID,
			SessionID:  sessID,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		}

		w.WriteHeader(http.StatusAccepted)

		handler(r.Context(), normalized, func(ctx context.Context, resp jsonrpc.Response) {
			s.mu.Lock()
			sess, ok := s.sessions[sessID]
			s.mu.Unlock()
			if !ok {
				s.logger.Warn("reply for unknown sse session", slog.String("sessionID", sessID))
				return
			}
			bs, err := json.Marshal(resp)
			if err != nil {
				s.logger.Error("failed to marshal sse response", slog.String("err", err.Error()))
				return
			}
			msg := &sse.Message{Type: sse.Type("message")}
			msg.AppendData(string(bs))
			if err := sess.Send(msg); err != nil {
				s.logger.Error("failed to send sse response", slog.String("err", err.Error()))
				return
			}
			if err := sess.Flush(); err != nil {
				s.logger.Error("failed to flush sse response", slog.String("err", err.Error()))
			}
		})
	}
}

