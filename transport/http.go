package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/guahanweb/mcp-server-platform/jsonrpc"
)

// HTTPCORSOptions configures the HTTP transport's CORS handling: allowed
// origins, credentials, methods, headers and preflight max-age.
type HTTPCORSOptions struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// HTTPOptions configures the HTTP transport.
type HTTPOptions struct {
	Port        int
	Host        string
	CORS        *HTTPCORSOptions
	MaxBodySize int64
	TrustProxy  bool
}

const defaultMaxBodySize = 1 << 20 // 1 MiB

// HTTP implements a single-POST-endpoint transport: a POST /mcp accepting
// one JSON-RPC envelope per call, and a GET /health
// liveness probe. Because a call completes before the handler function
// running it returns, HTTP does not implement Broadcaster.
type HTTP struct {
	opts   HTTPOptions
	logger *slog.Logger

	server *http.Server
}

// NewHTTP creates an HTTP transport with the given options.
func NewHTTP(opts HTTPOptions, logOpts ...HTTPOption) *HTTP {
	if opts.Port == 0 {
		opts.Port = 8080
	}
	if opts.MaxBodySize == 0 {
		opts.MaxBodySize = defaultMaxBodySize
	}
	h := &HTTP{opts: opts, logger: slog.Default()}
	for _, o := range logOpts {
		o(h)
	}
	return h
}

// HTTPOption configures ancillary HTTP transport behavior.
type HTTPOption func(*HTTP)

// WithHTTPLogger sets the diagnostic logger for the HTTP transport.
func WithHTTPLogger(logger *slog.Logger) HTTPOption {
	return func(h *HTTP) {
		h.logger = logger.With(slog.String("transport", "http"))
	}
}

// Start implements Transport, binding a listener and serving in the
// background. It returns once the listener is bound.
func (h *HTTP) Start(_ context.Context, handler Handler) error {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	if h.opts.TrustProxy {
		r.Use(chimw.RealIP)
	}

	if h.opts.CORS != nil {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.opts.CORS.AllowedOrigins,
			AllowedMethods:   h.opts.CORS.AllowedMethods,
			AllowedHeaders:   h.opts.CORS.AllowedHeaders,
			ExposedHeaders:   h.opts.CORS.ExposedHeaders,
			AllowCredentials: h.opts.CORS.AllowCredentials,
			MaxAge:           h.opts.CORS.MaxAge,
		}))
	}

	r.Get("/health", h.handleHealth)
	r.Post("/mcp", h.handleMCP(handler))

	addr := fmt.Sprintf("%s:%d", h.opts.Host, h.opts.Port)
	h.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start http transport: %w", err)
	case <-time.After(50 * time.Millisecond):
	}
	return nil
}

// Stop implements Transport, draining in-flight requests before returning.
func (h *HTTP) Stop(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	if err := h.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down http transport: %w", err)
	}
	return nil
}

func (h *HTTP) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"transport": "http",
	})
}

func (h *HTTP) handleMCP(handler Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, h.opts.MaxBodySize+1))
		if err != nil {
			h.writeError(w, "", jsonrpc.NewError(jsonrpc.CodeInternalError, "failed to read request body"))
			return
		}
		if int64(len(body)) > h.opts.MaxBodySize {
			h.writeError(w, "", jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "request body too large"))
			return
		}

		req, parseErr := jsonrpc.ParseRequest(body)
		if parseErr != nil {
			h.writeError(w, "", parseErr)
			return
		}

		normalized := Request{
			Method:     req.Method,
			Params:     req.Params,
			ID:         req.ID,
			SessionID:  r.Header.Get("x-session-id"),
			UserID:     r.Header.Get("x-user-id"),
			WorkflowID: r.Header.Get("x-workflow-id"),
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		}

		done := make(chan jsonrpc.Response, 1)
		handler(r.Context(), normalized, func(_ context.Context, resp jsonrpc.Response) {
			select {
			case done <- resp:
			default:
			}
		})

		select {
		case resp := <-done:
			h.writeResponse(w, resp)
		case <-r.Context().Done():
			// Client disconnected mid-request; there is nobody left to reply to.
		}
	}
}

func (h *HTTP) writeError(w http.ResponseWriter, id jsonrpc.ID, rpcErr *jsonrpc.Error) {
	h.writeResponse(w, jsonrpc.ErrorResponse(id, rpcErr))
}

func (h *HTTP) writeResponse(w http.ResponseWriter, resp jsonrpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	if resp.Error != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode response", slog.String("err", err.Error()))
	}
}
