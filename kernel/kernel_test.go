package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/guahanweb/mcp-server-platform/jsonrpc"
	"github.com/guahanweb/mcp-server-platform/middleware"
	"github.com/guahanweb/mcp-server-platform/plugin"
	"github.com/guahanweb/mcp-server-platform/transport"
)

var errBoom = errors.New("boom")

// fakeTransport lets tests dispatch a transport.Request directly without
// binding a real socket.
type fakeTransport struct {
	handler transport.Handler
}

func (f *fakeTransport) Start(_ context.Context, handler transport.Handler) error {
	f.handler = handler
	return nil
}

func (f *fakeTransport) Stop(_ context.Context) error { return nil }

func (f *fakeTransport) dispatch(ctx context.Context, req transport.Request) jsonrpc.Response {
	var (
		mu  sync.Mutex
		out jsonrpc.Response
	)
	done := make(chan struct{})
	f.handler(ctx, req, func(_ context.Context, resp jsonrpc.Response) {
		mu.Lock()
		out = resp
		mu.Unlock()
		close(done)
	})
	<-done
	return out
}

func newEchoHost(t *testing.T) *plugin.Host {
	t.Helper()
	h := plugin.NewHost()
	err := h.Register(context.Background(), &plugin.Base{
		Meta: plugin.Metadata{ID: "demo"},
		DefineTools: func(reg *plugin.RegistrationContext) []plugin.Tool {
			return []plugin.Tool{{
				Name:        "echo",
				Description: "echoes text",
				InputSchema: plugin.Schema{
					Type:       "object",
					Properties: map[string]plugin.SchemaProperty{"text": {Type: "string"}},
					Required:   []string{"text"},
				},
				Handler: func(_ context.Context, params map[string]any, _ *plugin.CallContext) (any, error) {
					return params["text"], nil
				},
			}}
		},
	}, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return h
}

func TestToolsListReturnsRegisteredTools(t *testing.T) {
	host := newEchoHost(t)
	ft := &fakeTransport{}
	s := New(Config{Name: "test", Version: "0.1"}, host, ft)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp := ft.dispatch(context.Background(), transport.Request{Method: "tools/list", ID: "1"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	var result toolsListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Tools) != 1 || result.Tools[0].Name != "demo:echo" {
		t.Fatalf("got %+v, want one demo:echo tool", result.Tools)
	}
}

func TestToolsCallRunsHandlerAndRendersTextContent(t *testing.T) {
	host := newEchoHost(t)
	ft := &fakeTransport{}
	s := New(Config{Name: "test", Version: "0.1"}, host, ft)
	_ = s.Start(context.Background())

	params, _ := json.Marshal(toolCallParams{Name: "demo:echo", Arguments: json.RawMessage(`{"text":"hi"}`)})
	resp := ft.dispatch(context.Background(), transport.Request{Method: "tools/call", ID: "1", Params: params})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}

	var result toolCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Text != "hi" {
		t.Fatalf("got %+v, want text hi", result.Content)
	}
}

func TestToolsCallUnknownToolIsMethodNotFound(t *testing.T) {
	host := newEchoHost(t)
	ft := &fakeTransport{}
	s := New(Config{Name: "test", Version: "0.1"}, host, ft)
	_ = s.Start(context.Background())

	params, _ := json.Marshal(toolCallParams{Name: "demo:missing"})
	resp := ft.dispatch(context.Background(), transport.Request{Method: "tools/call", ID: "1", Params: params})
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeMethodNotFound {
		t.Fatalf("got %+v, want MethodNotFound", resp.Error)
	}
}

func TestToolsCallHandlerFailureIsInternalError(t *testing.T) {
	host := plugin.NewHost()
	_ = host.Register(context.Background(), &plugin.Base{
		Meta: plugin.Metadata{ID: "demo"},
		DefineTools: func(reg *plugin.RegistrationContext) []plugin.Tool {
			return []plugin.Tool{{
				Name: "fail",
				Handler: func(context.Context, map[string]any, *plugin.CallContext) (any, error) {
					return nil, errBoom
				},
			}}
		},
	}, nil)

	ft := &fakeTransport{}
	s := New(Config{Name: "test", Version: "0.1"}, host, ft)
	_ = s.Start(context.Background())

	params, _ := json.Marshal(toolCallParams{Name: "demo:fail"})
	resp := ft.dispatch(context.Background(), transport.Request{Method: "tools/call", ID: "1", Params: params})
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeInternalError {
		t.Fatalf("got %+v, want InternalError", resp.Error)
	}
}

func TestUnknownMethodIsMethodNotFound(t *testing.T) {
	host := plugin.NewHost()
	ft := &fakeTransport{}
	s := New(Config{Name: "test", Version: "0.1"}, host, ft)
	_ = s.Start(context.Background())

	resp := ft.dispatch(context.Background(), transport.Request{Method: "bogus/method", ID: "1"})
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeMethodNotFound {
		t.Fatalf("got %+v, want MethodNotFound", resp.Error)
	}
}

func TestResourcesReadUnknownURIIsInvalidRequest(t *testing.T) {
	host := plugin.NewHost()
	ft := &fakeTransport{}
	s := New(Config{Name: "test", Version: "0.1"}, host, ft)
	_ = s.Start(context.Background())

	params, _ := json.Marshal(resourceReadParams{URI: "file:///missing"})
	resp := ft.dispatch(context.Background(), transport.Request{Method: "resources/read", ID: "1", Params: params})
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeInvalidRequest {
		t.Fatalf("got %+v, want InvalidRequest", resp.Error)
	}
}

func TestRateLimitMiddlewareRejectsToolsCallOnly(t *testing.T) {
	host := newEchoHost(t)
	err := host.Register(context.Background(), &plugin.Base{
		Meta: plugin.Metadata{ID: "docs"},
		DefineResources: func(reg *plugin.RegistrationContext) []plugin.Resource {
			return []plugin.Resource{{
				URI:  "file:///readme",
				Name: "readme",
				Handler: func(context.Context, *plugin.CallContext) (plugin.ResourcePayload, error) {
					return plugin.ResourcePayload{Text: "hello"}, nil
				},
			}}
		},
	}, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	ft := &fakeTransport{}
	s := New(Config{Name: "test", Version: "0.1"}, host, ft, WithMiddleware(middleware.NewRateLimit(1, time.Minute, nil)))
	_ = s.Start(context.Background())

	params, _ := json.Marshal(toolCallParams{Name: "demo:echo", Arguments: json.RawMessage(`{"text":"hi"}`)})
	first := ft.dispatch(context.Background(), transport.Request{Method: "tools/call", ID: "1", Params: params})
	if first.Error != nil {
		t.Fatalf("first call: unexpected error: %v", first.Error)
	}

	second := ft.dispatch(context.Background(), transport.Request{Method: "tools/call", ID: "2", Params: params})
	if second.Error == nil || second.Error.Code != jsonrpc.CodeInternalError {
		t.Fatalf("second call: got %+v, want InternalError from rate limit", second.Error)
	}

	readParams, _ := json.Marshal(resourceReadParams{URI: "file:///readme"})
	for i, id := range []jsonrpc.ID{"3", "4"} {
		read := ft.dispatch(context.Background(), transport.Request{Method: "resources/read", ID: id, Params: readParams})
		if read.Error != nil {
			t.Fatalf("resources/read %d: unexpected error: %v", i+1, read.Error)
		}
	}
}
