package transport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/guahanweb/mcp-server-platform/jsonrpc"
)

func TestWebSocketWelcomeAndDispatch(t *testing.T) {
	ws := NewWebSocket(WebSocketOptions{Port: 18082, Host: "127.0.0.1", HeartbeatInterval: time.Minute})

	err := ws.Start(context.Background(), func(ctx context.Context, req Request, reply ReplyFunc) {
		reply(ctx, jsonrpc.Result(req.ID, map[string]any{"tools": []any{}}))
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ws.Stop(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://127.0.0.1:18082/ws", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "test complete")

	_, welcome, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	var welcomeMsg map[string]any
	if err := json.Unmarshal(welcome, &welcomeMsg); err != nil {
		t.Fatalf("unmarshal welcome: %v", err)
	}
	if welcomeMsg["type"] != "welcome" || welcomeMsg["connectionId"] == "" {
		t.Fatalf("unexpected welcome frame: %v", welcomeMsg)
	}

	req, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": "1", "method": "tools/list"})
	if err := conn.Write(ctx, websocket.MessageText, req); err != nil {
		t.Fatalf("write request: %v", err)
	}

	_, respBytes, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp jsonrpc.Response
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.ID != "1" {
		t.Fatalf("got id %q, want 1", resp.ID)
	}
}
