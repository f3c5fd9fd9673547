package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimitKeyFunc derives the sliding-window key for a call. The built-in
// default keys by tool name only, which is too coarse for multi-tenant
// deployments where separate sessions or users of the same tool shouldn't
// share a counter; KeyByToolAndSession/KeyByToolAndUser below provide that
// finer granularity as an option.
type RateLimitKeyFunc func(toolName string, params map[string]any) string

// KeyByTool is the built-in, tool-name-only key granularity.
func KeyByTool(toolName string, _ map[string]any) string {
	return toolName
}

// KeyByToolAndSession keys by tool name plus the "sessionId" argument, if
// the caller included one.
func KeyByToolAndSession(toolName string, params map[string]any) string {
	sessionID, _ := params["sessionId"].(string)
	return fmt.Sprintf("%s:session:%s", toolName, sessionID)
}

// KeyByToolAndUser is KeyByToolAndSession's per-user counterpart.
func KeyByToolAndUser(toolName string, params map[string]any) string {
	userID, _ := params["userId"].(string)
	return fmt.Sprintf("%s:user:%s", toolName, userID)
}

type rateLimitWindow struct {
	count   int
	resetAt time.Time
}

// RateLimit is the built-in sliding-window rate-limit middleware.
// Configuration is MaxCalls calls per window; the read-check-increment step
// is made atomic with a mutex so the limit holds under concurrent calls.
type RateLimit struct {
	maxCalls int
	window   time.Duration
	keyFunc  RateLimitKeyFunc

	mu       sync.Mutex
	counters map[string]*rateLimitWindow
}

// NewRateLimit creates a RateLimit middleware. keyFunc defaults to
// KeyByTool if nil.
func NewRateLimit(maxCalls int, window time.Duration, keyFunc RateLimitKeyFunc) *RateLimit {
	if keyFunc == nil {
		keyFunc = KeyByTool
	}
	return &RateLimit{
		maxCalls: maxCalls,
		window:   window,
		keyFunc:  keyFunc,
		counters: make(map[string]*rateLimitWindow),
	}
}

// Name implements Middleware.
func (r *RateLimit) Name() string { return "rate-limit" }

// BeforeToolCall implements BeforeToolCaller: on entry, if now is past the
// window's resetAt, the window resets to {1, now+window}; otherwise if the
// window is already at maxCalls the call fails; otherwise the counter is
// incremented.
func (r *RateLimit) BeforeToolCall(_ context.Context, toolName string, params map[string]any) error {
	key := r.keyFunc(toolName, params)
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.counters[key]
	if !ok || now.After(w.resetAt) {
		r.counters[key] = &rateLimitWindow{count: 1, resetAt: now.Add(r.window)}
		return nil
	}

	if w.count >= r.maxCalls {
		return fmt.Errorf("Rate limit exceeded for tool %s", toolName)
	}

	w.count++
	return nil
}
