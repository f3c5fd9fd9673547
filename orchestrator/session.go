package orchestrator

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"
)

const sessionIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomSuffix(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = sessionIDAlphabet[int(b)%len(sessionIDAlphabet)]
	}
	return string(out)
}

func newSessionID(now time.Time) string {
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), randomSuffix(9))
}

// SessionManager owns UserSession lifecycle on top of a SessionStore.
type SessionManager struct {
	store          SessionStore
	sessionTimeout time.Duration
}

// SessionManagerOption configures a SessionManager.
type SessionManagerOption func(*SessionManager)

// WithSessionTimeout overrides the default 30-minute inactivity timeout used
// by Cleanup.
func WithSessionTimeout(d time.Duration) SessionManagerOption {
	return func(m *SessionManager) { m.sessionTimeout = d }
}

// NewSessionManager creates a SessionManager backed by store.
func NewSessionManager(store SessionStore, opts ...SessionManagerOption) *SessionManager {
	m := &SessionManager{store: store, sessionTimeout: 30 * time.Minute}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateSession allocates and persists a new session, defaulting sessionID
// to "session_{epochMillis}_{9-char random}" when the caller supplies none.
func (m *SessionManager) CreateSession(ctx context.Context, userID, userName, sessionID string) (*UserSession, error) {
	now := time.Now()
	if sessionID == "" {
		sessionID = newSessionID(now)
	}
	sess := &UserSession{
		SessionID:           sessionID,
		UserID:              userID,
		UserName:            userName,
		CurrentContext:      "general",
		GlobalContext:       make(map[string]any),
		ConversationHistory: []ConversationEntry{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := m.store.Set(ctx, sessionID, sess); err != nil {
		return nil, fmt.Errorf("orchestrator: create session: %w", err)
	}
	return sess, nil
}

// GetSession loads a session, returning (nil, nil) if it does not exist.
func (m *SessionManager) GetSession(ctx context.Context, sessionID string) (*UserSession, error) {
	return m.store.Get(ctx, sessionID)
}

// GetOrCreateSession loads sessionID if present, honoring the caller's id
// when creating a new session otherwise.
func (m *SessionManager) GetOrCreateSession(ctx context.Context, sessionID, userID, userName string) (*UserSession, error) {
	if sessionID != "" {
		sess, err := m.store.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			return sess, nil
		}
	}
	return m.CreateSession(ctx, userID, userName, sessionID)
}

// UpdateSession stamps UpdatedAt and writes session through to the store.
func (m *SessionManager) UpdateSession(ctx context.Context, session *UserSession) error {
	session.UpdatedAt = time.Now()
	if err := m.store.Set(ctx, session.SessionID, session); err != nil {
		return fmt.Errorf("orchestrator: update session: %w", err)
	}
	return nil
}

// DeleteSession removes a session, reporting whether it existed.
func (m *SessionManager) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	return m.store.Delete(ctx, sessionID)
}

// AddMessage appends entry to sessionID's conversation history and writes
// through to the store.
func (m *SessionManager) AddMessage(ctx context.Context, sessionID string, entry ConversationEntry) (*UserSession, error) {
	sess, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, fmt.Errorf("orchestrator: session not found: %s", sessionID)
	}
	sess.ConversationHistory = append(sess.ConversationHistory, entry)
	if err := m.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Cleanup removes sessions inactive since before now-sessionTimeout, if the
// underlying store supports it. It is a no-op on stores that don't.
func (m *SessionManager) Cleanup(ctx context.Context) (int, error) {
	cleanable, ok := m.store.(CleanupableStore)
	if !ok {
		return 0, nil
	}
	return cleanable.Cleanup(ctx, time.Now().Add(-m.sessionTimeout))
}
