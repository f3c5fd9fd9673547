package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// SessionStore is the pluggable persistence collaborator for UserSession
// records. Implementations own their own concurrency contract; the
// SessionManager only ever calls through this interface.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*UserSession, error)
	Set(ctx context.Context, sessionID string, session *UserSession) error
	Delete(ctx context.Context, sessionID string) (bool, error)
	Exists(ctx context.Context, sessionID string) (bool, error)
}

// CleanupableStore is the optional cleanup extension a SessionStore may
// implement. Stores backed by a TTL-capable backend (Redis, etc.) have
// nothing to sweep since expiry is handled server-side; RemoteStore
// implements it as a no-op.
type CleanupableStore interface {
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)
}

// CountableStore is the optional size extension a SessionStore may
// implement, used by HealthCheck to report active-session counts.
// TTL-backed remote stores typically don't implement it, since counting
// requires a scan the backend may not want to pay for.
type CountableStore interface {
	Count(ctx context.Context) (int, error)
}

// InMemoryStore is the default, process-local SessionStore.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*UserSession
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*UserSession)}
}

// Get implements SessionStore.
func (s *InMemoryStore) Get(_ context.Context, sessionID string) (*UserSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	clone := *sess
	return &clone, nil
}

// Set implements SessionStore.
func (s *InMemoryStore) Set(_ context.Context, sessionID string, session *UserSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *session
	s.sessions[sessionID] = &clone
	return nil
}

// Delete implements SessionStore.
func (s *InMemoryStore) Delete(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok, nil
}

// Exists implements SessionStore.
func (s *InMemoryStore) Exists(_ context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok, nil
}

// Count implements CountableStore.
func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

// Cleanup implements CleanupableStore: it removes every session whose
// UpdatedAt precedes olderThan and reports how many were removed.
func (s *InMemoryStore) Cleanup(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(olderThan) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// KVBackend is the minimal key-value collaborator a RemoteStore needs: get,
// set-with-ttl and delete on opaque byte payloads. Concrete backends (Redis,
// etc.) adapt their client to this shape.
type KVBackend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// RemoteStore is a SessionStore backed by a KVBackend, keying every session
// as {prefix}{sessionId} and relying on the backend's own TTL to expire
// stale sessions rather than an explicit cleanup pass.
type RemoteStore struct {
	backend KVBackend
	prefix  string
	ttl     time.Duration
}

// RemoteStoreOption configures a RemoteStore.
type RemoteStoreOption func(*RemoteStore)

// WithRemoteStorePrefix overrides the default "session:" key prefix.
func WithRemoteStorePrefix(prefix string) RemoteStoreOption {
	return func(r *RemoteStore) { r.prefix = prefix }
}

// WithRemoteStoreTTL overrides the default per-entry TTL of 30 minutes.
func WithRemoteStoreTTL(ttl time.Duration) RemoteStoreOption {
	return func(r *RemoteStore) { r.ttl = ttl }
}

// NewRemoteStore creates a RemoteStore over backend.
func NewRemoteStore(backend KVBackend, opts ...RemoteStoreOption) *RemoteStore {
	r := &RemoteStore{backend: backend, prefix: "session:", ttl: 30 * time.Minute}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RemoteStore) key(sessionID string) string {
	return fmt.Sprintf("%s%s", r.prefix, sessionID)
}

// Get implements SessionStore.
func (r *RemoteStore) Get(ctx context.Context, sessionID string) (*UserSession, error) {
	raw, err := r.backend.Get(ctx, r.key(sessionID))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var sess UserSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("orchestrator: decode session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// Set implements SessionStore.
func (r *RemoteStore) Set(ctx context.Context, sessionID string, session *UserSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("orchestrator: encode session %s: %w", sessionID, err)
	}
	return r.backend.Set(ctx, r.key(sessionID), raw, r.ttl)
}

// Delete implements SessionStore.
func (r *RemoteStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	return r.backend.Delete(ctx, r.key(sessionID))
}

// Exists implements SessionStore.
func (r *RemoteStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	return r.backend.Exists(ctx, r.key(sessionID))
}

// Cleanup implements CleanupableStore as a no-op: TTL-backed stores expire
// entries in the backend itself, so there is nothing for the orchestrator to
// sweep.
func (r *RemoteStore) Cleanup(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}
