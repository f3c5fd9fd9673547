package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateSessionDefaultsID(t *testing.T) {
	m := NewSessionManager(NewInMemoryStore())
	sess, err := m.CreateSession(context.Background(), "u1", "ada", "")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sess.SessionID, "session_"))
	require.Equal(t, "general", sess.CurrentContext)
}

func TestCreateSessionHonorsCallerID(t *testing.T) {
	m := NewSessionManager(NewInMemoryStore())
	sess, err := m.CreateSession(context.Background(), "u1", "ada", "custom-id")
	require.NoError(t, err)
	require.Equal(t, "custom-id", sess.SessionID)
}

func TestGetOrCreateSessionReusesExisting(t *testing.T) {
	m := NewSessionManager(NewInMemoryStore())
	first, err := m.CreateSession(context.Background(), "u1", "ada", "s1")
	require.NoError(t, err)

	second, err := m.GetOrCreateSession(context.Background(), "s1", "u1", "ada")
	require.NoError(t, err)
	require.Equal(t, first.SessionID, second.SessionID)
}

func TestAddMessageAppendsHistory(t *testing.T) {
	m := NewSessionManager(NewInMemoryStore())
	sess, err := m.CreateSession(context.Background(), "u1", "ada", "s1")
	require.NoError(t, err)

	updated, err := m.AddMessage(context.Background(), sess.SessionID, ConversationEntry{Role: "user", Content: "hi"})
	require.NoError(t, err)
	require.Len(t, updated.ConversationHistory, 1)
	require.Equal(t, "hi", updated.ConversationHistory[0].Content)
}

func TestDeleteSessionReportsExistence(t *testing.T) {
	m := NewSessionManager(NewInMemoryStore())
	_, err := m.CreateSession(context.Background(), "u1", "ada", "s1")
	require.NoError(t, err)

	existed, err := m.DeleteSession(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = m.DeleteSession(context.Background(), "s1")
	require.NoError(t, err)
	require.False(t, existed)
}

func TestCleanupRemovesStaleSessions(t *testing.T) {
	store := NewInMemoryStore()
	m := NewSessionManager(store, WithSessionTimeout(time.Millisecond))
	_, err := m.CreateSession(context.Background(), "u1", "ada", "stale")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	removed, err := m.Cleanup(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, removed)
}
