package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestSession() *UserSession {
	return &UserSession{
		SessionID:           "s1",
		CurrentContext:      "general",
		GlobalContext:       map[string]any{},
		ConversationHistory: []ConversationEntry{},
	}
}

func TestSwitchContextBuildsSkeletalWorkflowContext(t *testing.T) {
	registry := NewWorkflowRegistry()
	registry.Register(WorkflowDefinition{ID: "onboarding", Capabilities: []string{"collect_name"}})
	cm := NewContextManager(registry)

	sess := newTestSession()
	err := cm.SwitchContext(context.Background(), sess, "onboarding", map[string]any{"foo": "bar"})
	require.NoError(t, err)

	require.Equal(t, "onboarding", sess.ActiveWorkflow)
	require.Equal(t, "onboarding", sess.CurrentContext)
	require.NotNil(t, sess.WorkflowContext)
	require.Equal(t, "initial", sess.WorkflowContext.State.CurrentStep)
	require.Equal(t, "bar", sess.WorkflowContext.State.Data["foo"])
	require.Equal(t, []string{"collect_name"}, sess.WorkflowContext.Tools)
	require.Equal(t, []string{"onboarding"}, sess.RecentWorkflows)
}

func TestSwitchContextToEmptyClearsWorkflow(t *testing.T) {
	registry := NewWorkflowRegistry()
	registry.Register(WorkflowDefinition{ID: "onboarding"})
	cm := NewContextManager(registry)

	sess := newTestSession()
	require.NoError(t, cm.SwitchContext(context.Background(), sess, "onboarding", nil))
	require.NoError(t, cm.SwitchContext(context.Background(), sess, "", nil))

	require.Empty(t, sess.ActiveWorkflow)
	require.Nil(t, sess.WorkflowContext)
	require.Equal(t, "general", sess.CurrentContext)
}

func TestSwitchContextUnknownWorkflowFails(t *testing.T) {
	cm := NewContextManager(NewWorkflowRegistry())
	sess := newTestSession()
	err := cm.SwitchContext(context.Background(), sess, "missing", nil)
	require.Error(t, err)
}

func TestRecentWorkflowsDedupsAndCaps(t *testing.T) {
	registry := NewWorkflowRegistry()
	for i := 0; i < 12; i++ {
		registry.Register(WorkflowDefinition{ID: workflowID(i)})
	}
	cm := NewContextManager(registry)
	sess := newTestSession()

	for i := 0; i < 12; i++ {
		require.NoError(t, cm.SwitchContext(context.Background(), sess, workflowID(i), nil))
	}
	require.Len(t, sess.RecentWorkflows, maxRecentWorkflows)
	require.Equal(t, workflowID(11), sess.RecentWorkflows[0])
}

func workflowID(i int) string {
	return "wf" + string(rune('a'+i))
}

func TestUpdateWorkflowProgressRequiresActiveWorkflow(t *testing.T) {
	cm := NewContextManager(NewWorkflowRegistry())
	sess := newTestSession()
	err := cm.UpdateWorkflowProgress(sess, "step1", 50)
	require.Error(t, err)
}

func TestAddWorkflowCheckpointSynchronisesLists(t *testing.T) {
	registry := NewWorkflowRegistry()
	registry.Register(WorkflowDefinition{ID: "onboarding"})
	cm := NewContextManager(registry)
	sess := newTestSession()
	require.NoError(t, cm.SwitchContext(context.Background(), sess, "onboarding", nil))

	cp, err := cm.AddWorkflowCheckpoint(sess, "first save", map[string]any{"step": 1})
	require.NoError(t, err)
	require.Len(t, sess.WorkflowContext.State.Checkpoints, 1)
	require.Len(t, sess.WorkflowContext.Checkpoints, 1)
	require.Equal(t, cp.ID, sess.WorkflowContext.Checkpoints[0].ID)
	require.Equal(t, sess.WorkflowContext.State.Checkpoints[0].ID, sess.WorkflowContext.Checkpoints[0].ID)
}
