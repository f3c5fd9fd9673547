package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestOrchestrator() *Orchestrator {
	registry := NewWorkflowRegistry()
	registry.Register(WorkflowDefinition{ID: "onboarding", Triggers: []string{"get started"}, Capabilities: []string{"collect_name"}})
	return New(NewInMemoryStore(), registry)
}

func TestProcessMessageCreatesSessionAndAppendsHistory(t *testing.T) {
	o := newTestOrchestrator()
	result, err := o.ProcessMessage(context.Background(), "hello there", "", "u1", "ada")
	require.NoError(t, err)
	require.Len(t, result.Session.ConversationHistory, 1)
	require.Equal(t, "user", result.Session.ConversationHistory[0].Role)
	require.False(t, result.WorkflowChanged)
}

func TestProcessMessageSwitchesWorkflowOnStrongIntent(t *testing.T) {
	o := newTestOrchestrator()
	result, err := o.ProcessMessage(context.Background(), "get started", "", "u1", "ada")
	require.NoError(t, err)
	require.True(t, result.WorkflowChanged)
	require.Equal(t, "onboarding", result.Session.ActiveWorkflow)
}

func TestSwitchWorkflowRequiresExistingSession(t *testing.T) {
	o := newTestOrchestrator()
	_, err := o.SwitchWorkflow(context.Background(), "missing", "onboarding", nil)
	require.Error(t, err)
}

func TestUpdateWorkflowProgressPersists(t *testing.T) {
	o := newTestOrchestrator()
	result, err := o.ProcessMessage(context.Background(), "get started", "", "u1", "ada")
	require.NoError(t, err)

	sess, err := o.UpdateWorkflowProgress(context.Background(), result.Session.SessionID, "collecting_name", 25)
	require.NoError(t, err)
	require.Equal(t, "collecting_name", sess.WorkflowContext.State.CurrentStep)
	require.Equal(t, float64(25), sess.WorkflowContext.State.Metadata.CompletionPercentage)
}

func TestAddWorkflowCheckpointPersists(t *testing.T) {
	o := newTestOrchestrator()
	result, err := o.ProcessMessage(context.Background(), "get started", "", "u1", "ada")
	require.NoError(t, err)

	cp, err := o.AddWorkflowCheckpoint(context.Background(), result.Session.SessionID, "first checkpoint", nil)
	require.NoError(t, err)
	require.NotEmpty(t, cp.ID)

	sess, err := o.sessions.GetSession(context.Background(), result.Session.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.WorkflowContext.Checkpoints, 1)
}

func TestGetSessionStats(t *testing.T) {
	o := newTestOrchestrator()
	result, err := o.ProcessMessage(context.Background(), "hi", "", "u1", "ada")
	require.NoError(t, err)

	stats, err := o.GetSessionStats(context.Background(), result.Session.SessionID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.MessageCount)
}

func TestHealthCheckReportsRegisteredWorkflows(t *testing.T) {
	o := newTestOrchestrator()
	health := o.HealthCheck(context.Background())
	require.Equal(t, "healthy", health.Status)
	require.Equal(t, 1, health.RegisteredWorkflows)
}
