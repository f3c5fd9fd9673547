package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntentDetectorExitSignalRequiresActiveWorkflow(t *testing.T) {
	registry := NewWorkflowRegistry()
	d := NewRuleBasedIntentDetector(registry)

	sess := newTestSession()
	sess.ActiveWorkflow = "onboarding"
	analysis, err := d.AnalyzeMessage(context.Background(), "ok I'm done here", sess)
	require.NoError(t, err)
	require.True(t, analysis.ShouldSwitchWorkflow)
	require.Equal(t, "exit_workflow", analysis.Intents[0].Name)
	require.Equal(t, 0.9, analysis.Confidence)
}

func TestIntentDetectorExitSignalIgnoredWithoutActiveWorkflow(t *testing.T) {
	registry := NewWorkflowRegistry()
	d := NewRuleBasedIntentDetector(registry)

	sess := newTestSession()
	analysis, err := d.AnalyzeMessage(context.Background(), "i am done", sess)
	require.NoError(t, err)
	require.False(t, analysis.ShouldSwitchWorkflow)
}

func TestIntentDetectorExactTriggerMatchIsFullConfidence(t *testing.T) {
	registry := NewWorkflowRegistry()
	registry.Register(WorkflowDefinition{ID: "onboarding", Triggers: []string{"get started"}})
	d := NewRuleBasedIntentDetector(registry)

	analysis, err := d.AnalyzeMessage(context.Background(), "get started", newTestSession())
	require.NoError(t, err)
	require.Equal(t, 1.0, analysis.Confidence)
	require.True(t, analysis.ShouldSwitchWorkflow)
	require.Equal(t, "onboarding", analysis.TargetWorkflow)
}

func TestIntentDetectorSubstringMatchScalesByLength(t *testing.T) {
	registry := NewWorkflowRegistry()
	registry.Register(WorkflowDefinition{ID: "onboarding", Triggers: []string{"get started"}})
	d := NewRuleBasedIntentDetector(registry)

	message := "hey can you help me get started with this thing today"
	analysis, err := d.AnalyzeMessage(context.Background(), message, newTestSession())
	require.NoError(t, err)
	expected := (float64(len("get started")) / float64(len(message))) * 0.8
	require.InDelta(t, expected, analysis.Confidence, 0.0001)
}

func TestIntentDetectorFuzzyMatch(t *testing.T) {
	registry := NewWorkflowRegistry()
	registry.Register(WorkflowDefinition{ID: "onboarding", Triggers: []string{"get started"}})
	d := NewRuleBasedIntentDetector(registry)

	analysis, err := d.AnalyzeMessage(context.Background(), "started to get things going", newTestSession())
	require.NoError(t, err)
	require.Equal(t, 0.6, analysis.Confidence)
	require.False(t, analysis.ShouldSwitchWorkflow)
}

func TestIntentDetectorNoMatchFallsBackToContinue(t *testing.T) {
	registry := NewWorkflowRegistry()
	d := NewRuleBasedIntentDetector(registry)

	analysis, err := d.AnalyzeMessage(context.Background(), "random unrelated text", newTestSession())
	require.NoError(t, err)
	require.Equal(t, 0.1, analysis.Confidence)
	require.Equal(t, "continue_current", analysis.Intents[0].Name)
}

func TestIntentDetectorExtractsEntities(t *testing.T) {
	registry := NewWorkflowRegistry()
	registry.Register(WorkflowDefinition{ID: "signup", Triggers: []string{"sign up"}})
	d := NewRuleBasedIntentDetector(registry)

	message := "sign up ada@example.com and visit https://example.com with code 42"
	analysis, err := d.AnalyzeMessage(context.Background(), message, newTestSession())
	require.NoError(t, err)

	var sawEmail, sawURL, sawNumber bool
	for _, e := range analysis.Entities {
		switch e.Type {
		case "email":
			sawEmail = true
		case "url":
			sawURL = true
		case "number":
			sawNumber = true
		}
	}
	require.True(t, sawEmail)
	require.True(t, sawURL)
	require.True(t, sawNumber)
}

func TestIntentDetectorMatchesFirstRegisteredWorkflowDeterministically(t *testing.T) {
	registry := NewWorkflowRegistry()
	registry.Register(WorkflowDefinition{ID: "support", Triggers: []string{"help"}})
	registry.Register(WorkflowDefinition{ID: "onboarding", Triggers: []string{"help"}})
	d := NewRuleBasedIntentDetector(registry)

	for i := 0; i < 5; i++ {
		analysis, err := d.AnalyzeMessage(context.Background(), "help", newTestSession())
		require.NoError(t, err)
		require.Equal(t, "support", analysis.TargetWorkflow)
	}
}

func TestIntentDetectorExtractsCharacterName(t *testing.T) {
	registry := NewWorkflowRegistry()
	registry.Register(WorkflowDefinition{ID: "character_builder", Triggers: []string{"build a character"}})
	d := NewRuleBasedIntentDetector(registry)

	analysis, err := d.AnalyzeMessage(context.Background(), "let's build a character named Zephyr today", newTestSession())
	require.NoError(t, err)
	require.Equal(t, "Zephyr", analysis.ExtractedData["character"])
}
