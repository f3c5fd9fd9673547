package orchestrator

import (
	"context"
	"regexp"
	"strings"
)

// IntentDetector is the pluggable collaborator that turns a raw message into
// an IntentAnalysis, given the session it arrived on.
type IntentDetector interface {
	AnalyzeMessage(ctx context.Context, message string, session *UserSession) (IntentAnalysis, error)
}

var exitSignals = []string{"done", "finished", "complete", "exit", "stop", "end session", "quit"}

var (
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	numberPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)
	urlPattern    = regexp.MustCompile(`https?://[^\s]+`)

	characterNamePattern = regexp.MustCompile(`(?i:character|person|called|named)\s+([A-Z][a-zA-Z]*)`)
	storyTopicPattern    = regexp.MustCompile(`(?i)(?:about|involving|featuring)\s+([a-zA-Z][a-zA-Z ]*)`)
)

// RuleBasedIntentDetector is the default IntentDetector: exit-signal
// detection, trigger-substring matching against the workflow registry with a
// graded confidence score, and simple entity extraction.
type RuleBasedIntentDetector struct {
	registry *WorkflowRegistry
}

// NewRuleBasedIntentDetector creates a RuleBasedIntentDetector over registry.
func NewRuleBasedIntentDetector(registry *WorkflowRegistry) *RuleBasedIntentDetector {
	return &RuleBasedIntentDetector{registry: registry}
}

// AnalyzeMessage implements IntentDetector.
func (d *RuleBasedIntentDetector) AnalyzeMessage(_ context.Context, message string, session *UserSession) (IntentAnalysis, error) {
	lower := strings.ToLower(message)

	if session.ActiveWorkflow != "" && containsAny(lower, exitSignals) {
		return IntentAnalysis{
			Confidence:           0.9,
			Intents:              []Intent{{Name: "exit_workflow", Confidence: 0.9}},
			ShouldSwitchWorkflow: true,
			ExtractedData:        map[string]any{"reason": "user_requested"},
		}, nil
	}

	if match, confidence := d.matchWorkflow(lower); match.ID != "" {
		entities := extractEntities(message)
		extracted := extractWorkflowFields(match, message)
		return IntentAnalysis{
			Confidence:           confidence,
			Intents:              []Intent{{Name: "switch_workflow", Confidence: confidence, Parameters: map[string]any{"workflow": match.ID}}},
			Entities:             entities,
			ShouldSwitchWorkflow: confidence > 0.7,
			TargetWorkflow:       match.ID,
			ExtractedData:        extracted,
		}, nil
	}

	return IntentAnalysis{
		Confidence:           0.1,
		Intents:              []Intent{{Name: "continue_current", Confidence: 0.1}},
		ShouldSwitchWorkflow: false,
	}, nil
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// matchWorkflow finds the first registered workflow with a matching
// trigger and computes its confidence per the exact/substring/fuzzy scale.
func (d *RuleBasedIntentDetector) matchWorkflow(lowerMessage string) (WorkflowDefinition, float64) {
	for _, def := range d.registry.All() {
		for _, trig := range def.Triggers {
			lowerTrig := strings.ToLower(trig)
			confidence := triggerConfidence(lowerTrig, lowerMessage)
			if confidence > 0 {
				return def, confidence
			}
		}
	}
	return WorkflowDefinition{}, 0
}

func triggerConfidence(trigger, message string) float64 {
	if trigger == message {
		return 1.0
	}
	if strings.Contains(message, trigger) {
		return (float64(len(trigger)) / float64(len(message))) * 0.8
	}
	if fuzzyMatch(trigger, message) {
		return 0.6
	}
	return 0
}

// fuzzyMatch reports whether every space-separated word of trigger appears
// anywhere in message.
func fuzzyMatch(trigger, message string) bool {
	for _, word := range strings.Fields(trigger) {
		if !strings.Contains(message, word) {
			return false
		}
	}
	return true
}

func extractEntities(message string) []Entity {
	var entities []Entity
	for _, loc := range emailPattern.FindAllStringIndex(message, -1) {
		entities = append(entities, Entity{Type: "email", Value: message[loc[0]:loc[1]], Confidence: 0.9, StartIndex: loc[0], EndIndex: loc[1]})
	}
	for _, loc := range urlPattern.FindAllStringIndex(message, -1) {
		entities = append(entities, Entity{Type: "url", Value: message[loc[0]:loc[1]], Confidence: 0.9, StartIndex: loc[0], EndIndex: loc[1]})
	}
	for _, loc := range numberPattern.FindAllStringIndex(message, -1) {
		entities = append(entities, Entity{Type: "number", Value: message[loc[0]:loc[1]], Confidence: 0.8, StartIndex: loc[0], EndIndex: loc[1]})
	}
	return entities
}

// extractWorkflowFields pulls workflow-specific fields out of message based
// on hints in the workflow's own id.
func extractWorkflowFields(def WorkflowDefinition, message string) map[string]any {
	data := map[string]any{}
	if strings.Contains(def.ID, "character") {
		if m := characterNamePattern.FindStringSubmatch(message); len(m) == 2 {
			data["character"] = m[1]
		}
	}
	if strings.Contains(def.ID, "story") {
		if m := storyTopicPattern.FindStringSubmatch(message); len(m) == 2 {
			data["topic"] = strings.TrimSpace(m[1])
		}
	}
	if len(data) == 0 {
		return nil
	}
	return data
}
