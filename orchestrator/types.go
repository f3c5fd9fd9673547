// Package orchestrator tracks per-session conversational state and switches
// between registered workflows based on detected intent. It is independent
// of the server kernel and may be wired into the kernel's dispatch path or
// run as a separate host.
package orchestrator

import "time"

// ConversationEntry is one turn of a session's message history.
type ConversationEntry struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Checkpoint is a snapshot of workflow progress at a moment in time.
type Checkpoint struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Step        string         `json:"step"`
	Description string         `json:"description,omitempty"`
	Data        map[string]any `json:"data"`
}

// WorkflowStateMeta is WorkflowState's metadata block.
type WorkflowStateMeta struct {
	StartedAt            time.Time `json:"startedAt"`
	LastModified         time.Time `json:"lastModified"`
	CompletionPercentage float64   `json:"completionPercentage"`
	IsDraft              bool      `json:"isDraft"`
	Tags                 []string  `json:"tags,omitempty"`
}

// WorkflowState is the authoritative progress record for an active workflow
// within a session.
type WorkflowState struct {
	WorkflowID  string            `json:"workflowId"`
	CurrentStep string            `json:"currentStep"`
	Data        map[string]any    `json:"data"`
	Metadata    WorkflowStateMeta `json:"metadata"`
	Checkpoints []Checkpoint      `json:"checkpoints"`
}

// WorkflowContext is the working context a session carries while a workflow
// is active. Its Checkpoints mirror WorkflowState.Checkpoints; appends are
// synchronised by the ContextManager so both slices always agree.
type WorkflowContext struct {
	WorkflowID   string              `json:"workflowId"`
	State        WorkflowState       `json:"state"`
	HydratedData map[string]any      `json:"hydratedData,omitempty"`
	Tools        []string            `json:"tools"`
	History      []ConversationEntry `json:"history"`
	Checkpoints  []Checkpoint        `json:"checkpoints"`
}

// UserSession is the durable, store-backed record of a single user's
// conversation with the platform.
type UserSession struct {
	SessionID           string              `json:"sessionId"`
	UserID              string              `json:"userId"`
	UserName            string              `json:"userName"`
	ActiveWorkflow      string              `json:"activeWorkflow,omitempty"`
	CurrentContext      string              `json:"currentContext"`
	GlobalContext       map[string]any      `json:"globalContext"`
	WorkflowContext     *WorkflowContext    `json:"workflowContext,omitempty"`
	ConversationHistory []ConversationEntry `json:"conversationHistory"`
	RecentWorkflows     []string            `json:"recentWorkflows,omitempty"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
	Metadata            map[string]any      `json:"metadata,omitempty"`
}

// WorkflowDefinition describes a workflow registered with the orchestrator:
// what triggers it, what it can do, and what context it needs.
type WorkflowDefinition struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Triggers        []string `json:"triggers"`
	Capabilities    []string `json:"capabilities"`
	RequiredContext []string `json:"requiredContext"`
	OptionalContext []string `json:"optionalContext,omitempty"`
	ExitSignals     []string `json:"exitSignals,omitempty"`
	Category        string   `json:"category,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// Entity is one piece of structured data extracted from a message.
type Entity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	StartIndex int     `json:"startIndex,omitempty"`
	EndIndex   int     `json:"endIndex,omitempty"`
}

// Intent is one named intent an IntentDetector believes underlies a message.
type Intent struct {
	Name       string         `json:"name"`
	Confidence float64        `json:"confidence"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// IntentAnalysis is the full result of analysing a user message.
type IntentAnalysis struct {
	Confidence           float64        `json:"confidence"`
	Intents              []Intent       `json:"intents"`
	Entities             []Entity       `json:"entities"`
	ShouldSwitchWorkflow bool           `json:"shouldSwitchWorkflow"`
	TargetWorkflow       string         `json:"targetWorkflow,omitempty"`
	ExtractedData        map[string]any `json:"extractedData,omitempty"`
}

// ProcessResult is what processMessage returns to a caller.
type ProcessResult struct {
	Session         *UserSession
	Intent          IntentAnalysis
	WorkflowChanged bool
}

// SessionStats is the payload of getSessionStats.
type SessionStats struct {
	SessionID            string `json:"sessionId"`
	MessageCount         int    `json:"messageCount"`
	ActiveWorkflow       string `json:"activeWorkflow,omitempty"`
	RecentWorkflowsCount int    `json:"recentWorkflowsCount"`
}

// HealthStatus is the payload of healthCheck.
type HealthStatus struct {
	Status              string         `json:"status"`
	Components          map[string]any `json:"components"`
	ActiveSessions      int            `json:"activeSessions"`
	RegisteredWorkflows int            `json:"registeredWorkflows"`
	UptimeSeconds       float64        `json:"uptimeSeconds"`
}
