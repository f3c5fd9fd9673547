package orchestrator

import (
	"context"
	"fmt"
	"time"
)

// ContextLoader lets a workflow supply its own WorkflowContext construction
// and rehydration logic instead of the ContextManager's skeletal default.
type ContextLoader interface {
	LoadContext(ctx context.Context, workflowID, sessionID string, entities map[string]any) (*WorkflowContext, error)
	HydrateContext(ctx context.Context, wctx *WorkflowContext, entities map[string]any) (*WorkflowContext, error)
}

const maxRecentWorkflows = 10

// ContextManager builds and switches WorkflowContext on sessions, and tracks
// per-workflow progress and checkpoints.
type ContextManager struct {
	registry *WorkflowRegistry
	loaders  map[string]ContextLoader
}

// NewContextManager creates a ContextManager over registry.
func NewContextManager(registry *WorkflowRegistry) *ContextManager {
	return &ContextManager{registry: registry, loaders: make(map[string]ContextLoader)}
}

// RegisterContextLoader wires a custom ContextLoader for workflowID.
func (c *ContextManager) RegisterContextLoader(workflowID string, loader ContextLoader) {
	c.loaders[workflowID] = loader
}

// SwitchContext moves session into targetWorkflow, or back to "general" if
// targetWorkflow is empty.
func (c *ContextManager) SwitchContext(ctx context.Context, session *UserSession, targetWorkflow string, initData map[string]any) error {
	if targetWorkflow == "" {
		session.ActiveWorkflow = ""
		session.WorkflowContext = nil
		session.CurrentContext = "general"
		return nil
	}

	def, ok := c.registry.Get(targetWorkflow)
	if !ok {
		return fmt.Errorf("orchestrator: unknown workflow: %s", targetWorkflow)
	}

	var wctx *WorkflowContext
	if loader, ok := c.loaders[targetWorkflow]; ok {
		loaded, err := loader.LoadContext(ctx, targetWorkflow, session.SessionID, initData)
		if err != nil {
			return fmt.Errorf("orchestrator: load context for %s: %w", targetWorkflow, err)
		}
		wctx = loaded
	} else {
		if initData == nil {
			initData = map[string]any{}
		}
		now := time.Now()
		wctx = &WorkflowContext{
			WorkflowID: targetWorkflow,
			State: WorkflowState{
				WorkflowID:  targetWorkflow,
				CurrentStep: "initial",
				Data:        initData,
				Metadata: WorkflowStateMeta{
					StartedAt:    now,
					LastModified: now,
				},
				Checkpoints: []Checkpoint{},
			},
			Tools:       def.Capabilities,
			History:     []ConversationEntry{},
			Checkpoints: []Checkpoint{},
		}
	}

	session.ActiveWorkflow = targetWorkflow
	session.CurrentContext = targetWorkflow
	session.WorkflowContext = wctx
	c.touchRecentWorkflows(session, targetWorkflow)
	return nil
}

func (c *ContextManager) touchRecentWorkflows(session *UserSession, workflowID string) {
	filtered := make([]string, 0, len(session.RecentWorkflows)+1)
	filtered = append(filtered, workflowID)
	for _, id := range session.RecentWorkflows {
		if id != workflowID {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) > maxRecentWorkflows {
		filtered = filtered[:maxRecentWorkflows]
	}
	session.RecentWorkflows = filtered
}

// UpdateWorkflowProgress stamps the active workflow's step and completion
// percentage and records a progress_update history entry.
func (c *ContextManager) UpdateWorkflowProgress(session *UserSession, step string, percentage float64) error {
	if session.WorkflowContext == nil {
		return fmt.Errorf("orchestrator: session %s has no active workflow", session.SessionID)
	}
	now := time.Now()
	state := &session.WorkflowContext.State
	state.CurrentStep = step
	state.Metadata.CompletionPercentage = percentage
	state.Metadata.LastModified = now

	session.WorkflowContext.History = append(session.WorkflowContext.History, ConversationEntry{
		Timestamp: now,
		Action:    "progress_update",
		Details:   map[string]any{"step": step, "percentage": percentage},
	})
	return nil
}

// AddWorkflowCheckpoint records a checkpoint against both the workflow
// state's and the workflow context's checkpoint lists, keeping them
// synchronised.
func (c *ContextManager) AddWorkflowCheckpoint(session *UserSession, description string, data map[string]any) (*Checkpoint, error) {
	if session.WorkflowContext == nil {
		return nil, fmt.Errorf("orchestrator: session %s has no active workflow", session.SessionID)
	}
	if data == nil {
		data = map[string]any{}
	}
	now := time.Now()
	cp := Checkpoint{
		ID:          fmt.Sprintf("checkpoint_%d", now.UnixMilli()),
		Timestamp:   now,
		Step:        session.WorkflowContext.State.CurrentStep,
		Description: description,
		Data:        data,
	}

	session.WorkflowContext.State.Checkpoints = append(session.WorkflowContext.State.Checkpoints, cp)
	session.WorkflowContext.Checkpoints = append(session.WorkflowContext.Checkpoints, cp)
	session.WorkflowContext.History = append(session.WorkflowContext.History, ConversationEntry{
		Timestamp: now,
		Action:    "checkpoint_added",
		Details:   map[string]any{"checkpointId": cp.ID, "description": description},
	})
	return &cp, nil
}
