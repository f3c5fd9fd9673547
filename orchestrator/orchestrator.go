package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Orchestrator is the facade wiring the SessionManager, WorkflowRegistry,
// ContextManager and IntentDetector into the single processMessage entry
// point the kernel calls on every conversational message.
type Orchestrator struct {
	sessions *SessionManager
	registry *WorkflowRegistry
	contexts *ContextManager
	intents  IntentDetector
	logger   *slog.Logger
	started  time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the diagnostic logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithIntentDetector overrides the default RuleBasedIntentDetector.
func WithIntentDetector(detector IntentDetector) Option {
	return func(o *Orchestrator) { o.intents = detector }
}

// New creates an Orchestrator over store and registry.
func New(store SessionStore, registry *WorkflowRegistry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions: NewSessionManager(store),
		registry: registry,
		contexts: NewContextManager(registry),
		logger:   slog.Default(),
		started:  time.Now(),
	}
	o.intents = NewRuleBasedIntentDetector(registry)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Registry exposes the underlying WorkflowRegistry so callers can register
// workflow definitions and context loaders before serving traffic.
func (o *Orchestrator) Registry() *WorkflowRegistry { return o.registry }

// ContextManager exposes the underlying ContextManager, primarily so
// callers can register custom ContextLoaders.
func (o *Orchestrator) ContextManager() *ContextManager { return o.contexts }

// ProcessMessage resolves or creates a session, appends message to its
// history, runs intent detection, and switches workflow context if the
// detector recommends it.
func (o *Orchestrator) ProcessMessage(ctx context.Context, message, sessionID, userID, userName string) (*ProcessResult, error) {
	session, err := o.sessions.GetOrCreateSession(ctx, sessionID, userID, userName)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resolve session: %w", err)
	}

	session.ConversationHistory = append(session.ConversationHistory, ConversationEntry{
		Role:      "user",
		Content:   message,
		Timestamp: time.Now(),
	})

	intent, err := o.intents.AnalyzeMessage(ctx, message, session)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: analyze message: %w", err)
	}

	workflowChanged := false
	if intent.ShouldSwitchWorkflow {
		target := intent.TargetWorkflow
		if err := o.contexts.SwitchContext(ctx, session, target, intent.ExtractedData); err != nil {
			return nil, err
		}
		workflowChanged = true
	}

	if err := o.sessions.UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	o.logger.Debug("processed message",
		slog.String("sessionId", session.SessionID),
		slog.Float64("confidence", intent.Confidence),
		slog.Bool("workflowChanged", workflowChanged))

	return &ProcessResult{Session: session, Intent: intent, WorkflowChanged: workflowChanged}, nil
}

// SwitchWorkflow explicitly moves sessionID into targetWorkflow (or back to
// "general" if empty), bypassing intent detection.
func (o *Orchestrator) SwitchWorkflow(ctx context.Context, sessionID, targetWorkflow string, initData map[string]any) (*UserSession, error) {
	session, err := o.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("orchestrator: session not found: %s", sessionID)
	}
	if err := o.contexts.SwitchContext(ctx, session, targetWorkflow, initData); err != nil {
		return nil, err
	}
	if err := o.sessions.UpdateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// UpdateWorkflowProgress loads sessionID, applies a progress update to its
// active workflow, and persists the result.
func (o *Orchestrator) UpdateWorkflowProgress(ctx context.Context, sessionID, step string, percentage float64) (*UserSession, error) {
	session, err := o.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("orchestrator: session not found: %s", sessionID)
	}
	if err := o.contexts.UpdateWorkflowProgress(session, step, percentage); err != nil {
		return nil, err
	}
	if err := o.sessions.UpdateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// AddWorkflowCheckpoint loads sessionID, records a checkpoint against its
// active workflow, and persists the result.
func (o *Orchestrator) AddWorkflowCheckpoint(ctx context.Context, sessionID, description string, data map[string]any) (*Checkpoint, error) {
	session, err := o.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("orchestrator: session not found: %s", sessionID)
	}
	cp, err := o.contexts.AddWorkflowCheckpoint(session, description, data)
	if err != nil {
		return nil, err
	}
	if err := o.sessions.UpdateSession(ctx, session); err != nil {
		return nil, err
	}
	return cp, nil
}

// GetSessionStats summarises a session's message count and workflow state.
func (o *Orchestrator) GetSessionStats(ctx context.Context, sessionID string) (*SessionStats, error) {
	session, err := o.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("orchestrator: session not found: %s", sessionID)
	}
	return &SessionStats{
		SessionID:            session.SessionID,
		MessageCount:         len(session.ConversationHistory),
		ActiveWorkflow:       session.ActiveWorkflow,
		RecentWorkflowsCount: len(session.RecentWorkflows),
	}, nil
}

// CleanupExpiredSessions delegates to the SessionManager's cleanup pass.
func (o *Orchestrator) CleanupExpiredSessions(ctx context.Context) (int, error) {
	return o.sessions.Cleanup(ctx)
}

// HealthCheck reports per-component liveness plus coarse orchestrator
// metrics.
func (o *Orchestrator) HealthCheck(ctx context.Context) HealthStatus {
	components := map[string]any{
		"sessionStore":     "healthy",
		"workflowRegistry": "healthy",
		"intentDetector":   "healthy",
	}
	activeSessions := 0
	if _, err := o.sessions.store.Exists(ctx, "__healthcheck__"); err != nil {
		components["sessionStore"] = fmt.Sprintf("unhealthy: %s", err)
	}
	if countable, ok := o.sessions.store.(CountableStore); ok {
		if n, err := countable.Count(ctx); err == nil {
			activeSessions = n
		}
	}

	status := "healthy"
	for _, v := range components {
		if v != "healthy" {
			status = "degraded"
		}
	}

	return HealthStatus{
		Status:              status,
		Components:          components,
		ActiveSessions:      activeSessions,
		RegisteredWorkflows: o.registry.Size(),
		UptimeSeconds:       time.Since(o.started).Seconds(),
	}
}
