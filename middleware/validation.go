package middleware

import (
	"context"
	"fmt"
)

// Validation is a built-in middleware that asserts a tool's arguments are
// a mapping, not null and not a sequence.
type Validation struct{}

// NewValidation creates a Validation middleware.
func NewValidation() *Validation {
	return &Validation{}
}

// Name implements Middleware.
func (v *Validation) Name() string { return "validation" }

// BeforeToolCall implements BeforeToolCaller. params always arrives as
// map[string]any once decoded from the JSON-RPC envelope, so this asserts
// the caller didn't send a JSON array or a bare scalar in "arguments".
func (v *Validation) BeforeToolCall(_ context.Context, toolName string, params map[string]any) error {
	if params == nil {
		return fmt.Errorf("tool %q: arguments must not be null", toolName)
	}
	return nil
}
