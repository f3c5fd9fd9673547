// Package plugin implements the Plugin Host: the mediator between
// dynamically-registered plugins and the kernel. It owns the
// tool/resource/prompt registries, drives the register → initialize → serve
// → shutdown lifecycle, and hands every plugin a short-lived registration
// context during initialize.
package plugin

import (
	"context"
	"fmt"
)

// Metadata identifies a plugin. ID is the unique primary key and the
// tool-name/prompt-name namespace prefix.
type Metadata struct {
	ID          string
	Name        string
	Version     string
	Description string

	Author       string
	License      string
	Repository   string
	Keywords     []string
	Category     string
	Homepage     string
	Dependencies []string
}

// Schema is a JSON-Schema object describing a tool's input shape.
type Schema struct {
	Type                 string                    `json:"type"`
	Properties           map[string]SchemaProperty `json:"properties,omitempty"`
	Required             []string                  `json:"required,omitempty"`
	AdditionalProperties bool                      `json:"additionalProperties"`
}

// SchemaProperty describes one field of a tool's input schema.
type SchemaProperty struct {
	Type        string                    `json:"type"`
	Description string                    `json:"description,omitempty"`
	Enum        []string                  `json:"enum,omitempty"`
	Minimum     *float64                  `json:"minimum,omitempty"`
	Maximum     *float64                  `json:"maximum,omitempty"`
	Items       *SchemaProperty           `json:"items,omitempty"`
	Properties  map[string]SchemaProperty `json:"properties,omitempty"`
}

// Handler is the capability every tool exposes: given decoded params and the
// call context, produce a result or fail. Params carries whatever the caller
// sent, already decoded from JSON into a map; result may be a string (passed
// through verbatim) or any JSON-marshalable value (rendered by the kernel).
type Handler func(ctx context.Context, params map[string]any, call *CallContext) (any, error)

// Tool is a named, schema-described operation exposed to tools/call.
// Tools are keyed in the registry as "{pluginId}:{name}".
type Tool struct {
	Name        string
	Description string
	InputSchema Schema
	Handler     Handler
}

// ResourceHandler produces a resource's payload on demand.
type ResourceHandler func(ctx context.Context, call *CallContext) (ResourcePayload, error)

// ResourcePayload is what a resource handler returns; Text is rendered
// verbatim into resources/read's contents array.
type ResourcePayload struct {
	Text     string
	MimeType string
}

// Resource is a uri-addressed read-only payload, keyed by its bare uri with
// no plugin prefix. Resource uris must be globally unique.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
	Handler     ResourceHandler
}

// PromptArgument describes one argument a prompt handler accepts.
type PromptArgument struct {
	Name        string
	Description string
	Required    bool
}

// PromptMessage is one message a prompt handler renders for the caller.
type PromptMessage struct {
	Role    string
	Content string
}

// PromptHandler renders a prompt's messages from the caller's arguments.
type PromptHandler func(ctx context.Context, args map[string]string, call *CallContext) ([]PromptMessage, error)

// Prompt is a named, argument-taking generator of chat messages, keyed as
// "{pluginId}:{name}" like Tool.
type Prompt struct {
	Name        string
	Description string
	Arguments   []PromptArgument
	Handler     PromptHandler
}

// Plugin is the capability set every plugin must satisfy: metadata, a
// mandatory Initialize that registers capabilities against the
// RegistrationContext it's given, and an optional Shutdown.
//
// This is a composition-based capability set rather than an inheritance
// hierarchy: plugins implement Plugin directly, or embed the optional Base
// helper (base.go) that dispatches to per-kind Define hooks without
// requiring a class hierarchy.
type Plugin interface {
	Metadata() Metadata
	Initialize(ctx context.Context, reg *RegistrationContext) error
}

// ShutdownablePlugin is the optional half of Plugin: a plugin that needs to
// release resources on shutdown implements it in addition to Plugin.
type ShutdownablePlugin interface {
	Shutdown(ctx context.Context) error
}

func toolKey(pluginID, name string) string {
	return fmt.Sprintf("%s:%s", pluginID, name)
}

func promptKey(pluginID, name string) string {
	return fmt.Sprintf("%s:%s", pluginID, name)
}
