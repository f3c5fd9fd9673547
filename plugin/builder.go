package plugin

import "fmt"

// ToolBuilder is a fluent builder that accumulates parameter descriptions
// and a handler, then produces a Tool. It enforces that a handler is set
// before Build is called.
type ToolBuilder struct {
	name        string
	description string
	properties  map[string]SchemaProperty
	required    []string
	handler     Handler
}

// NewTool starts a ToolBuilder for a tool named name.
func NewTool(name, description string) *ToolBuilder {
	return &ToolBuilder{
		name:        name,
		description: description,
		properties:  make(map[string]SchemaProperty),
	}
}

// StringParam adds a required-or-optional string parameter.
func (b *ToolBuilder) StringParam(name, description string, required bool) *ToolBuilder {
	return b.addParam(name, description, required, SchemaProperty{Type: "string", Description: description})
}

// NumberParam adds a number parameter with optional inclusive bounds. Pass
// nil for min or max to leave that bound unconstrained.
func (b *ToolBuilder) NumberParam(name, description string, required bool, min, max *float64) *ToolBuilder {
	return b.addParam(name, description, required, SchemaProperty{
		Type: "number", Description: description, Minimum: min, Maximum: max,
	})
}

// BoolParam adds a boolean parameter.
func (b *ToolBuilder) BoolParam(name, description string, required bool) *ToolBuilder {
	return b.addParam(name, description, required, SchemaProperty{Type: "boolean", Description: description})
}

// EnumParam adds a string parameter constrained to one of values.
func (b *ToolBuilder) EnumParam(name, description string, required bool, values []string) *ToolBuilder {
	return b.addParam(name, description, required, SchemaProperty{
		Type: "string", Description: description, Enum: values,
	})
}

// ArrayParam adds an array parameter whose items match itemType (e.g. "string").
func (b *ToolBuilder) ArrayParam(name, description string, required bool, itemType string) *ToolBuilder {
	return b.addParam(name, description, required, SchemaProperty{
		Type: "array", Description: description, Items: &SchemaProperty{Type: itemType},
	})
}

// ObjectParam adds a nested object parameter with its own properties.
func (b *ToolBuilder) ObjectParam(name, description string, required bool, properties map[string]SchemaProperty) *ToolBuilder {
	return b.addParam(name, description, required, SchemaProperty{
		Type: "object", Description: description, Properties: properties,
	})
}

func (b *ToolBuilder) addParam(name, _ string, required bool, prop SchemaProperty) *ToolBuilder {
	b.properties[name] = prop
	if required {
		b.required = append(b.required, name)
	}
	return b
}

// WithHandler sets the tool's handler. Build fails without one.
func (b *ToolBuilder) WithHandler(h Handler) *ToolBuilder {
	b.handler = h
	return b
}

// Build produces the Tool, failing if no handler was set.
func (b *ToolBuilder) Build() (Tool, error) {
	if b.handler == nil {
		return Tool{}, fmt.Errorf("plugin: tool %q has no handler set", b.name)
	}
	return Tool{
		Name:        b.name,
		Description: b.description,
		InputSchema: Schema{
			Type:                 "object",
			Properties:           b.properties,
			Required:             b.required,
			AdditionalProperties: false,
		},
		Handler: b.handler,
	}, nil
}
