package plugin

import "context"

// Base is a composition-based convenience scaffold: a plugin embeds Base,
// sets Meta and the three Define hooks, and gets a working Initialize for
// free. It is a convenience, not a requirement — Plugin can be implemented
// directly with no dependency on this type.
type Base struct {
	Meta Metadata

	DefineTools     func(reg *RegistrationContext) []Tool
	DefineResources func(reg *RegistrationContext) []Resource
	DefinePrompts   func(reg *RegistrationContext) []Prompt
	OnInitialize    func(ctx context.Context, reg *RegistrationContext) error
}

// Metadata implements Plugin.
func (b *Base) Metadata() Metadata {
	return b.Meta
}

// Initialize implements Plugin by calling DefineTools, DefineResources and
// DefinePrompts (each optional) and then OnInitialize (also optional), in
// that order, registering whatever each Define hook returns.
func (b *Base) Initialize(ctx context.Context, reg *RegistrationContext) error {
	if b.DefineTools != nil {
		for _, t := range b.DefineTools(reg) {
			if err := reg.RegisterTool(t); err != nil {
				return err
			}
		}
	}
	if b.DefineResources != nil {
		for _, r := range b.DefineResources(reg) {
			if err := reg.RegisterResource(r); err != nil {
				return err
			}
		}
	}
	if b.DefinePrompts != nil {
		for _, p := range b.DefinePrompts(reg) {
			if err := reg.RegisterPrompt(p); err != nil {
				return err
			}
		}
	}
	if b.OnInitialize != nil {
		return b.OnInitialize(ctx, reg)
	}
	return nil
}
