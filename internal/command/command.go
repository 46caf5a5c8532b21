// Package command is the bot's command core: declarative metadata, the
// registry built from it, the slash command schema builder and the dispatcher
// that runs an interaction through its gates before calling the handler.
package command

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/keshon/commandgate/internal/features"
)

// FeatureChecker is the read side of the feature configuration.
type FeatureChecker interface {
	IsFeatureEnabled(f features.Feature) bool
}

// Context is what a handler receives for one dispatch.
type Context struct {
	Interaction *Interaction
	Features    FeatureChecker
	Logger      zerolog.Logger
}

// Command is implemented by every handler.
type Command interface {
	Execute(ctx context.Context, c *Context) error
}

// Validator is an optional last gate run before Execute.
type Validator interface {
	Validate(ctx context.Context, c *Context) (bool, error)
}

// FailureHandler is an optional override for how gate rejections are reported.
type FailureHandler interface {
	OnValidationFailure(ctx context.Context, c *Context, reason string) error
}

// Autocompleter is implemented by commands with autocomplete options.
type Autocompleter interface {
	Autocomplete(ctx context.Context, c *Context) error
}

// Base provides the default Validate and OnValidationFailure behaviour.
// Embed it and override what you need.
type Base struct{}

// Validate always passes.
func (Base) Validate(context.Context, *Context) (bool, error) { return true, nil }

// OnValidationFailure replies ephemerally with the reason.
func (Base) OnValidationFailure(_ context.Context, c *Context, reason string) error {
	return c.Interaction.ReplyEphemeral("❌ " + reason)
}

// CommandFunc adapts a plain function to Command.
type CommandFunc func(ctx context.Context, c *Context) error

// Execute calls f.
func (f CommandFunc) Execute(ctx context.Context, c *Context) error { return f(ctx, c) }
