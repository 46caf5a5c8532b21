package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/commandgate/internal/command"
	"github.com/keshon/commandgate/internal/features"
)

const (
	actionEnable  = "enable"
	actionDisable = "disable"
)

// featureCommand toggles a feature at runtime.
type featureCommand struct {
	command.Base
	manager *features.Manager
}

func featureDefinition(deps Deps) command.Definition {
	return command.Definition{
		Metadata: &command.Metadata{
			Name:                "feature",
			Description:         "Enable or disable a bot feature",
			RequiredPermissions: []int64{command.PermissionManageGuild},
			RequiredFeatures:    []features.Feature{features.UpdateConfig},
			Options: []command.Option{
				{
					Name:        "action",
					Description: "What to do with the feature",
					Type:        command.OptionString,
					Required:    true,
					Choices: []command.Choice{
						{Name: "Enable", Value: actionEnable},
						{Name: "Disable", Value: actionDisable},
					},
				},
				{
					Name:         "name",
					Description:  "Feature to change",
					Type:         command.OptionString,
					Required:     true,
					Autocomplete: true,
				},
			},
		},
		New: func() command.Command { return &featureCommand{manager: deps.Features} },
	}
}

// Validate rejects unknown feature names before anything is changed.
func (c *featureCommand) Validate(_ context.Context, ctx *command.Context) (bool, error) {
	return features.IsKnown(features.Feature(stringOption(ctx.Interaction, "name"))), nil
}

func (c *featureCommand) OnValidationFailure(_ context.Context, ctx *command.Context, reason string) error {
	if reason == command.ReasonValidation {
		reason = fmt.Sprintf("Unknown feature. Known features: %s", features.Join(features.Known))
	}
	return ctx.Interaction.ReplyEphemeral("❌ " + reason)
}

func (c *featureCommand) Execute(_ context.Context, ctx *command.Context) error {
	action := stringOption(ctx.Interaction, "action")
	f := features.Feature(stringOption(ctx.Interaction, "name"))

	var err error
	switch action {
	case actionEnable:
		err = c.manager.EnableFeature(f)
	case actionDisable:
		err = c.manager.DisableFeature(f)
	default:
		return ctx.Interaction.ReplyEphemeral(fmt.Sprintf("❌ Unknown action `%s`.", action))
	}
	if err != nil {
		return fmt.Errorf("%s feature %s: %w", action, f, err)
	}

	ctx.Logger.Info().Str("feature", string(f)).Str("action", action).Msg("Feature toggled")
	return ctx.Interaction.ReplyEphemeral(fmt.Sprintf("✅ Feature `%s` is now %sd.", f, action))
}

// Autocomplete suggests known features matching what the user typed.
func (c *featureCommand) Autocomplete(_ context.Context, ctx *command.Context) error {
	typed := ""
	if focused := ctx.Interaction.FocusedOption(); focused != nil && focused.Type == discordgo.ApplicationCommandOptionString {
		typed = strings.ToLower(focused.StringValue())
	}

	snap := c.manager.Snapshot()
	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, f := range features.Known {
		if !strings.Contains(string(f), typed) {
			continue
		}
		label := string(f) + " (disabled)"
		if snap.IsFeatureEnabled(f) {
			label = string(f) + " (enabled)"
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: label, Value: string(f)})
	}
	return ctx.Interaction.Suggest(choices)
}
