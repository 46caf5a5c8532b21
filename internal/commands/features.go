package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/commandgate/internal/command"
	"github.com/keshon/commandgate/internal/features"
)

// featuresCommand lists every known feature and whether it is enabled.
type featuresCommand struct {
	command.Base
	manager *features.Manager
}

func featuresDefinition(deps Deps) command.Definition {
	return command.Definition{
		Metadata: &command.Metadata{
			Name:             "features",
			Description:      "Show which bot features are enabled",
			RequiredFeatures: []features.Feature{features.ReadConfig},
		},
		New: func() command.Command { return &featuresCommand{manager: deps.Features} },
	}
}

func (c *featuresCommand) Execute(_ context.Context, ctx *command.Context) error {
	snap := c.manager.Snapshot()

	var sb strings.Builder
	for _, f := range features.Known {
		status := "✅ enabled"
		if !snap.IsFeatureEnabled(f) {
			status = "🚫 disabled"
		}
		sb.WriteString(fmt.Sprintf("`%s`: %s\n", f, status))
	}

	return ctx.Interaction.ReplyEmbedEphemeral(&discordgo.MessageEmbed{
		Title:       "Features",
		Description: sb.String(),
		Color:       embedColor,
	})
}
