package commands

import (
	"context"

	"github.com/keshon/commandgate/internal/command"
)

type pingCommand struct {
	command.Base
}

func pingDefinition() command.Definition {
	return command.Definition{
		Metadata: &command.Metadata{
			Name:         "ping",
			Description:  "Replies with Pong!",
			DMPermission: true,
		},
		New: func() command.Command { return &pingCommand{} },
	}
}

func (c *pingCommand) Execute(_ context.Context, ctx *command.Context) error {
	return ctx.Interaction.Reply("Pong!")
}
