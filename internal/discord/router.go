package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/commandgate/internal/command"
)

// Dispatcher is the part of *command.Dispatcher the router drives.
type Dispatcher interface {
	ExecuteCommand(ctx context.Context, name string, in *command.Interaction) command.Result
	HandleAutocomplete(ctx context.Context, in *command.Interaction)
}

// Router hands inbound interactions to the dispatcher.
type Router struct {
	dispatcher Dispatcher
	log        zerolog.Logger
}

// NewRouter creates a router over d.
func NewRouter(d Dispatcher, log zerolog.Logger) *Router {
	return &Router{dispatcher: d, log: log.With().Str("component", "router").Logger()}
}

// Route dispatches chat input commands and autocomplete requests. Other
// interaction kinds are ignored.
func (r *Router) Route(ctx context.Context, resp command.Responder, i *discordgo.Interaction) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		if data.CommandType != discordgo.ChatApplicationCommand {
			r.log.Debug().Str("command", data.Name).Msg("Ignoring non chat input command")
			return
		}
		r.dispatcher.ExecuteCommand(ctx, data.Name, command.NewInteraction(i, resp))

	case discordgo.InteractionApplicationCommandAutocomplete:
		r.dispatcher.HandleAutocomplete(ctx, command.NewInteraction(i, resp))

	default:
		r.log.Debug().Int("type", int(i.Type)).Msg("Ignoring interaction")
	}
}
