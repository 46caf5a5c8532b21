package command

import (
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// ErrAlreadyResponded is returned when a second initial response is attempted.
var ErrAlreadyResponded = errors.New("interaction already responded to")

// Responder sends interaction responses. *discordgo.Session satisfies it.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Interaction wraps an inbound Discord interaction and remembers whether it
// has already been answered, so the dispatcher never sends a second reply.
type Interaction struct {
	*discordgo.Interaction

	responder Responder

	mu       sync.Mutex
	sending  bool
	replied  bool
	deferred bool
}

// NewInteraction binds i to the responder used to answer it.
func NewInteraction(i *discordgo.Interaction, r Responder) *Interaction {
	return &Interaction{Interaction: i, responder: r}
}

// CommandName returns the invoked command's name, or "" for non-command interactions.
func (in *Interaction) CommandName() string {
	switch in.Type {
	case discordgo.InteractionApplicationCommand, discordgo.InteractionApplicationCommandAutocomplete:
		return in.ApplicationCommandData().Name
	}
	return ""
}

// InGuild reports whether the interaction was invoked by a guild member.
func (in *Interaction) InGuild() bool {
	return in.Member != nil
}

// MemberPermissions returns the invoking member's resolved channel permissions.
func (in *Interaction) MemberPermissions() int64 {
	if in.Member == nil {
		return 0
	}
	return in.Member.Permissions
}

// Invoker returns the user behind the interaction in both guild and DM contexts.
func (in *Interaction) Invoker() *discordgo.User {
	if in.Member != nil && in.Member.User != nil {
		return in.Member.User
	}
	return in.User
}

// Option returns the top-level option with the given name, or nil.
func (in *Interaction) Option(name string) *discordgo.ApplicationCommandInteractionDataOption {
	if in.CommandName() == "" {
		return nil
	}
	for _, o := range in.ApplicationCommandData().Options {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// FocusedOption returns the option the user is typing into during autocomplete.
func (in *Interaction) FocusedOption() *discordgo.ApplicationCommandInteractionDataOption {
	if in.Type != discordgo.InteractionApplicationCommandAutocomplete {
		return nil
	}
	for _, o := range in.ApplicationCommandData().Options {
		if o.Focused {
			return o
		}
	}
	return nil
}

// Replied reports whether a message response was sent.
func (in *Interaction) Replied() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.replied
}

// Deferred reports whether the interaction was acknowledged for a later reply.
func (in *Interaction) Deferred() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.deferred
}

// Answered reports whether any response went out.
func (in *Interaction) Answered() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.replied || in.deferred
}

// Respond sends resp as the initial response and records the reply state on
// success. An interaction accepts only one initial response.
func (in *Interaction) Respond(resp *discordgo.InteractionResponse) error {
	in.mu.Lock()
	if in.sending || in.replied || in.deferred {
		in.mu.Unlock()
		return ErrAlreadyResponded
	}
	in.sending = true
	in.mu.Unlock()

	err := in.responder.InteractionRespond(in.Interaction, resp)

	in.mu.Lock()
	defer in.mu.Unlock()
	in.sending = false
	if err != nil {
		return err
	}
	switch resp.Type {
	case discordgo.InteractionResponseDeferredChannelMessageWithSource,
		discordgo.InteractionResponseDeferredMessageUpdate:
		in.deferred = true
	default:
		in.replied = true
	}
	return nil
}

// Reply sends a public message response.
func (in *Interaction) Reply(content string) error {
	return in.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
}

// ReplyEphemeral sends a message only the invoker can see.
func (in *Interaction) ReplyEphemeral(content string) error {
	return in.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// ReplyEmbedEphemeral sends an embed only the invoker can see.
func (in *Interaction) ReplyEmbedEphemeral(embed *discordgo.MessageEmbed) error {
	return in.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}

// Defer acknowledges the interaction; the reply follows as a followup.
func (in *Interaction) Defer(ephemeral bool) error {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return in.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
}

// Suggest answers an autocomplete request with the given choices.
func (in *Interaction) Suggest(choices []*discordgo.ApplicationCommandOptionChoice) error {
	if choices == nil {
		choices = []*discordgo.ApplicationCommandOptionChoice{}
	}
	return in.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
}
