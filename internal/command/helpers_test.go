package command_test

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/commandgate/internal/command"
)

// fakeResponder records every response sent through it.
type fakeResponder struct {
	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	err       error
}

func (f *fakeResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeResponder) sent() []*discordgo.InteractionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.InteractionResponse(nil), f.responses...)
}

func (f *fakeResponder) contents() []string {
	var out []string
	for _, r := range f.sent() {
		if r.Data != nil {
			out = append(out, r.Data.Content)
		}
	}
	return out
}

func guildInteraction(name string, perms int64, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:      "i1",
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g1",
		Member: &discordgo.Member{
			User:        &discordgo.User{ID: "u1", Username: "member"},
			Permissions: perms,
		},
		Data: discordgo.ApplicationCommandInteractionData{
			Name:        name,
			CommandType: discordgo.ChatApplicationCommand,
			Options:     opts,
		},
	}
}

func dmInteraction(name string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:   "i2",
		Type: discordgo.InteractionApplicationCommand,
		User: &discordgo.User{ID: "u2", Username: "stranger"},
		Data: discordgo.ApplicationCommandInteractionData{
			Name:        name,
			CommandType: discordgo.ChatApplicationCommand,
		},
	}
}

func autocompleteInteraction(name string) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:      "i3",
		Type:    discordgo.InteractionApplicationCommandAutocomplete,
		GuildID: "g1",
		Member:  &discordgo.Member{User: &discordgo.User{ID: "u1"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: name,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "q", Type: discordgo.ApplicationCommandOptionString, Value: "pi", Focused: true},
			},
		},
	}
}

// spyCommand counts executions and can be told to fail, panic or reject.
type spyCommand struct {
	command.Base

	mu       sync.Mutex
	executed int
	reasons  []string

	execErr    error
	panicMsg   string
	valid      *bool
	validErr   error
	replyFirst bool
}

func (s *spyCommand) Execute(_ context.Context, c *command.Context) error {
	s.mu.Lock()
	s.executed++
	s.mu.Unlock()

	if s.replyFirst {
		if err := c.Interaction.Reply("partial"); err != nil {
			return err
		}
	}
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.execErr != nil {
		return s.execErr
	}
	return c.Interaction.Reply("ok")
}

func (s *spyCommand) Validate(ctx context.Context, c *command.Context) (bool, error) {
	if s.validErr != nil {
		return false, s.validErr
	}
	if s.valid != nil {
		return *s.valid, nil
	}
	return s.Base.Validate(ctx, c)
}

func (s *spyCommand) executions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executed
}

// recordingCommand overrides the rejection callback.
type recordingCommand struct {
	spyCommand
}

func (r *recordingCommand) OnValidationFailure(_ context.Context, c *command.Context, reason string) error {
	r.mu.Lock()
	r.reasons = append(r.reasons, reason)
	r.mu.Unlock()
	return c.Interaction.ReplyEphemeral("custom: " + reason)
}

func definition(name string, h command.Command, edit func(*command.Metadata)) command.Definition {
	meta := &command.Metadata{Name: name, Description: name + " command"}
	if edit != nil {
		edit(meta)
	}
	return command.Definition{Metadata: meta, New: func() command.Command { return h }}
}

func newRegistry(defs ...command.Definition) *command.Registry {
	reg := command.NewRegistry(zerolog.Nop())
	if err := reg.RegisterBatch(defs...); err != nil {
		panic(err)
	}
	return reg
}

var errBoom = errors.New("boom")
