package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/commandgate/internal/command"
)

type fakeDispatcher struct {
	executed     []string
	autocomplete int
}

func (f *fakeDispatcher) ExecuteCommand(_ context.Context, name string, in *command.Interaction) command.Result {
	f.executed = append(f.executed, name)
	return command.Result{Command: name}
}

func (f *fakeDispatcher) HandleAutocomplete(context.Context, *command.Interaction) {
	f.autocomplete++
}

type nopResponder struct{}

func (nopResponder) InteractionRespond(*discordgo.Interaction, *discordgo.InteractionResponse, ...discordgo.RequestOption) error {
	return nil
}

func TestRouteChatInput(t *testing.T) {
	d := &fakeDispatcher{}
	r := NewRouter(d, zerolog.Nop())

	r.Route(context.Background(), nopResponder{}, &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{Name: "ping", CommandType: discordgo.ChatApplicationCommand},
	})

	assert.Equal(t, []string{"ping"}, d.executed)
	assert.Zero(t, d.autocomplete)
}

func TestRouteIgnoresContextMenuCommands(t *testing.T) {
	d := &fakeDispatcher{}
	r := NewRouter(d, zerolog.Nop())

	r.Route(context.Background(), nopResponder{}, &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{Name: "announce", CommandType: discordgo.MessageApplicationCommand},
	})

	assert.Empty(t, d.executed)
}

func TestRouteAutocomplete(t *testing.T) {
	d := &fakeDispatcher{}
	r := NewRouter(d, zerolog.Nop())

	r.Route(context.Background(), nopResponder{}, &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommandAutocomplete,
		Data: discordgo.ApplicationCommandInteractionData{Name: "feature", CommandType: discordgo.ChatApplicationCommand},
	})

	assert.Equal(t, 1, d.autocomplete)
	assert.Empty(t, d.executed)
}

func TestRouteIgnoresOtherKinds(t *testing.T) {
	d := &fakeDispatcher{}
	r := NewRouter(d, zerolog.Nop())

	r.Route(context.Background(), nopResponder{}, &discordgo.Interaction{Type: discordgo.InteractionPing})
	r.Route(context.Background(), nopResponder{}, &discordgo.Interaction{
		Type: discordgo.InteractionMessageComponent,
		Data: discordgo.MessageComponentInteractionData{CustomID: "x"},
	})

	assert.Empty(t, d.executed)
	assert.Zero(t, d.autocomplete)
}

func TestClassifyLoginError(t *testing.T) {
	unauthorized := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusUnauthorized}}
	assert.ErrorIs(t, classifyLoginError(unauthorized), ErrTokenInvalid)
	assert.ErrorIs(t, classifyLoginError(fmt.Errorf("open: %w", discordgo.ErrUnauthorized)), ErrTokenInvalid)

	other := errors.New("dial tcp: timeout")
	assert.Same(t, other, classifyLoginError(other))

	forbidden := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}}
	assert.NotErrorIs(t, classifyLoginError(forbidden), ErrTokenInvalid)
}

func TestAppID(t *testing.T) {
	assert.Equal(t, "app", appID(&discordgo.Ready{
		User:        &discordgo.User{ID: "user"},
		Application: &discordgo.Application{ID: "app"},
	}))
	assert.Equal(t, "user", appID(&discordgo.Ready{User: &discordgo.User{ID: "user"}}))
	assert.Empty(t, appID(&discordgo.Ready{}))
}

func TestNewBotRequiresToken(t *testing.T) {
	_, err := NewBot(Options{Token: "  "}, command.NewRegistry(zerolog.Nop()), &fakeDispatcher{}, nil, zerolog.Nop())
	assert.ErrorIs(t, err, ErrTokenMissing)

	b, err := NewBot(Options{Token: "abc"}, command.NewRegistry(zerolog.Nop()), &fakeDispatcher{}, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, discordgo.IntentsGuilds, b.session.Identify.Intents)
}
