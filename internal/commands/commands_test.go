package commands

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/commandgate/internal/command"
	"github.com/keshon/commandgate/internal/features"
)

type recorder struct {
	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
}

func (r *recorder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
	return nil
}

func (r *recorder) last(t *testing.T) *discordgo.InteractionResponse {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.responses)
	return r.responses[len(r.responses)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.responses)
}

type fixture struct {
	manager    *features.Manager
	dispatcher *command.Dispatcher
}

func newFixture(t *testing.T, seed features.State, client *http.Client) *fixture {
	t.Helper()
	m, err := features.NewManager(nil, seed, zerolog.Nop())
	require.NoError(t, err)

	reg := command.NewRegistry(zerolog.Nop())
	require.NoError(t, reg.RegisterBatch(Definitions(Deps{Features: m, HTTPClient: client, Logger: zerolog.Nop()})...))
	return &fixture{manager: m, dispatcher: command.NewDispatcher(reg, m, command.WithLogger(zerolog.Nop()))}
}

func (f *fixture) run(t *testing.T, i *discordgo.Interaction) (command.Result, *recorder) {
	t.Helper()
	rec := &recorder{}
	data := i.ApplicationCommandData()
	res := f.dispatcher.ExecuteCommand(context.Background(), data.Name, command.NewInteraction(i, rec))
	return res, rec
}

func stringOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func guildCommand(name string, perms int64, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:      "i1",
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: "g1",
		Member: &discordgo.Member{
			User:        &discordgo.User{ID: "u1", Username: "admin"},
			Permissions: perms,
		},
		Data: discordgo.ApplicationCommandInteractionData{
			Name:        name,
			CommandType: discordgo.ChatApplicationCommand,
			Options:     opts,
		},
	}
}

func dmCommand(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:   "i2",
		Type: discordgo.InteractionApplicationCommand,
		User: &discordgo.User{ID: "u2", Username: "someone"},
		Data: discordgo.ApplicationCommandInteractionData{
			Name:        name,
			CommandType: discordgo.ChatApplicationCommand,
			Options:     opts,
		},
	}
}

func TestDefinitionsBuildSchemas(t *testing.T) {
	reg := command.NewRegistry(zerolog.Nop())
	require.NoError(t, reg.RegisterBatch(Definitions(Deps{Logger: zerolog.Nop()})...))
	schemas, err := reg.BuildSchemas()
	require.NoError(t, err)

	var names []string
	for _, s := range schemas {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"ping", "features", "feature", "user"}, names)

	feature := schemas[2]
	require.NotNil(t, feature.DefaultMemberPermissions)
	assert.Equal(t, int64(discordgo.PermissionManageServer), *feature.DefaultMemberPermissions)
	require.Len(t, feature.Options, 2)
	assert.Len(t, feature.Options[0].Choices, 2)
	assert.True(t, feature.Options[1].Autocomplete)
}

func TestPing(t *testing.T) {
	f := newFixture(t, features.State{}, nil)

	res, rec := f.run(t, dmCommand("ping"))
	assert.Equal(t, command.StateCompleted, res.State)
	assert.Equal(t, "Pong!", rec.last(t).Data.Content)
}

func TestFeaturesListsState(t *testing.T) {
	f := newFixture(t, features.State{Enabled: []features.Feature{features.ReadConfig}}, nil)

	res, rec := f.run(t, guildCommand("features", 0))
	require.Equal(t, command.StateCompleted, res.State)

	data := rec.last(t).Data
	require.Len(t, data.Embeds, 1)
	desc := data.Embeds[0].Description
	assert.Contains(t, desc, "`read:config`: ✅ enabled")
	assert.Contains(t, desc, "`read:user`: 🚫 disabled")
	assert.Equal(t, discordgo.MessageFlagsEphemeral, data.Flags)
}

func TestFeaturesRequiresReadConfig(t *testing.T) {
	f := newFixture(t, features.State{}, nil)

	res, _ := f.run(t, guildCommand("features", 0))
	assert.Equal(t, command.StateRejectedFeature, res.State)
}

func TestFeatureToggle(t *testing.T) {
	f := newFixture(t, features.State{Enabled: []features.Feature{features.UpdateConfig}}, nil)

	res, rec := f.run(t, guildCommand("feature", discordgo.PermissionManageServer,
		stringOpt("action", "enable"), stringOpt("name", "read:user")))
	require.Equal(t, command.StateCompleted, res.State)
	assert.True(t, f.manager.IsFeatureEnabled(features.ReadUser))
	assert.Contains(t, rec.last(t).Data.Content, "now enabled")

	res, _ = f.run(t, guildCommand("feature", discordgo.PermissionManageServer,
		stringOpt("action", "disable"), stringOpt("name", "read:user")))
	require.Equal(t, command.StateCompleted, res.State)
	assert.False(t, f.manager.IsFeatureEnabled(features.ReadUser))
}

func TestFeatureRejectsUnknownName(t *testing.T) {
	f := newFixture(t, features.State{Enabled: []features.Feature{features.UpdateConfig}}, nil)

	res, rec := f.run(t, guildCommand("feature", discordgo.PermissionManageServer,
		stringOpt("action", "enable"), stringOpt("name", "write:everything")))
	assert.Equal(t, command.StateRejectedCustom, res.State)
	assert.Contains(t, rec.last(t).Data.Content, "Known features: read:user, read:config, update:config")
}

func TestFeatureNeedsManageGuild(t *testing.T) {
	f := newFixture(t, features.State{Enabled: []features.Feature{features.UpdateConfig}}, nil)

	res, _ := f.run(t, guildCommand("feature", discordgo.PermissionSendMessages,
		stringOpt("action", "enable"), stringOpt("name", "read:user")))
	assert.Equal(t, command.StateRejectedPermission, res.State)
	assert.False(t, f.manager.IsFeatureEnabled(features.ReadUser))
}

func TestFeatureIsGuildOnly(t *testing.T) {
	f := newFixture(t, features.State{Enabled: []features.Feature{features.UpdateConfig}}, nil)

	res, _ := f.run(t, dmCommand("feature", stringOpt("action", "enable"), stringOpt("name", "read:user")))
	assert.Equal(t, command.StateRejectedContext, res.State)
}

func TestFeatureAutocomplete(t *testing.T) {
	f := newFixture(t, features.State{Enabled: []features.Feature{features.ReadConfig}}, nil)

	i := &discordgo.Interaction{
		ID:      "i3",
		Type:    discordgo.InteractionApplicationCommandAutocomplete,
		GuildID: "g1",
		Member:  &discordgo.Member{User: &discordgo.User{ID: "u1"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name:        "feature",
			CommandType: discordgo.ChatApplicationCommand,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				stringOpt("action", "enable"),
				{Name: "name", Type: discordgo.ApplicationCommandOptionString, Value: "READ", Focused: true},
			},
		},
	}
	rec := &recorder{}
	f.dispatcher.HandleAutocomplete(context.Background(), command.NewInteraction(i, rec))

	resp := rec.last(t)
	assert.Equal(t, discordgo.InteractionApplicationCommandAutocompleteResult, resp.Type)
	require.Len(t, resp.Data.Choices, 2)
	assert.Equal(t, "read:user (disabled)", resp.Data.Choices[0].Name)
	assert.Equal(t, "read:user", resp.Data.Choices[0].Value)
	assert.Equal(t, "read:config (enabled)", resp.Data.Choices[1].Name)
}

func userSeed(baseURL string, methods ...any) features.State {
	return features.State{
		Enabled: []features.Feature{features.ReadUser},
		Config: map[features.Feature]map[string]any{
			features.APISettings: {"base_url": baseURL + "/"},
			features.ReadUser: {
				"endpoint": "/users/{username}",
				"methods":  methods,
				"headers":  map[string]any{"X-Api-Key": "secret"},
			},
		},
	}
}

func TestUserLookup(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotKey = r.Header.Get("X-Api-Key")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"name":   "Ada Lovelace",
			"age":    36,
			"active": true,
			"bio":    "",
			"tags":   []string{"math"},
		})
	}))
	defer srv.Close()

	f := newFixture(t, userSeed(srv.URL, "GET"), srv.Client())

	res, rec := f.run(t, dmCommand("user", stringOpt("username", "ada l&b")))
	require.Equal(t, command.StateCompleted, res.State, "err: %v", res.Err)
	assert.Equal(t, "/users/ada%20l%26b", gotPath)
	assert.Equal(t, "secret", gotKey)

	data := rec.last(t).Data
	require.Len(t, data.Embeds, 1)
	embed := data.Embeds[0]
	assert.Equal(t, "ada l&b", embed.Title)

	var names, values []string
	for _, field := range embed.Fields {
		names = append(names, field.Name)
		values = append(values, field.Value)
	}
	assert.Equal(t, []string{"active", "age", "bio", "name"}, names, "nested values are skipped")
	assert.Equal(t, []string{"true", "36", "-", "Ada Lovelace"}, values)
}

func TestUserNotFound(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newFixture(t, userSeed(srv.URL), srv.Client())

	res, rec := f.run(t, dmCommand("user", stringOpt("username", "ghost")))
	assert.Equal(t, command.StateCompleted, res.State)
	assert.Equal(t, 1, calls, "404 is not retried")
	assert.Contains(t, rec.last(t).Data.Content, "`ghost` was not found")
}

func TestUserServerErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	f := newFixture(t, userSeed(srv.URL), srv.Client())

	res, rec := f.run(t, dmCommand("user", stringOpt("username", "x")))
	assert.Equal(t, command.StateFailed, res.State)
	assert.Error(t, res.Err)
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, command.MsgExecutionError, rec.last(t).Data.Content)
}

func TestUserNotConfigured(t *testing.T) {
	f := newFixture(t, features.State{Enabled: []features.Feature{features.ReadUser}}, nil)

	res, rec := f.run(t, dmCommand("user", stringOpt("username", "x")))
	assert.Equal(t, command.StateRejectedCustom, res.State)
	assert.Contains(t, rec.last(t).Data.Content, "User lookup is not configured.")
}

func TestUserRejectsMethodsWithoutGet(t *testing.T) {
	f := newFixture(t, userSeed("http://127.0.0.1:1", "POST"), nil)

	res, _ := f.run(t, dmCommand("user", stringOpt("username", "x")))
	assert.Equal(t, command.StateRejectedCustom, res.State)
}

func TestTemplate(t *testing.T) {
	assert.Equal(t, "/users/a%20b%26c", template("/users/{username}", map[string]string{"username": "a b&c"}))
	assert.Equal(t, "/x/{other}", template("/x/{other}", map[string]string{"username": "y"}))
	assert.Equal(t, "%2F..%2F", escapeComponent("/../"))
}

func TestAllowsGet(t *testing.T) {
	assert.True(t, allowsGet(nil))
	assert.True(t, allowsGet([]string{"post", "get"}))
	assert.False(t, allowsGet([]string{"POST"}))
}

func TestEmbedFieldsCap(t *testing.T) {
	body := map[string]any{}
	for _, k := range strings.Split("a b c d e f g h i j k l", " ") {
		body[k] = k
	}
	fields := embedFields(body)
	require.Len(t, fields, maxUserFields)
	assert.Equal(t, "a", fields[0].Name)
	assert.Equal(t, "j", fields[9].Name)
}
