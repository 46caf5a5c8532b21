package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/commandgate/internal/command"
	"github.com/keshon/commandgate/internal/features"
	"github.com/keshon/commandgate/pkg/retrylimit"
)

const (
	userLookupTimeout = 2 * time.Second
	maxUserFields     = 10
	maxUserBody       = 1 << 20
)

// userCommand looks a user up through the HTTP endpoint configured for read:user.
type userCommand struct {
	command.Base
	manager *features.Manager
	client  *http.Client
	limiter *retrylimit.AdaptiveLimiter
	log     zerolog.Logger
}

func userDefinition(deps Deps) command.Definition {
	return command.Definition{
		Metadata: &command.Metadata{
			Name:             "user",
			Description:      "Look up a user",
			RequiredFeatures: []features.Feature{features.ReadUser},
			DMPermission:     true,
			Options: []command.Option{
				{
					Name:        "username",
					Description: "Name of the user to look up",
					Type:        command.OptionString,
					Required:    true,
					MinLength:   command.Ptr(1),
					MaxLength:   command.Ptr(64),
				},
			},
		},
		New: func() command.Command {
			return &userCommand{
				manager: deps.Features,
				client:  deps.HTTPClient,
				limiter: retrylimit.NewAdaptiveLimiter(5, 1, 10, 1, 0.5),
				log:     deps.Logger.With().Str("command", "user").Logger(),
			}
		},
	}
}

// Validate makes sure the lookup endpoint is configured and allows GET.
func (c *userCommand) Validate(_ context.Context, ctx *command.Context) (bool, error) {
	cfg, err := c.config()
	if err != nil {
		ctx.Logger.Warn().Err(err).Msg("User lookup is not configured")
		return false, nil
	}
	return cfg.Endpoint != "" && allowsGet(cfg.Methods), nil
}

func (c *userCommand) OnValidationFailure(_ context.Context, ctx *command.Context, reason string) error {
	if reason == command.ReasonValidation {
		reason = "User lookup is not configured."
	}
	return ctx.Interaction.ReplyEphemeral("❌ " + reason)
}

func (c *userCommand) Execute(ctx context.Context, cmdCtx *command.Context) error {
	username := stringOption(cmdCtx.Interaction, "username")
	cfg, err := c.config()
	if err != nil {
		return err
	}
	target := template(c.baseURL()+cfg.Endpoint, map[string]string{"username": username})

	ctx, cancel := context.WithTimeout(ctx, userLookupTimeout)
	defer cancel()

	retry := retrylimit.DefaultRetryConfig()
	retry.MaxAttempts = 3
	retry.InitialDelay = 200 * time.Millisecond
	retry.RateLimitDelay = 300 * time.Millisecond
	retry.Logger = c.log

	var body map[string]any
	err = retrylimit.WithRetryConfig(ctx, func() error {
		var err error
		body, err = c.fetch(ctx, target, cfg.Headers)
		return err
	}, c.limiter, retry)

	if retrylimit.StatusCode(err) == http.StatusNotFound {
		return cmdCtx.Interaction.ReplyEphemeral(fmt.Sprintf("❌ User `%s` was not found.", username))
	}
	if err != nil {
		return fmt.Errorf("look up user %q: %w", username, err)
	}

	return cmdCtx.Interaction.ReplyEmbedEphemeral(&discordgo.MessageEmbed{
		Title:  username,
		Color:  embedColor,
		Fields: embedFields(body),
	})
}

func (c *userCommand) fetch(ctx context.Context, target string, headers map[string]string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, retrylimit.Fatal(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxUserBody))
		return nil, &retrylimit.StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxUserBody)).Decode(&body); err != nil {
		return nil, retrylimit.Fatal(fmt.Errorf("decode response: %w", err))
	}
	return body, nil
}

func (c *userCommand) config() (features.ReadUserConfig, error) {
	var cfg features.ReadUserConfig
	if c.manager == nil {
		return cfg, errors.New("feature manager not set")
	}
	err := c.manager.DecodeConfig(features.ReadUser, &cfg)
	return cfg, err
}

func (c *userCommand) baseURL() string {
	api, _ := c.manager.FeatureConfig(features.APISettings)
	base, _ := api["base_url"].(string)
	return strings.TrimRight(base, "/")
}

func allowsGet(methods []string) bool {
	if len(methods) == 0 {
		return true
	}
	return slices.ContainsFunc(methods, func(m string) bool {
		return strings.EqualFold(m, http.MethodGet)
	})
}

// embedFields renders the scalar top-level fields of body, sorted by key.
func embedFields(body map[string]any) []*discordgo.MessageEmbedField {
	keys := make([]string, 0, len(body))
	for k, v := range body {
		switch v.(type) {
		case string, float64, bool:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var fields []*discordgo.MessageEmbedField
	for _, k := range keys {
		if len(fields) == maxUserFields {
			break
		}
		value := fmt.Sprint(body[k])
		if value == "" {
			value = "-"
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: k, Value: value, Inline: true})
	}
	return fields
}
