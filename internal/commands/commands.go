// Package commands holds the bot's concrete slash commands.
package commands

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/commandgate/internal/command"
	"github.com/keshon/commandgate/internal/features"
)

const embedColor = 0xb01e66

// Deps are the collaborators commands are built with.
type Deps struct {
	Features   *features.Manager
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Definitions returns every command the bot ships, in publish order.
func Definitions(deps Deps) []command.Definition {
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	return []command.Definition{
		pingDefinition(),
		featuresDefinition(deps),
		featureDefinition(deps),
		userDefinition(deps),
	}
}

// template replaces every {key} in s with the URL-escaped value of vars[key].
func template(s string, vars map[string]string) string {
	for k, v := range vars {
		s = strings.ReplaceAll(s, "{"+k+"}", escapeComponent(v))
	}
	return s
}

// escapeComponent escapes v for use anywhere in a URL; spaces become %20.
func escapeComponent(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// stringOption returns the value of a string option, or "" when it is absent.
func stringOption(in *command.Interaction, name string) string {
	if o := in.Option(name); o != nil && o.Type == discordgo.ApplicationCommandOptionString {
		return o.StringValue()
	}
	return ""
}
