package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/commandgate/pkg/retrylimit"
)

// CommandOverwriter replaces an application's command set. *discordgo.Session satisfies it.
type CommandOverwriter interface {
	ApplicationCommandBulkOverwrite(appID, guildID string, cmds []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// HashStore remembers the hash of the last command set published to a scope.
// The empty scope is the global command set.
type HashStore interface {
	CommandSetHash(scope string) (string, error)
	SetCommandSetHash(scope, hash string) error
}

// PublishResult describes one Publish call.
type PublishResult struct {
	GuildID string // empty for global
	Hash    string
	Count   int  // commands Discord acknowledged
	Skipped bool // set unchanged since the last publish
}

// Publisher pushes slash command schemas to Discord with a single bulk
// overwrite per scope, skipping the call when the set is unchanged.
type Publisher struct {
	api     CommandOverwriter
	hashes  HashStore
	limiter *retrylimit.AdaptiveLimiter
	retry   retrylimit.RetryConfig
	log     zerolog.Logger
}

// NewPublisher creates a publisher. hashes may be nil to always publish.
func NewPublisher(api CommandOverwriter, hashes HashStore, log zerolog.Logger) *Publisher {
	log = log.With().Str("component", "publisher").Logger()
	retry := retrylimit.DefaultRetryConfig()
	retry.Logger = log
	return &Publisher{
		api:     api,
		hashes:  hashes,
		limiter: retrylimit.NewAdaptiveLimiter(2, 1, 5, 1, 0.5),
		retry:   retry,
		log:     log,
	}
}

// Publish overwrites the command set of guildID (global when empty) with
// schemas. Unless force is set, nothing is sent when the stored hash matches.
func (p *Publisher) Publish(ctx context.Context, appID string, schemas []*discordgo.ApplicationCommand, guildID string, force bool) (PublishResult, error) {
	res := PublishResult{GuildID: guildID}
	log := p.log.With().Str("scope", scopeName(guildID)).Logger()

	if appID == "" {
		return res, fmt.Errorf("publish commands: application id is empty")
	}

	hash, err := hashCommandSet(schemas)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to hash command set, publishing unconditionally")
	}
	res.Hash = hash

	if !force && hash != "" && p.hashes != nil {
		prev, err := p.hashes.CommandSetHash(guildID)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read stored command hash")
		} else if prev == res.Hash {
			res.Skipped = true
			log.Info().Int("commands", len(schemas)).Msg("Command set unchanged, skipping publish")
			return res, nil
		}
	}

	// Discord treats a null body differently from an empty list.
	if schemas == nil {
		schemas = []*discordgo.ApplicationCommand{}
	}

	var created []*discordgo.ApplicationCommand
	err = retrylimit.WithRetryConfig(ctx, func() error {
		var err error
		created, err = p.api.ApplicationCommandBulkOverwrite(appID, guildID, schemas, discordgo.WithContext(ctx))
		return err
	}, p.limiter, p.retry)
	if err != nil {
		return res, fmt.Errorf("publish commands to %s: %w", scopeName(guildID), err)
	}
	res.Count = len(created)

	if hash != "" && p.hashes != nil {
		if err := p.hashes.SetCommandSetHash(guildID, res.Hash); err != nil {
			log.Warn().Err(err).Msg("Failed to store command hash")
		}
	}
	log.Info().Int("commands", res.Count).Msg("Published slash commands")
	return res, nil
}

func scopeName(guildID string) string {
	if guildID == "" {
		return "global"
	}
	return "guild " + guildID
}
