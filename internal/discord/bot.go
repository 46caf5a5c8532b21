// Package discord connects the command core to a Discord gateway session:
// it routes interactions into the dispatcher and publishes slash command schemas.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/keshon/commandgate/internal/command"
	"github.com/keshon/commandgate/pkg/jobmgr"
)

// Login failures reported by Run.
var (
	ErrTokenMissing = errors.New("bot token not provided")
	ErrTokenInvalid = errors.New("invalid bot token")
)

// Options configures the bot.
type Options struct {
	Token string
	// GuildID publishes commands to one guild instead of globally.
	GuildID string
	// Publish pushes the schemas on ready. ForcePublish ignores the stored hash.
	Publish      bool
	ForcePublish bool
}

// Bot owns the gateway session.
type Bot struct {
	opts      Options
	session   *discordgo.Session
	registry  *command.Registry
	router    *Router
	publisher *Publisher
	jobs      *jobmgr.Manager
	log       zerolog.Logger

	mu  sync.Mutex
	ctx context.Context
}

// NewBot creates the session; nothing connects until Run.
func NewBot(opts Options, reg *command.Registry, d Dispatcher, hashes HashStore, log zerolog.Logger) (*Bot, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, ErrTokenMissing
	}
	s, err := discordgo.New("Bot " + opts.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds

	log = log.With().Str("component", "bot").Logger()
	b := &Bot{
		opts:      opts,
		session:   s,
		registry:  reg,
		router:    NewRouter(d, log),
		publisher: NewPublisher(s, hashes, log),
		jobs:      jobmgr.NewManager(log),
		log:       log,
		ctx:       context.Background(),
	}
	s.AddHandler(b.onReady)
	s.AddHandler(b.onInteractionCreate)
	return b, nil
}

// Run verifies the token, opens the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	me, err := b.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return classifyLoginError(err)
	}
	b.log.Info().Str("user", me.Username).Msg("Token verified")

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", classifyLoginError(err))
	}
	defer b.session.Close()
	defer b.jobs.StopAll()

	<-ctx.Done()
	b.log.Info().Str("jobs", b.jobs.Status()).Msg("Shutdown signal received, closing session")
	return nil
}

func (b *Bot) context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("Discord bot is running")

	if !b.opts.Publish {
		b.log.Info().Msg("Publishing slash commands skipped")
		return
	}
	// Ready fires again on reconnect; a publish still in flight is left alone.
	id := appID(r)
	err := b.jobs.StartAsync(b.context(), "publish:"+scopeName(b.opts.GuildID), func(ctx context.Context) error {
		return b.publish(ctx, id)
	})
	if errors.Is(err, jobmgr.ErrAlreadyRunning) {
		b.log.Info().Msg("Command publish already in progress")
	}
}

func (b *Bot) publish(ctx context.Context, appID string) error {
	schemas, err := b.registry.BuildSchemas()
	if err != nil {
		return fmt.Errorf("build slash command schemas: %w", err)
	}
	_, err = b.publisher.Publish(ctx, appID, schemas, b.opts.GuildID, b.opts.ForcePublish)
	return err
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.router.Route(b.context(), s, i.Interaction)
}

// appID prefers the application object sent with Ready; a bot's user ID is
// the same value.
func appID(r *discordgo.Ready) string {
	if r.Application != nil && r.Application.ID != "" {
		return r.Application.ID
	}
	if r.User != nil {
		return r.User.ID
	}
	return ""
}

// classifyLoginError maps authentication failures to ErrTokenInvalid.
func classifyLoginError(err error) error {
	if errors.Is(err, discordgo.ErrUnauthorized) {
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	return err
}
