// cmd/discord/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/keshon/commandgate/internal/audit"
	"github.com/keshon/commandgate/internal/command"
	"github.com/keshon/commandgate/internal/commands"
	"github.com/keshon/commandgate/internal/config"
	"github.com/keshon/commandgate/internal/discord"
	"github.com/keshon/commandgate/internal/features"
	"github.com/keshon/commandgate/internal/logging"
	"github.com/keshon/commandgate/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return loginHint(err)
	}

	log, logCloser, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()
	log.Info().Msg("Starting bot...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fileCfg, err := config.LoadFile(cfg.ConfigFile)
	if err != nil {
		return err
	}

	storeOpts := storage.DefaultOptions(cfg.StoragePath)
	storeOpts.Logger = log
	store, err := storage.New(storeOpts)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	manager, err := features.NewManager(store, fileCfg.FeatureSeed(), log)
	if err != nil {
		return err
	}

	auditLog, err := openAudit(cfg.AuditDBPath, log)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	registry := command.NewRegistry(log)
	if err := registry.RegisterBatch(commands.Definitions(commands.Deps{
		Features:   manager,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		Logger:     log,
	})...); err != nil {
		log.Error().Err(err).Msg("Some commands failed to register")
	}
	log.Info().Int("commands", registry.Len()).Msg("Commands registered")

	dispatcher := command.NewDispatcher(registry, manager,
		command.WithLogger(log),
		command.WithAutocompleteTimeout(cfg.AutocompleteTimeout),
		command.WithObserver(audit.Observer(auditLog, log)),
	)

	bot, err := discord.NewBot(discord.Options{
		Token:        cfg.DiscordToken,
		GuildID:      cfg.GuildID,
		Publish:      cfg.PublishCommands,
		ForcePublish: cfg.ForcePublish,
	}, registry, dispatcher, store, log)
	if err != nil {
		return loginHint(err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- bot.Run(ctx)
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("Received signal, shutting down...")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil {
			return loginHint(err)
		}
	}

	log.Info().Msg("Discord bot exited cleanly")
	return nil
}

// openAudit opens the SQLite audit log, falling back to a no-op logger when
// no path is configured.
func openAudit(path string, log zerolog.Logger) (audit.Logger, error) {
	if path == "" {
		log.Info().Msg("Audit log disabled")
		return audit.NopLogger{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	l, err := audit.NewSQLiteLogger(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return l, nil
}

// loginHint turns token failures into actionable messages.
func loginHint(err error) error {
	switch {
	case errors.Is(err, discord.ErrTokenMissing), errors.Is(err, config.ErrMissingToken):
		return errors.New("a bot token was not provided, make sure the DISCORD_TOKEN environment variable is set")
	case errors.Is(err, discord.ErrTokenInvalid):
		return errors.New("invalid bot token provided, check the DISCORD_TOKEN environment variable and try again")
	}
	return err
}
