package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingToken is returned by Load when DISCORD_TOKEN is unset or empty.
var ErrMissingToken = errors.New("DISCORD_TOKEN is not set")

// Config is the process configuration read from the environment.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required,notEmpty"`
	// GuildID scopes command publication to one guild; empty publishes globally.
	GuildID string `env:"DISCORD_GUILD_ID"`

	ConfigFile  string `env:"CONFIG_FILE" envDefault:"config.yaml"`
	StoragePath string `env:"STORAGE_PATH" envDefault:"data/datastore.json"`
	AuditDBPath string `env:"AUDIT_DB_PATH" envDefault:"data/audit.db"`

	PublishCommands bool `env:"PUBLISH_COMMANDS" envDefault:"true"`
	ForcePublish    bool `env:"FORCE_PUBLISH" envDefault:"false"`

	AutocompleteTimeout time.Duration `env:"AUTOCOMPLETE_TIMEOUT" envDefault:"2500ms"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
	LogFile   string `env:"LOG_FILE"`
}

// Load reads .env files (if present) and parses the environment into a Config.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		if missingToken(err) {
			return nil, fmt.Errorf("%w: %w", ErrMissingToken, err)
		}
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return &cfg, nil
}

func missingToken(err error) bool {
	var notSet env.VarIsNotSetError
	if errors.As(err, &notSet) && notSet.Key == "DISCORD_TOKEN" {
		return true
	}
	var empty env.EmptyVarError
	return errors.As(err, &empty) && empty.Key == "DISCORD_TOKEN"
}
