// Command cli inspects and edits the bot's persisted state without connecting to Discord.
//
//	cli schemas                  print the slash command schemas as JSON
//	cli features                 list features and whether they are enabled
//	cli enable <feature>         enable a feature
//	cli disable <feature>        disable a feature
//	cli audit [-command name] [-limit n]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/keshon/commandgate/internal/audit"
	"github.com/keshon/commandgate/internal/command"
	"github.com/keshon/commandgate/internal/commands"
	"github.com/keshon/commandgate/internal/config"
	"github.com/keshon/commandgate/internal/features"
	"github.com/keshon/commandgate/internal/storage"
)

// cliConfig shares its variables with the bot but never needs the token.
type cliConfig struct {
	ConfigFile  string `env:"CONFIG_FILE" envDefault:"config.yaml"`
	StoragePath string `env:"STORAGE_PATH" envDefault:"data/datastore.json"`
	AuditDBPath string `env:"AUDIT_DB_PATH" envDefault:"data/audit.db"`
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	_ = godotenv.Load()
	cfg, err := env.ParseAs[cliConfig]()
	if err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	if len(args) == 0 {
		return errors.New("usage: cli <schemas|features|enable|disable|audit>")
	}

	switch args[0] {
	case "schemas":
		return printSchemas(out)
	case "features":
		return withManager(cfg, func(m *features.Manager) error {
			return printFeatures(out, m)
		})
	case "enable", "disable":
		if len(args) != 2 {
			return fmt.Errorf("usage: cli %s <feature>", args[0])
		}
		f := features.Feature(args[1])
		if !features.IsKnown(f) {
			return fmt.Errorf("unknown feature %q, known features: %s", f, features.Join(features.Known))
		}
		return withManager(cfg, func(m *features.Manager) error {
			toggle := m.EnableFeature
			if args[0] == "disable" {
				toggle = m.DisableFeature
			}
			if err := toggle(f); err != nil {
				return err
			}
			return printFeatures(out, m)
		})
	case "audit":
		return printAudit(cfg, args[1:], out)
	}
	return fmt.Errorf("unknown subcommand %q", args[0])
}

func printSchemas(out io.Writer) error {
	reg := command.NewRegistry(zerolog.Nop())
	if err := reg.RegisterBatch(commands.Definitions(commands.Deps{Logger: zerolog.Nop()})...); err != nil {
		return err
	}
	schemas, err := reg.BuildSchemas()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(schemas)
}

func withManager(cfg cliConfig, fn func(*features.Manager) error) error {
	file, err := config.LoadFile(cfg.ConfigFile)
	if err != nil {
		return err
	}
	opts := storage.DefaultOptions(cfg.StoragePath)
	opts.AutoSaveInterval = 0
	store, err := storage.New(opts)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	m, err := features.NewManager(store, file.FeatureSeed(), zerolog.Nop())
	if err != nil {
		return err
	}
	return fn(m)
}

func printFeatures(out io.Writer, m *features.Manager) error {
	snap := m.Snapshot()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, f := range features.Known {
		state := "disabled"
		if snap.IsFeatureEnabled(f) {
			state = "enabled"
		}
		fmt.Fprintf(w, "%s\t%s\n", f, state)
	}
	return w.Flush()
}

func printAudit(cfg cliConfig, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(out)
	name := fs.String("command", "", "only show this command")
	limit := fs.Int("limit", 20, "number of entries")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(cfg.AuditDBPath); err != nil {
		return fmt.Errorf("audit log %s: %w", cfg.AuditDBPath, err)
	}
	l, err := audit.NewSQLiteLogger(cfg.AuditDBPath)
	if err != nil {
		return err
	}
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entries, err := l.Recent(ctx, *name, *limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCOMMAND\tSTATE\tGUILD\tUSER\tDURATION\tERROR")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t/%s\t%s\t%s\t%s\t%dms\t%s\n",
			e.Timestamp.Format(time.DateTime), e.Command, e.State, orDash(e.GuildID), e.UserID, e.DurationMs, orDash(e.Error))
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
