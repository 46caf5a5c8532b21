// Command build-readme regenerates README.md from README.md.tmpl and the
// metadata of every shipped command.
package main

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/keshon/commandgate/internal/command"
	"github.com/keshon/commandgate/internal/commands"
	"github.com/keshon/commandgate/internal/docs"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	reg := command.NewRegistry(log)
	if err := reg.RegisterBatch(commands.Definitions(commands.Deps{Logger: log})...); err != nil {
		log.Fatal().Err(err).Msg("Failed to register commands")
	}
	if err := docs.UpdateReadme(reg, "README.md.tmpl", "README.md"); err != nil {
		log.Fatal().Err(err).Msg("Failed to update README.md")
	}
	log.Info().Int("commands", reg.Len()).Msg("README.md updated with current commands")
}
