package command

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// RegisteredCommand is a handler instance together with its metadata.
type RegisteredCommand struct {
	Handler  Command
	Metadata Metadata
}

// Registry stores commands by name and remembers registration order, which is
// also the order schemas are published in.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]RegisteredCommand
	order    []string
	log      zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		commands: make(map[string]RegisteredCommand),
		log:      log.With().Str("component", "registry").Logger(),
	}
}

// Register builds the handler for def and stores it under its name.
// Registering a name twice replaces the earlier entry in place.
func (r *Registry) Register(def Definition) error {
	return r.register(def, -1)
}

// RegisterBatch registers every definition in order. Failures do not stop the
// batch: they are collected and returned together, successful entries stay.
func (r *Registry) RegisterBatch(defs ...Definition) error {
	var errs []error
	for i, def := range defs {
		if err := r.register(def, i); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) register(def Definition, index int) error {
	if def.Metadata == nil || def.Metadata.Name == "" || def.New == nil {
		return &MissingMetadataError{Index: index}
	}

	handler := def.New()
	if handler == nil {
		return fmt.Errorf("register %q: %w", def.Metadata.Name, ErrNilHandler)
	}

	meta := def.Metadata.clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[meta.Name]; exists {
		r.log.Warn().Str("command", meta.Name).Msg("Command registered twice, replacing previous definition")
	} else {
		r.order = append(r.order, meta.Name)
	}
	r.commands[meta.Name] = RegisteredCommand{Handler: handler, Metadata: meta}

	r.log.Debug().Str("command", meta.Name).Msg("Registered command")
	return nil
}

// Lookup returns the command registered under name.
func (r *Registry) Lookup(name string) (RegisteredCommand, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[name]
	return c, ok
}

// All returns every registered command in registration order.
func (r *Registry) All() []RegisteredCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]RegisteredCommand, 0, len(r.order))
	for _, name := range r.order {
		list = append(list, r.commands[name])
	}
	return list
}

// Len returns the number of distinct command names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// BuildSchemas converts every registered command into its slash command schema.
func (r *Registry) BuildSchemas() ([]*discordgo.ApplicationCommand, error) {
	all := r.All()
	schemas := make([]*discordgo.ApplicationCommand, 0, len(all))
	for _, c := range all {
		s, err := BuildSchema(c.Metadata)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}
