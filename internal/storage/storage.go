// Package storage persists the bot's runtime state (feature flags and the
// hashes of published command sets) in a JSON datastore.
package storage

import (
	"fmt"

	"github.com/keshon/commandgate/internal/features"
)

const (
	featuresKey       = "features"
	commandsKeyPrefix = "commands:"
)

// Storage is the typed view over the datastore.
type Storage struct {
	ds *DataStore
}

// New opens the datastore at opts.FilePath.
func New(opts Options) (*Storage, error) {
	ds, err := Open(opts)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

// Close flushes and closes the underlying datastore.
func (s *Storage) Close() error {
	return s.ds.Close()
}

// LoadFeatures returns the saved feature state, or nil if none was saved.
func (s *Storage) LoadFeatures() (*features.State, error) {
	var state features.State
	ok, err := s.ds.Get(featuresKey, &state)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// SaveFeatures stores the feature state and flushes it to disk.
func (s *Storage) SaveFeatures(state *features.State) error {
	if err := s.ds.Put(featuresKey, state); err != nil {
		return err
	}
	return s.ds.Flush()
}

// CommandSetHash returns the hash of the command set last published to scope.
func (s *Storage) CommandSetHash(scope string) (string, error) {
	var hash string
	if _, err := s.ds.Get(commandsKey(scope), &hash); err != nil {
		return "", err
	}
	return hash, nil
}

// SetCommandSetHash records the hash of the command set just published to scope.
func (s *Storage) SetCommandSetHash(scope, hash string) error {
	if err := s.ds.Put(commandsKey(scope), hash); err != nil {
		return fmt.Errorf("store command hash: %w", err)
	}
	return nil
}

// commandsKey maps the empty (global) scope to its own key.
func commandsKey(scope string) string {
	if scope == "" {
		return commandsKeyPrefix + "global"
	}
	return commandsKeyPrefix + scope
}
