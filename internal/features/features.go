// Package features owns the bot's feature flags: which features are enabled,
// and the per-feature configuration blobs that go with them.
package features

import (
	"slices"
	"sort"
	"strings"
)

// Feature identifies a toggleable capability, e.g. "read:user".
type Feature string

const (
	ReadUser     Feature = "read:user"
	ReadConfig   Feature = "read:config"
	UpdateConfig Feature = "update:config"
)

// APISettings is the configuration key holding shared API settings such as
// base_url. It is not a toggleable feature.
const APISettings Feature = "api"

// Known lists every feature the bot understands, in display order.
var Known = []Feature{ReadUser, ReadConfig, UpdateConfig}

// IsKnown reports whether f is one of Known.
func IsKnown(f Feature) bool {
	return slices.Contains(Known, f)
}

func (f Feature) String() string { return string(f) }

// Join renders features as a comma separated list.
func Join(fs []Feature) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

// Set is an immutable snapshot of the enabled features.
// The zero value has nothing enabled.
type Set struct {
	enabled map[Feature]struct{}
}

// NewSet builds a snapshot with the given features enabled.
func NewSet(enabled ...Feature) Set {
	m := make(map[Feature]struct{}, len(enabled))
	for _, f := range enabled {
		m[f] = struct{}{}
	}
	return Set{enabled: m}
}

// IsFeatureEnabled reports whether f is enabled in this snapshot.
func (s Set) IsFeatureEnabled(f Feature) bool {
	_, ok := s.enabled[f]
	return ok
}

// Disabled returns the subset of required that is not enabled, preserving order.
func (s Set) Disabled(required []Feature) []Feature {
	var out []Feature
	for _, f := range required {
		if !s.IsFeatureEnabled(f) {
			out = append(out, f)
		}
	}
	return out
}

// List returns the enabled features sorted by name.
func (s Set) List() []Feature {
	out := make([]Feature, 0, len(s.enabled))
	for f := range s.enabled {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s Set) with(f Feature) Set {
	m := make(map[Feature]struct{}, len(s.enabled)+1)
	for k := range s.enabled {
		m[k] = struct{}{}
	}
	m[f] = struct{}{}
	return Set{enabled: m}
}

func (s Set) without(f Feature) Set {
	m := make(map[Feature]struct{}, len(s.enabled))
	for k := range s.enabled {
		if k != f {
			m[k] = struct{}{}
		}
	}
	return Set{enabled: m}
}
