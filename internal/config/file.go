package config

import (
	"fmt"
	"maps"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/keshon/commandgate/internal/features"
)

// File is the bot's YAML configuration. It seeds the feature store on first run.
type File struct {
	API struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"api"`

	Features []features.Feature `yaml:"features"`

	FeatureConfig map[features.Feature]map[string]any `yaml:"feature_config"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadFile reads and parses the YAML file at path, expanding ${VAR} references.
// A missing file yields an empty configuration.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &File{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile parses YAML configuration bytes.
func ParseFile(data []byte) (*File, error) {
	expanded := envVarPattern.ReplaceAllStringFunc(string(data), func(m string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(m)[1])
	})

	var f File
	if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &f, nil
}

// FeatureSeed converts the file into the initial feature state.
func (f *File) FeatureSeed() features.State {
	state := features.State{
		Enabled: append([]features.Feature(nil), f.Features...),
		Config:  make(map[features.Feature]map[string]any, len(f.FeatureConfig)+1),
	}
	for k, v := range f.FeatureConfig {
		state.Config[k] = maps.Clone(v)
	}
	if f.API.BaseURL != "" {
		api := maps.Clone(state.Config[features.APISettings])
		if api == nil {
			api = map[string]any{}
		}
		api["base_url"] = f.API.BaseURL
		state.Config[features.APISettings] = api
	}
	return state
}
