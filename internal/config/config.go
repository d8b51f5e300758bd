package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (CONTRIMAP_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	// Overlay environment variables: CONTRIMAP_PORT -> port,
	// CONTRIMAP_QUEUE_BACKEND -> queue.backend, etc.
	if err := k.Load(env.Provider("CONTRIMAP_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CONTRIMAP_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// API credentials are conventionally passed as bare env vars rather
	// than through the config file.
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")
	}

	return cfg, nil
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderGroq:   true,
	ProviderOpenAI: true,
}

// validBackends is the set of recognized queue backend values.
var validBackends = map[QueueBackend]bool{
	QueueMemory: true,
	QueueKafka:  true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of groq, openai", c.Provider)
	}

	if c.Model == "" {
		return fmt.Errorf("model is required")
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Queue.Backend != "" && !validBackends[c.Queue.Backend] {
		return fmt.Errorf("invalid queue backend %q: must be one of memory, kafka", c.Queue.Backend)
	}
	if c.Queue.Backend == QueueKafka && c.Queue.Brokers == "" {
		return fmt.Errorf("queue.brokers is required for the kafka backend")
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue.max_attempts must be at least 1")
	}

	return nil
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderGroq:
		return "GROQ_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}
