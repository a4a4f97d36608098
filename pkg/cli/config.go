package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/sabio/datlas-chat-plugin/pkg/llm"
	"github.com/sabio/datlas-chat-plugin/pkg/provider"
	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

const (
	envPrefix      = "DATLAS_"
	DefaultTimeout = 2 * time.Minute
)

// Config holds the CLI settings
type Config struct {
	Mode     string        `koanf:"mode"`
	Provider string        `koanf:"provider"`
	APIKey   string        `koanf:"api_key"`
	BaseURL  string        `koanf:"base_url"`
	Model    string        `koanf:"model"`
	MaxRows  int           `koanf:"max_rows"`
	Timeout  time.Duration `koanf:"timeout"`
	Verbose  bool          `koanf:"verbose"`
}

// findConfigFile returns the explicit path or datlas.yaml / datlas.yml in the
// working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"datlas.yaml", "datlas.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// LoadConfig loads configuration from defaults, file, environment variables
// and flags. Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"mode":     string(provider.KindHeuristic),
		"provider": llm.ProviderOpenAI,
		"max_rows": table.DefaultMaxRows,
		"timeout":  DefaultTimeout,
		"verbose":  false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(cfgFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// DATLAS_MAX_ROWS -> max_rows
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = providerKey(cfg.Provider)
	}

	return &cfg, nil
}

// providerKey falls back to the provider's conventional environment variable
func providerKey(name string) string {
	switch name {
	case llm.ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

// Validate checks the settings needed by the selected mode
func (c *Config) Validate() error {
	switch provider.Kind(c.Mode) {
	case provider.KindHeuristic:
	case provider.KindRemote:
		if c.APIKey == "" {
			return fmt.Errorf("remote mode needs an API key (set %sAPI_KEY or --api-key)", envPrefix)
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}

	switch c.Provider {
	case llm.ProviderOpenAI, llm.ProviderGemini:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}

	if c.MaxRows < 0 {
		return fmt.Errorf("max_rows must not be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// LLMConfig returns the client configuration for remote mode
func (c *Config) LLMConfig() llm.Config {
	return llm.Config{
		Provider:  c.Provider,
		APIKey:    c.APIKey,
		BaseURL:   c.BaseURL,
		ChatModel: c.Model,
		JSONModel: c.Model,
	}
}
