package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/sabio/datlas-chat-plugin/pkg/llm"
	"github.com/sabio/datlas-chat-plugin/pkg/provider"
	"github.com/sabio/datlas-chat-plugin/pkg/table"
)

// Secret keys in DecryptedSecureJSONData
const (
	secretOpenAIKey = "openai_api_key"
	secretGeminiKey = "gemini_api_key"
)

// Defaults for unset settings
const (
	DefaultRateLimitRPS   = 2.0
	DefaultRateLimitBurst = 5
)

// PluginSettings holds the plugin configuration
type PluginSettings struct {
	LLMProvider           string  `json:"llm_provider"`
	OpenAIURL             string  `json:"openai_url"`
	ChatModel             string  `json:"chat_model"`
	ChartModel            string  `json:"chart_model"`
	ChartMode             string  `json:"chart_mode"`
	MaxRows               int     `json:"max_rows"`
	RateLimitRPS          float64 `json:"rate_limit_rps"`
	RateLimitBurst        int     `json:"rate_limit_burst"`
	InlineAttachmentBytes int     `json:"inline_attachment_bytes"`
	FetchMaxBytes         int     `json:"fetch_max_bytes"`

	// Keys may be set in plain JSON for local development; secure JSON wins
	OpenAIAPIKey string `json:"openai_api_key"`
	GeminiAPIKey string `json:"gemini_api_key"`
}

// LoadSettings loads plugin settings from JSON and fills in defaults
func LoadSettings(jsonData []byte) (*PluginSettings, error) {
	settings := &PluginSettings{}

	if len(jsonData) > 0 {
		if err := json.Unmarshal(jsonData, settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}

	if settings.LLMProvider == "" {
		settings.LLMProvider = llm.ProviderOpenAI
	}
	if settings.ChartMode == "" {
		settings.ChartMode = string(provider.KindRemote)
	}
	if settings.MaxRows == 0 {
		settings.MaxRows = table.DefaultMaxRows
	}
	if settings.RateLimitRPS == 0 {
		settings.RateLimitRPS = DefaultRateLimitRPS
	}
	if settings.RateLimitBurst == 0 {
		settings.RateLimitBurst = DefaultRateLimitBurst
	}
	if settings.FetchMaxBytes == 0 {
		settings.FetchMaxBytes = table.DefaultFetchMaxBytes
	}

	return settings, nil
}

// ApplySecrets overrides keys with decrypted secure values
func (s *PluginSettings) ApplySecrets(secrets map[string]string) {
	if v := secrets[secretOpenAIKey]; v != "" {
		s.OpenAIAPIKey = v
	}
	if v := secrets[secretGeminiKey]; v != "" {
		s.GeminiAPIKey = v
	}
}

// Validate checks if required settings are present
func (s *PluginSettings) Validate() error {
	switch s.LLMProvider {
	case llm.ProviderOpenAI:
		if s.OpenAIAPIKey == "" {
			return fmt.Errorf("OpenAI API key is required")
		}
	case llm.ProviderGemini:
		if s.GeminiAPIKey == "" {
			return fmt.Errorf("Gemini API key is required")
		}
	default:
		return fmt.Errorf("unknown llm_provider %q", s.LLMProvider)
	}

	switch provider.Kind(s.ChartMode) {
	case provider.KindRemote, provider.KindHeuristic:
	default:
		return fmt.Errorf("unknown chart_mode %q", s.ChartMode)
	}

	if s.MaxRows < 0 {
		return fmt.Errorf("max_rows must not be negative")
	}
	if s.FetchMaxBytes < 0 {
		return fmt.Errorf("fetch_max_bytes must not be negative")
	}

	return nil
}

// LLMConfig returns the client configuration for the selected provider
func (s *PluginSettings) LLMConfig() llm.Config {
	cfg := llm.Config{
		Provider:  s.LLMProvider,
		ChatModel: s.ChatModel,
		JSONModel: s.ChartModel,
	}

	switch s.LLMProvider {
	case llm.ProviderGemini:
		cfg.APIKey = s.GeminiAPIKey
	default:
		cfg.APIKey = s.OpenAIAPIKey
		cfg.BaseURL = s.OpenAIURL
	}
	return cfg
}
