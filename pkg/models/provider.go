package models

import (
	"strings"
	"time"

	"github.com/HerbHall/textlens/pkg/llm"
)

// ProviderConfig is one configured LLM endpoint. At most one ProviderConfig
// in a store has IsDefault set; the store's default write path enforces it.
type ProviderConfig struct {
	ID                    int64    `json:"id"` // Zero until persisted.
	Name                  string   `json:"name"`
	Kind                  llm.Kind `json:"kind"`
	BaseURL               string   `json:"base_url"`
	APIKey                string   `json:"api_key,omitempty"`
	Model                 string   `json:"model"`
	StreamingEnabled      bool     `json:"streaming_enabled"`
	AdvancedParamsEnabled bool     `json:"advanced_params_enabled"`
	MaxTokens             int      `json:"max_tokens"`
	Temperature           float64  `json:"temperature"`
	TopP                  float64  `json:"top_p"`
	// CustomParameters is free text, one key:value pair per line.
	CustomParameters string    `json:"custom_parameters,omitempty"`
	IsDefault        bool      `json:"is_default"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewProviderConfig returns a ProviderConfig with the defaults a new entry
// starts from: the kind's default URL, streaming on, advanced params off.
func NewProviderConfig(name string, kind llm.Kind) ProviderConfig {
	return ProviderConfig{
		Name:             name,
		Kind:             kind,
		BaseURL:          kind.DefaultBaseURL(),
		Model:            "gpt-4o-mini",
		StreamingEnabled: true,
		MaxTokens:        128000,
		Temperature:      0.7,
		TopP:             1.0,
	}
}

// IsValid reports whether the config can be used for a request: base URL
// and model are set, and an API key is present unless the kind does not
// require one.
func (p *ProviderConfig) IsValid() bool {
	return p.Validate() == nil
}

// Validate returns a ConfigurationError naming the first missing field, or
// nil when the config is usable.
func (p *ProviderConfig) Validate() error {
	switch {
	case strings.TrimSpace(p.BaseURL) == "":
		return llm.NewConfigurationError("base_url",
			"provider "+p.label()+" has no base URL")
	case strings.TrimSpace(p.Model) == "":
		return llm.NewConfigurationError("model",
			"provider "+p.label()+" has no model name")
	case p.Kind.RequiresAPIKey() && strings.TrimSpace(p.APIKey) == "":
		return llm.NewConfigurationError("api_key",
			"provider "+p.label()+" requires an API key")
	}
	return nil
}

func (p *ProviderConfig) label() string {
	if p.Name != "" {
		return "\"" + p.Name + "\""
	}
	return p.Kind.DisplayName()
}

// LegacyConfig is the single-slot configuration used before multiple
// providers were supported. It always targets an OpenAI-compatible API.
type LegacyConfig struct {
	APIKey           string  `json:"api_key,omitempty"`
	BaseURL          string  `json:"base_url"`
	Model            string  `json:"model"`
	StreamingEnabled bool    `json:"streaming_enabled"`
	MaxTokens        int     `json:"max_tokens"`
	Temperature      float64 `json:"temperature"`
}

// DefaultLegacyConfig returns the values an unconfigured installation reads.
func DefaultLegacyConfig() LegacyConfig {
	return LegacyConfig{
		BaseURL:          "https://api.openai.com/v1/",
		Model:            "gpt-4o-mini",
		StreamingEnabled: true,
		MaxTokens:        128000,
		Temperature:      0.7,
	}
}

// Validate reports whether the legacy slot is usable. The legacy rule
// only checks the API key and base URL.
func (c *LegacyConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.APIKey) == "":
		return llm.NewConfigurationError("api_key", "legacy API configuration has no API key")
	case strings.TrimSpace(c.BaseURL) == "":
		return llm.NewConfigurationError("base_url", "legacy API configuration has no base URL")
	}
	return nil
}

// ProviderConfig converts the legacy slot into an unpersisted provider.
// MaxTokens and Temperature are always sent when positive, so advanced
// params are enabled.
func (c *LegacyConfig) ProviderConfig() ProviderConfig {
	return ProviderConfig{
		Name:                  "legacy",
		Kind:                  llm.KindOpenAICompatible,
		BaseURL:               c.BaseURL,
		APIKey:                c.APIKey,
		Model:                 c.Model,
		StreamingEnabled:      c.StreamingEnabled,
		AdvancedParamsEnabled: true,
		MaxTokens:             c.MaxTokens,
		Temperature:           c.Temperature,
	}
}
