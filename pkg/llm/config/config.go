// Package config parses LLM profile configuration and builds the provider
// registry from it.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"guildkeep/pkg/guildkeep"
	"guildkeep/pkg/llm"
	"guildkeep/pkg/llm/providers/gemini"
	"guildkeep/pkg/llm/providers/openai"
)

// ProviderOpenAI selects the OpenAI Chat Completions backend.
const ProviderOpenAI = "openai"

// ProviderGemini selects the Google Gemini backend.
const ProviderGemini = "gemini"

// ProfileConfig declares one named generation profile.
type ProfileConfig struct {
	// Provider selects the backend implementation.
	Provider string `json:"provider"`
	// APIKey is the backend credential.
	APIKey string `json:"api_key"`
	// BaseURL optionally overrides the backend endpoint.
	BaseURL string `json:"base_url"`
	// APIVersion optionally overrides the Gemini API version.
	APIVersion string `json:"api_version"`
	// Organization optionally sets the OpenAI organization header.
	Organization string `json:"organization"`
	// Project optionally sets the OpenAI project header.
	Project string `json:"project"`
	// Model is the default model for requests on this profile.
	Model string `json:"model"`
	// SystemPrompt is the default system prompt for this profile.
	SystemPrompt string `json:"system_prompt"`
	// MaxOutputTokens is the default output bound for this profile.
	MaxOutputTokens int `json:"max_output_tokens"`
	// Temperature is the default sampling temperature for this profile.
	Temperature float64 `json:"temperature"`
}

// Config is the llm section of application configuration.
type Config struct {
	// Profiles maps stable profile keys to backend configuration.
	Profiles map[string]ProfileConfig `json:"profiles"`
}

// Parse decodes raw llm configuration payload.
func Parse(raw []byte) (Config, error) {
	if len(raw) == 0 {
		return Config{}, fmt.Errorf("parse llm config: missing config")
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse llm config: unmarshal: %w", err)
	}

	return cfg, nil
}

// BuildRegistry constructs providers for every configured profile.
//
// Each provider is wrapped with its profile defaults, so callers can issue
// sparse requests carrying only the prompt.
func BuildRegistry(cfg Config) (*llm.Registry, error) {
	if len(cfg.Profiles) == 0 {
		return nil, fmt.Errorf("build llm registry: no profiles configured")
	}

	providers := make(map[string]guildkeep.LLMProvider, len(cfg.Profiles))
	for key, profile := range cfg.Profiles {
		provider, err := buildProvider(profile)
		if err != nil {
			return nil, fmt.Errorf("build llm registry: profile %s: %w", key, err)
		}

		defaulted, err := llm.WithDefaults(provider, llm.Defaults{
			Model:           profile.Model,
			SystemPrompt:    profile.SystemPrompt,
			MaxOutputTokens: profile.MaxOutputTokens,
			Temperature:     profile.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("build llm registry: profile %s: %w", key, err)
		}
		providers[key] = defaulted
	}

	registry, err := llm.NewRegistry(providers)
	if err != nil {
		return nil, fmt.Errorf("build llm registry: %w", err)
	}

	return registry, nil
}

func buildProvider(profile ProfileConfig) (guildkeep.LLMProvider, error) {
	if strings.TrimSpace(profile.Model) == "" {
		return nil, fmt.Errorf("missing model")
	}

	switch strings.ToLower(strings.TrimSpace(profile.Provider)) {
	case ProviderOpenAI:
		provider, err := openai.New(openai.ProviderConfig{
			APIKey:       profile.APIKey,
			BaseURL:      profile.BaseURL,
			Organization: profile.Organization,
			Project:      profile.Project,
		})
		if err != nil {
			return nil, err
		}

		return provider, nil
	case ProviderGemini:
		provider, err := gemini.New(gemini.ProviderConfig{
			APIKey:     profile.APIKey,
			BaseURL:    profile.BaseURL,
			APIVersion: profile.APIVersion,
		})
		if err != nil {
			return nil, err
		}

		return provider, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", profile.Provider)
	}
}
