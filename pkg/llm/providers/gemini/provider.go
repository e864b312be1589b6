// Package gemini implements the LLM provider contract over the Google Gemini
// GenerateContent API.
package gemini

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"

	"guildkeep/pkg/guildkeep"

	"google.golang.org/genai"
)

const defaultAPIVersion = "v1beta"

// ProviderConfig configures one Gemini-backed provider instance.
type ProviderConfig struct {
	// APIKey is the credential used to authenticate requests.
	APIKey string
	// BaseURL optionally overrides the Gemini endpoint.
	BaseURL string
	// APIVersion optionally overrides Gemini API version.
	//
	// Zero defaults to v1beta.
	APIVersion string
}

// Provider is an LLM provider backed by Google Gemini.
type Provider struct {
	models geminiModelsClient
}

type geminiModelsClient interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// New builds one Gemini API provider instance.
func New(cfg ProviderConfig) (*Provider, error) {
	normalized, err := normalizeProviderConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("new gemini provider: %w", err)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  normalized.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    normalized.BaseURL,
			APIVersion: normalized.APIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("new gemini client: %w", err)
	}
	if client == nil || client.Models == nil {
		return nil, fmt.Errorf("new gemini client: models client is nil")
	}

	return &Provider{models: client.Models}, nil
}

// Generate produces one complete text reply via GenerateContent.
func (p *Provider) Generate(ctx context.Context, req guildkeep.LLMRequest) (string, error) {
	if p == nil {
		return "", fmt.Errorf("gemini generate: nil provider")
	}
	if p.models == nil {
		return "", fmt.Errorf("gemini generate: models client is nil")
	}
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("gemini generate validate request: %w", err)
	}

	contents, config, err := mapGenerateRequest(req)
	if err != nil {
		return "", fmt.Errorf("gemini generate map request: %w", err)
	}

	response, err := p.models.GenerateContent(ctx, strings.TrimSpace(req.Model), contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if response == nil {
		return "", fmt.Errorf("gemini generate: empty response")
	}

	text := strings.TrimSpace(response.Text())
	if text == "" {
		return "", fmt.Errorf("gemini generate: empty response text")
	}

	return text, nil
}

func mapGenerateRequest(req guildkeep.LLMRequest) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	contents := []*genai.Content{
		{
			Role: string(genai.RoleUser),
			Parts: []*genai.Part{
				{Text: req.Prompt},
			},
		},
	}

	config := &genai.GenerateContentConfig{}
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: system},
			},
		}
	}
	if req.Temperature > 0 {
		temperature := float32(req.Temperature)
		config.Temperature = &temperature
	}
	if req.MaxOutputTokens > 0 {
		if req.MaxOutputTokens > math.MaxInt32 {
			return nil, nil, fmt.Errorf("max_output_tokens exceeds int32 range")
		}
		config.MaxOutputTokens = int32(req.MaxOutputTokens)
	}

	return contents, config, nil
}

func normalizeProviderConfig(cfg ProviderConfig) (ProviderConfig, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.APIVersion = strings.TrimSpace(cfg.APIVersion)

	if cfg.APIKey == "" {
		return ProviderConfig{}, fmt.Errorf("missing api_key")
	}
	if cfg.BaseURL != "" {
		parsed, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return ProviderConfig{}, fmt.Errorf("parse base_url: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return ProviderConfig{}, fmt.Errorf("parse base_url: must include scheme and host")
		}
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}

	return cfg, nil
}

var _ guildkeep.LLMProvider = (*Provider)(nil)
