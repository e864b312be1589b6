package llm

import (
	"context"
	"fmt"
	"strings"

	"guildkeep/pkg/guildkeep"
)

// Defaults carries per-profile request defaults applied before dispatch.
type Defaults struct {
	// Model fills requests that name no model.
	Model string
	// SystemPrompt fills requests that carry no system prompt.
	SystemPrompt string
	// MaxOutputTokens fills requests that set no output bound.
	MaxOutputTokens int
	// Temperature fills requests that set no temperature.
	Temperature float64
}

// WithDefaults wraps a provider so profile-level defaults backfill sparse
// requests. Explicit request fields always win.
func WithDefaults(provider guildkeep.LLMProvider, defaults Defaults) (guildkeep.LLMProvider, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm defaults: nil provider")
	}

	return &defaultedProvider{
		inner:    provider,
		defaults: defaults,
	}, nil
}

type defaultedProvider struct {
	inner    guildkeep.LLMProvider
	defaults Defaults
}

func (p *defaultedProvider) Generate(ctx context.Context, req guildkeep.LLMRequest) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		req.Model = p.defaults.Model
	}
	if strings.TrimSpace(req.SystemPrompt) == "" {
		req.SystemPrompt = p.defaults.SystemPrompt
	}
	if req.MaxOutputTokens == 0 {
		req.MaxOutputTokens = p.defaults.MaxOutputTokens
	}
	if req.Temperature == 0 {
		req.Temperature = p.defaults.Temperature
	}

	return p.inner.Generate(ctx, req)
}
