package guildkeep

import (
	"context"
	"fmt"
	"strings"
)

// ServiceLLMProviderRegistry is the canonical service registry key for LLM providers.
const ServiceLLMProviderRegistry = "guildkeep.llm_provider_registry"

// LLMProviderRegistry resolves LLM providers by stable profile key.
//
// Implementations must be concurrency-safe because modules can resolve
// providers from multiple workers at the same time.
type LLMProviderRegistry interface {
	// Resolve returns one configured provider by profile key.
	Resolve(profile string) (LLMProvider, error)
}

// LLMProvider exposes one request/response text generation operation.
//
// Provider-specific transport details stay hidden behind this neutral
// interface; the core treats generation as an opaque call with no state.
type LLMProvider interface {
	// Generate produces one complete text reply for a request.
	Generate(ctx context.Context, req LLMRequest) (string, error)
}

// LLMRequest describes one provider generation call.
type LLMRequest struct {
	// Model identifies which provider model should be used.
	Model string
	// SystemPrompt optionally carries system-level instructions.
	SystemPrompt string
	// Prompt is the user prompt text.
	Prompt string
	// MaxOutputTokens optionally bounds generated output token count.
	MaxOutputTokens int
	// Temperature optionally controls output randomness.
	Temperature float64
}

// Validate checks one generation request contract.
func (r LLMRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("validate llm request: missing model")
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("validate llm request: missing prompt")
	}
	if r.MaxOutputTokens < 0 {
		return fmt.Errorf("validate llm request: max_output_tokens must be >= 0")
	}
	if r.Temperature < 0 {
		return fmt.Errorf("validate llm request: temperature must be >= 0")
	}

	return nil
}
