// Package llm hosts the provider registry and shared provider plumbing for
// text generation backends.
package llm

import (
	"fmt"
	"strings"

	"guildkeep/pkg/guildkeep"
)

// Registry resolves configured LLM providers by stable profile key.
//
// The provider map is copied on construction and remains immutable afterward,
// so Resolve is concurrency-safe for parallel command handlers.
type Registry struct {
	providers map[string]guildkeep.LLMProvider
}

// NewRegistry constructs one immutable LLM provider registry.
func NewRegistry(providers map[string]guildkeep.LLMProvider) (*Registry, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("new llm provider registry: empty providers")
	}

	cloned := make(map[string]guildkeep.LLMProvider, len(providers))
	for key, provider := range providers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return nil, fmt.Errorf("new llm provider registry: empty profile key")
		}
		if provider == nil {
			return nil, fmt.Errorf("new llm provider registry: profile %s is nil", trimmedKey)
		}
		if _, exists := cloned[trimmedKey]; exists {
			return nil, fmt.Errorf("new llm provider registry: duplicate profile key %s", trimmedKey)
		}
		cloned[trimmedKey] = provider
	}

	return &Registry{providers: cloned}, nil
}

// Resolve returns one configured provider by profile key.
func (r *Registry) Resolve(profile string) (guildkeep.LLMProvider, error) {
	if r == nil {
		return nil, fmt.Errorf("resolve llm provider: nil registry")
	}

	trimmed := strings.TrimSpace(profile)
	if trimmed == "" {
		return nil, fmt.Errorf("resolve llm provider: empty profile key")
	}

	resolved, exists := r.providers[trimmed]
	if !exists {
		return nil, fmt.Errorf("resolve llm provider: profile %s is not configured", trimmed)
	}

	return resolved, nil
}

// Profiles returns the configured profile keys in unspecified order.
func (r *Registry) Profiles() []string {
	if r == nil {
		return nil
	}

	keys := make([]string, 0, len(r.providers))
	for key := range r.providers {
		keys = append(keys, key)
	}

	return keys
}

var _ guildkeep.LLMProviderRegistry = (*Registry)(nil)
