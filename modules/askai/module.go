// Package askai answers prompts through a configured LLM provider profile.
package askai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"guildkeep/pkg/guildkeep"
)

const (
	askCommandName   = "ai"
	modelCommandName = "aimodel"

	defaultProfile         = "default"
	defaultGenerateTimeout = 30 * time.Second
)

// Option mutates askai module configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithProfile selects which provider profile answers prompts.
func WithProfile(profile string) Option {
	return func(m *Module) {
		if strings.TrimSpace(profile) != "" {
			m.profile = strings.TrimSpace(profile)
		}
	}
}

// WithGenerateTimeout bounds each provider generation call.
func WithGenerateTimeout(timeout time.Duration) Option {
	return func(m *Module) {
		if timeout > 0 {
			m.generateTimeout = timeout
		}
	}
}

// Module answers /ai prompts and lets admins switch the active model.
type Module struct {
	logger          *slog.Logger
	profile         string
	generateTimeout time.Duration
	providers       guildkeep.LLMProviderRegistry

	mu            sync.RWMutex
	modelOverride string
}

// New creates an askai module with default configuration.
func New(options ...Option) *Module {
	m := &Module{
		logger:          slog.Default(),
		profile:         defaultProfile,
		generateTimeout: defaultGenerateTimeout,
	}
	for _, option := range options {
		option(m)
	}

	return m
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "askai"
}

// OnRegister resolves the provider registry and binds commands.
func (m *Module) OnRegister(_ context.Context, runtime guildkeep.ModuleRuntime) error {
	providers, err := guildkeep.ResolveAs[guildkeep.LLMProviderRegistry](
		runtime.Services(),
		guildkeep.ServiceLLMProviderRegistry,
	)
	if err != nil {
		return fmt.Errorf("askai resolve llm provider registry: %w", err)
	}
	m.providers = providers

	if _, err := m.providers.Resolve(m.profile); err != nil {
		return fmt.Errorf("askai check profile %s: %w", m.profile, err)
	}

	commands := []struct {
		spec    guildkeep.CommandSpec
		handler guildkeep.Handler
	}{
		{
			spec: guildkeep.CommandSpec{
				Name:        askCommandName,
				Description: "ask the configured model a question",
				Usage:       askCommandName + " <prompt...>",
				MinArgs:     1,
			},
			handler: m.handleAsk,
		},
		{
			spec: guildkeep.CommandSpec{
				Name:         modelCommandName,
				Description:  "override the model used for answers, or reset with 'default'",
				Usage:        modelCommandName + " <model|default>",
				RequiredRole: guildkeep.RoleAdmin,
				MinArgs:      1,
			},
			handler: m.handleModel,
		},
	}
	for _, command := range commands {
		if err := runtime.RegisterCommand(command.spec, command.handler); err != nil {
			return fmt.Errorf("askai register command %s: %w", command.spec.Name, err)
		}
	}

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(_ context.Context) error {
	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

func (m *Module) handleAsk(ctx context.Context, inv guildkeep.Invocation) (guildkeep.Reply, error) {
	provider, err := m.providers.Resolve(m.profile)
	if err != nil {
		return guildkeep.Reply{}, fmt.Errorf("askai resolve profile %s: %w", m.profile, err)
	}

	generateCtx, cancel := context.WithTimeout(ctx, m.generateTimeout)
	defer cancel()

	started := time.Now()
	answer, err := provider.Generate(generateCtx, guildkeep.LLMRequest{
		Model:  m.currentModel(),
		Prompt: strings.Join(inv.Args, " "),
	})
	if err != nil {
		m.logger.WarnContext(ctx, "llm generation failed",
			"profile", m.profile,
			"caller", inv.CallerID,
			"error", err,
		)

		return guildkeep.Reply{Text: "The model is unavailable right now, try again later."}, nil
	}
	m.logger.InfoContext(ctx, "llm generation served",
		"profile", m.profile,
		"caller", inv.CallerID,
		"elapsed", time.Since(started),
	)

	return guildkeep.Reply{Text: answer}, nil
}

func (m *Module) handleModel(_ context.Context, inv guildkeep.Invocation) (guildkeep.Reply, error) {
	model := strings.TrimSpace(inv.Args[0])

	m.mu.Lock()
	if strings.EqualFold(model, "default") {
		m.modelOverride = ""
	} else {
		m.modelOverride = model
	}
	override := m.modelOverride
	m.mu.Unlock()

	if override == "" {
		return guildkeep.Reply{Text: "Model reset to the profile default."}, nil
	}

	return guildkeep.Reply{Text: fmt.Sprintf("Model switched to %s.", override)}, nil
}

// currentModel returns the admin override, or empty to use profile defaults.
func (m *Module) currentModel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.modelOverride
}

var _ guildkeep.Module = (*Module)(nil)
