// Package help renders command reference text for the /help command.
package help

import (
	"context"
	"fmt"
	"strings"

	"guildkeep/pkg/guildkeep"
)

const helpCommandName = "help"

// Module replies with command reference text.
type Module struct {
	catalog guildkeep.CommandCatalog
}

// New creates a help module with default configuration.
func New() *Module {
	return &Module{}
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "help"
}

// OnRegister resolves the command catalog and binds the help command.
func (m *Module) OnRegister(_ context.Context, runtime guildkeep.ModuleRuntime) error {
	catalog, err := guildkeep.ResolveAs[guildkeep.CommandCatalog](
		runtime.Services(),
		guildkeep.ServiceCommandCatalog,
	)
	if err != nil {
		return fmt.Errorf("help resolve command catalog: %w", err)
	}
	m.catalog = catalog

	spec := guildkeep.CommandSpec{
		Name:        helpCommandName,
		Description: "show all available commands",
	}
	if err := runtime.RegisterCommand(spec, m.handleHelp); err != nil {
		return fmt.Errorf("help register command: %w", err)
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

func (m *Module) handleHelp(_ context.Context, _ guildkeep.Invocation) (guildkeep.Reply, error) {
	if m.catalog == nil {
		return guildkeep.Reply{}, fmt.Errorf("help handle command: command catalog not configured")
	}

	return guildkeep.Reply{Text: renderHelp(m.catalog.Specs())}, nil
}

func renderHelp(specs []guildkeep.CommandSpec) string {
	if len(specs) == 0 {
		return "Available commands:\n(none)"
	}

	lines := make([]string, 0, len(specs)*3+1)
	lines = append(lines, "Available commands:")
	for _, spec := range specs {
		line := "/" + spec.Name
		if spec.RequiredRole != "" {
			line += fmt.Sprintf(" [%s]", spec.RequiredRole)
		}
		lines = append(lines, line)
		if usage := strings.TrimSpace(spec.Usage); usage != "" {
			lines = append(lines, "  usage: /"+usage)
		}
		if description := strings.TrimSpace(spec.Description); description != "" {
			lines = append(lines, "  "+description)
		}
	}

	return strings.Join(lines, "\n")
}

var _ guildkeep.Module = (*Module)(nil)
