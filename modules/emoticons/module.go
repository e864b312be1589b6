// Package emoticons manages the bounded emoticon registry.
package emoticons

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"guildkeep/internal/registry"
	"guildkeep/pkg/guildkeep"
)

const (
	addCommandName  = "emoticonadd"
	delCommandName  = "emoticondel"
	listCommandName = "emoticonlist"
)

// Option mutates emoticons module configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Module owns the emoticon registry and its commands.
type Module struct {
	registry *registry.Indexed
	gate     *registry.Gate
	logger   *slog.Logger
}

// New creates an emoticons module over one indexed registry and its gate.
func New(reg *registry.Indexed, gate *registry.Gate, options ...Option) (*Module, error) {
	if reg == nil {
		return nil, fmt.Errorf("new emoticons module: nil registry")
	}
	if gate == nil {
		return nil, fmt.Errorf("new emoticons module: nil gate")
	}

	m := &Module{
		registry: reg,
		gate:     gate,
		logger:   slog.Default(),
	}
	for _, option := range options {
		option(m)
	}

	return m, nil
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "emoticons"
}

// OnRegister binds emoticon commands.
func (m *Module) OnRegister(_ context.Context, runtime guildkeep.ModuleRuntime) error {
	commands := []struct {
		spec    guildkeep.CommandSpec
		handler guildkeep.Handler
	}{
		{
			spec: guildkeep.CommandSpec{
				Name:         addCommandName,
				Description:  "add an emoticon to the registry",
				Usage:        addCommandName + " <emoticon> [description...]",
				RequiredRole: guildkeep.RoleAdmin,
				MinArgs:      1,
			},
			handler: m.handleAdd,
		},
		{
			spec: guildkeep.CommandSpec{
				Name:         delCommandName,
				Description:  "remove an emoticon by id or text",
				Usage:        delCommandName + " <id|emoticon>",
				RequiredRole: guildkeep.RoleAdmin,
				MinArgs:      1,
			},
			handler: m.handleDelete,
		},
		{
			spec: guildkeep.CommandSpec{
				Name:        listCommandName,
				Description: "list registered emoticons in addition order",
			},
			handler: m.handleList,
		},
	}
	for _, command := range commands {
		if err := runtime.RegisterCommand(command.spec, command.handler); err != nil {
			return fmt.Errorf("emoticons register command %s: %w", command.spec.Name, err)
		}
	}

	return nil
}

// OnStart hydrates the emoticon registry from its snapshot store.
func (m *Module) OnStart(ctx context.Context) error {
	if err := m.registry.Hydrate(ctx); err != nil {
		return fmt.Errorf("emoticons hydrate: %w", err)
	}

	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

func (m *Module) handleAdd(ctx context.Context, inv guildkeep.Invocation) (guildkeep.Reply, error) {
	token := inv.Args[0]
	description := strings.Join(inv.Args[1:], " ")

	var record guildkeep.IndexedRecord
	err := m.gate.Do(ctx, func(ctx context.Context) error {
		added, addErr := m.registry.Add(ctx, token, description, inv.CallerName)
		if addErr != nil {
			return addErr
		}
		record = added

		return nil
	})
	if err != nil {
		return guildkeep.Reply{}, err
	}

	return guildkeep.Reply{
		Text: fmt.Sprintf("Added emoticon #%d: %s", record.ID, record.Token),
	}, nil
}

func (m *Module) handleDelete(ctx context.Context, inv guildkeep.Invocation) (guildkeep.Reply, error) {
	selector := parseSelector(inv.Args[0])

	var removed guildkeep.IndexedRecord
	err := m.gate.Do(ctx, func(ctx context.Context) error {
		record, removeErr := m.registry.Remove(ctx, selector)
		if removeErr != nil {
			return removeErr
		}
		removed = record

		return nil
	})
	if err != nil {
		return guildkeep.Reply{}, err
	}

	return guildkeep.Reply{
		Text: fmt.Sprintf("Removed emoticon %s.", removed.Token),
	}, nil
}

func (m *Module) handleList(_ context.Context, _ guildkeep.Invocation) (guildkeep.Reply, error) {
	records, err := m.registry.List(guildkeep.OrderAddedAt)
	if err != nil {
		return guildkeep.Reply{}, fmt.Errorf("emoticons list: %w", err)
	}
	if len(records) == 0 {
		return guildkeep.Reply{Text: "No emoticons registered yet."}, nil
	}

	lines := make([]string, 0, len(records)+1)
	lines = append(lines, fmt.Sprintf("Registered emoticons (%d):", len(records)))
	for _, record := range records {
		line := fmt.Sprintf("#%d %s", record.ID, record.Token)
		if record.Description != "" {
			line += " | " + record.Description
		}
		lines = append(lines, line)
	}

	return guildkeep.Reply{Text: strings.Join(lines, "\n")}, nil
}

// parseSelector treats an all-digit argument as an id and anything else as
// the emoticon text itself.
func parseSelector(raw string) guildkeep.IndexedSelector {
	trimmed := strings.TrimSpace(raw)
	if id, err := strconv.Atoi(trimmed); err == nil {
		return guildkeep.SelectID(id)
	}

	return guildkeep.SelectToken(trimmed)
}

var _ guildkeep.Module = (*Module)(nil)
