// Package affiliates manages the partner registry and keeps its summary
// message synchronized in the partner channel.
package affiliates

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"guildkeep/internal/registry"
	"guildkeep/internal/summary"
	"guildkeep/pkg/guildkeep"
)

const (
	registerCommandName   = "register"
	unregisterCommandName = "unregister"
	setRepsCommandName    = "setreps"
	listCommandName       = "affiliates"
)

// Option mutates affiliates module configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithPartnerLog posts registration notices to the given channel.
func WithPartnerLog(channelID string) Option {
	return func(m *Module) {
		m.logChannelID = strings.TrimSpace(channelID)
	}
}

// Module owns partner registrations and their live summary.
type Module struct {
	registry  *registry.Keyed
	projector *summary.Projector
	logger    *slog.Logger

	channel      guildkeep.Channel
	logChannelID string
}

// New creates an affiliates module over one keyed registry and its projector.
func New(reg *registry.Keyed, projector *summary.Projector, options ...Option) (*Module, error) {
	if reg == nil {
		return nil, fmt.Errorf("new affiliates module: nil registry")
	}
	if projector == nil {
		return nil, fmt.Errorf("new affiliates module: nil projector")
	}

	m := &Module{
		registry:  reg,
		projector: projector,
		logger:    slog.Default(),
	}
	for _, option := range options {
		option(m)
	}

	return m, nil
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "affiliates"
}

// OnRegister resolves dependencies and binds partner commands.
func (m *Module) OnRegister(_ context.Context, runtime guildkeep.ModuleRuntime) error {
	if m.logChannelID != "" {
		channel, err := guildkeep.ResolveAs[guildkeep.Channel](runtime.Services(), guildkeep.ServiceChannel)
		if err != nil {
			return fmt.Errorf("affiliates resolve channel: %w", err)
		}
		m.channel = channel
	}

	commands := []struct {
		spec    guildkeep.CommandSpec
		handler guildkeep.Handler
	}{
		{
			spec: guildkeep.CommandSpec{
				Name:         registerCommandName,
				Description:  "register a partner community",
				Usage:        registerCommandName + " <name> [representatives...]",
				RequiredRole: guildkeep.RoleAdmin,
				MinArgs:      1,
			},
			handler: m.handleRegister,
		},
		{
			spec: guildkeep.CommandSpec{
				Name:         unregisterCommandName,
				Description:  "remove a registered partner",
				Usage:        unregisterCommandName + " <name>",
				RequiredRole: guildkeep.RoleAdmin,
				MinArgs:      1,
			},
			handler: m.handleUnregister,
		},
		{
			spec: guildkeep.CommandSpec{
				Name:         setRepsCommandName,
				Description:  "replace a partner's representative list",
				Usage:        setRepsCommandName + " <name> [representatives...]",
				RequiredRole: guildkeep.RoleAdmin,
				MinArgs:      1,
			},
			handler: m.handleSetReps,
		},
		{
			spec: guildkeep.CommandSpec{
				Name:        listCommandName,
				Description: "show all registered partners",
			},
			handler: m.handleList,
		},
	}
	for _, command := range commands {
		if err := runtime.RegisterCommand(command.spec, command.handler); err != nil {
			return fmt.Errorf("affiliates register command %s: %w", command.spec.Name, err)
		}
	}

	return nil
}

// OnStart hydrates the partner registry from its snapshot store.
func (m *Module) OnStart(ctx context.Context) error {
	if err := m.registry.Hydrate(ctx); err != nil {
		return fmt.Errorf("affiliates hydrate: %w", err)
	}

	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

func (m *Module) handleRegister(ctx context.Context, inv guildkeep.Invocation) (guildkeep.Reply, error) {
	name := inv.Args[0]
	representatives := inv.Args[1:]

	var record guildkeep.KeyedRecord
	outcome, err := m.projector.Apply(ctx, func(ctx context.Context) error {
		added, addErr := m.registry.Add(ctx, name, representatives, inv.CallerName)
		if addErr != nil {
			return addErr
		}
		record = added

		return nil
	})
	if err != nil {
		return guildkeep.Reply{}, err
	}

	m.postPartnerNotice(ctx, fmt.Sprintf("New partner registered: %s", record.Name))

	return guildkeep.Reply{
		Text: withSummaryNote(fmt.Sprintf("Registered partner %s.", record.Name), outcome),
	}, nil
}

func (m *Module) handleUnregister(ctx context.Context, inv guildkeep.Invocation) (guildkeep.Reply, error) {
	name := inv.Args[0]

	var removed guildkeep.KeyedRecord
	outcome, err := m.projector.Apply(ctx, func(ctx context.Context) error {
		record, removeErr := m.registry.Remove(ctx, name)
		if removeErr != nil {
			return removeErr
		}
		removed = record

		return nil
	})
	if err != nil {
		return guildkeep.Reply{}, err
	}

	m.postPartnerNotice(ctx, fmt.Sprintf("Partner removed: %s", removed.Name))

	return guildkeep.Reply{
		Text: withSummaryNote(fmt.Sprintf("Removed partner %s.", removed.Name), outcome),
	}, nil
}

func (m *Module) handleSetReps(ctx context.Context, inv guildkeep.Invocation) (guildkeep.Reply, error) {
	name := inv.Args[0]
	representatives := inv.Args[1:]

	var updated guildkeep.KeyedRecord
	outcome, err := m.projector.Apply(ctx, func(ctx context.Context) error {
		record, updateErr := m.registry.Update(ctx, name, registry.KeyedPatch{
			Representatives: &representatives,
		})
		if updateErr != nil {
			return updateErr
		}
		updated = record

		return nil
	})
	if err != nil {
		return guildkeep.Reply{}, err
	}

	return guildkeep.Reply{
		Text: withSummaryNote(fmt.Sprintf("Updated representatives for %s.", updated.Name), outcome),
	}, nil
}

func (m *Module) handleList(_ context.Context, _ guildkeep.Invocation) (guildkeep.Reply, error) {
	records := m.registry.List()
	if len(records) == 0 {
		return guildkeep.Reply{Text: "No partners registered yet."}, nil
	}

	lines := make([]string, 0, len(records)+1)
	lines = append(lines, fmt.Sprintf("Registered partners (%d):", len(records)))
	for _, record := range records {
		line := "- " + record.Name
		if len(record.Representatives) > 0 {
			line += " | " + strings.Join(record.Representatives, ", ")
		}
		lines = append(lines, line)
	}

	return guildkeep.Reply{Text: strings.Join(lines, "\n")}, nil
}

// postPartnerNotice is best-effort; a failed notice never fails the mutation.
func (m *Module) postPartnerNotice(ctx context.Context, text string) {
	if m.channel == nil || m.logChannelID == "" {
		return
	}

	if _, err := m.channel.PostMessage(ctx, m.logChannelID, text); err != nil {
		m.logger.WarnContext(ctx, "partner notice post failed",
			"channel", m.logChannelID,
			"error", err,
		)
	}
}

func withSummaryNote(text string, outcome summary.SummaryOutcome) string {
	if outcome.Status == summary.SummarySynced {
		return text
	}

	return text + " Summary update is pending."
}

// RenderLines maps partner records onto summary rows.
func RenderLines(records []guildkeep.KeyedRecord) []summary.Line {
	lines := make([]summary.Line, 0, len(records))
	for _, record := range records {
		lines = append(lines, summary.Line{
			Primary:   record.Name,
			Secondary: record.Representatives,
		})
	}

	return lines
}

var _ guildkeep.Module = (*Module)(nil)
