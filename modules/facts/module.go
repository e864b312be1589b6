// Package facts serves random facts from a persisted, seedable registry.
package facts

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"guildkeep/internal/registry"
	"guildkeep/pkg/guildkeep"
)

const (
	factCommandName = "fact"

	subcommandAdd    = "add"
	subcommandRemove = "remove"
	subcommandList   = "list"

	listPageSize = 5
)

// DefaultFacts seed the registry when no snapshot exists yet.
var DefaultFacts = []guildkeep.IndexedRecord{
	{Token: "Honey never spoils; edible pots were found in ancient Egyptian tombs."},
	{Token: "Octopuses have three hearts and blue blood."},
	{Token: "A day on Venus lasts longer than a year on Venus."},
}

// Option mutates facts module configuration.
type Option func(*Module)

// WithLogger injects a logger directly, bypassing service lookup.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithPick overrides random fact selection for deterministic tests.
func WithPick(pick func(n int) int) Option {
	return func(m *Module) {
		if pick != nil {
			m.pick = pick
		}
	}
}

// Module owns the fact registry and the fact command family.
type Module struct {
	registry *registry.Indexed
	gate     *registry.Gate
	logger   *slog.Logger
	pick     func(n int) int
}

// New creates a facts module over one indexed registry and its gate.
func New(reg *registry.Indexed, gate *registry.Gate, options ...Option) (*Module, error) {
	if reg == nil {
		return nil, fmt.Errorf("new facts module: nil registry")
	}
	if gate == nil {
		return nil, fmt.Errorf("new facts module: nil gate")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	m := &Module{
		registry: reg,
		gate:     gate,
		logger:   slog.Default(),
		pick:     rng.Intn,
	}
	for _, option := range options {
		option(m)
	}

	return m, nil
}

// Name returns the stable module identifier.
func (m *Module) Name() string {
	return "facts"
}

// OnRegister binds the fact command.
func (m *Module) OnRegister(_ context.Context, runtime guildkeep.ModuleRuntime) error {
	spec := guildkeep.CommandSpec{
		Name:        factCommandName,
		Description: "show a random fact, or manage facts with add/remove/list",
		Usage:       factCommandName + " [add <text>|remove <id|text>|list [page]]",
	}
	if err := runtime.RegisterCommand(spec, m.handleFact); err != nil {
		return fmt.Errorf("facts register command %s: %w", spec.Name, err)
	}

	return nil
}

// OnStart hydrates the fact registry, seeding defaults on first run.
func (m *Module) OnStart(ctx context.Context) error {
	if err := m.registry.Hydrate(ctx); err != nil {
		return fmt.Errorf("facts hydrate: %w", err)
	}

	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

// handleFact routes the fact subcommand family. Mutating subcommands carry
// their own admin check because the top-level command stays open to everyone.
func (m *Module) handleFact(ctx context.Context, inv guildkeep.Invocation) (guildkeep.Reply, error) {
	if len(inv.Args) == 0 {
		return m.randomFact()
	}

	switch strings.ToLower(inv.Args[0]) {
	case subcommandAdd:
		if !guildkeep.IsAuthorized(inv.Roles, guildkeep.RoleAdmin) {
			return guildkeep.Reply{}, fmt.Errorf("fact add: %w", guildkeep.ErrNotAuthorized)
		}
		if len(inv.Args) < 2 {
			return guildkeep.Reply{}, fmt.Errorf("fact add: usage: %s add <text>", factCommandName)
		}

		return m.addFact(ctx, strings.Join(inv.Args[1:], " "), inv.CallerName)
	case subcommandRemove:
		if !guildkeep.IsAuthorized(inv.Roles, guildkeep.RoleAdmin) {
			return guildkeep.Reply{}, fmt.Errorf("fact remove: %w", guildkeep.ErrNotAuthorized)
		}
		if len(inv.Args) < 2 {
			return guildkeep.Reply{}, fmt.Errorf("fact remove: usage: %s remove <id|text>", factCommandName)
		}

		return m.removeFact(ctx, strings.Join(inv.Args[1:], " "))
	case subcommandList:
		page := 1
		if len(inv.Args) > 1 {
			parsed, err := strconv.Atoi(inv.Args[1])
			if err != nil || parsed < 1 {
				return guildkeep.Reply{}, fmt.Errorf("fact list: usage: %s list [page]", factCommandName)
			}
			page = parsed
		}

		return m.listFacts(page)
	default:
		return m.randomFact()
	}
}

func (m *Module) randomFact() (guildkeep.Reply, error) {
	records, err := m.registry.List(guildkeep.OrderInsertion)
	if err != nil {
		return guildkeep.Reply{}, fmt.Errorf("fact random: %w", err)
	}
	if len(records) == 0 {
		return guildkeep.Reply{Text: "No facts recorded yet."}, nil
	}

	record := records[m.pick(len(records))]

	return guildkeep.Reply{Text: record.Token}, nil
}

func (m *Module) addFact(ctx context.Context, text, addedBy string) (guildkeep.Reply, error) {
	var record guildkeep.IndexedRecord
	err := m.gate.Do(ctx, func(ctx context.Context) error {
		added, addErr := m.registry.Add(ctx, text, "", addedBy)
		if addErr != nil {
			return addErr
		}
		record = added

		return nil
	})
	if err != nil {
		return guildkeep.Reply{}, err
	}

	return guildkeep.Reply{Text: fmt.Sprintf("Fact #%d recorded.", record.ID)}, nil
}

func (m *Module) removeFact(ctx context.Context, rawSelector string) (guildkeep.Reply, error) {
	selector := parseSelector(rawSelector)

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

	return guildkeep.Reply{Text: fmt.Sprintf("Fact #%d removed.", removed.ID)}, nil
}

// parseSelector treats a numeric argument as a registry id and anything else
// as the exact fact text.
func parseSelector(raw string) guildkeep.IndexedSelector {
	trimmed := strings.TrimSpace(raw)
	if id, err := strconv.Atoi(trimmed); err == nil {
		return guildkeep.SelectID(id)
	}

	return guildkeep.SelectToken(trimmed)
}

func (m *Module) listFacts(page int) (guildkeep.Reply, error) {
	records, err := m.registry.List(guildkeep.OrderInsertion)
	if err != nil {
		return guildkeep.Reply{}, fmt.Errorf("fact list: %w", err)
	}
	if len(records) == 0 {
		return guildkeep.Reply{Text: "No facts recorded yet."}, nil
	}

	pages := (len(records) + listPageSize - 1) / listPageSize
	if page > pages {
		return guildkeep.Reply{
			Text: fmt.Sprintf("Page %d is out of range; there are %d pages.", page, pages),
		}, nil
	}

	start := (page - 1) * listPageSize
	end := min(start+listPageSize, len(records))

	lines := make([]string, 0, listPageSize+1)
	lines = append(lines, fmt.Sprintf("Facts (page %d/%d):", page, pages))
	for _, record := range records[start:end] {
		lines = append(lines, fmt.Sprintf("#%d %s", record.ID, record.Token))
	}

	return guildkeep.Reply{Text: strings.Join(lines, "\n")}, nil
}

var _ guildkeep.Module = (*Module)(nil)
