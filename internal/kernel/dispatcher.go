package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"guildkeep/pkg/guildkeep"
)

// DispatcherOption mutates dispatcher configuration.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger injects a logger directly, bypassing service lookup.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// Dispatcher routes parsed invocations to module command handlers.
//
// It is the single authorization enforcement point: a handler never observes
// an invocation whose caller lacks the command's required role. Handlers for
// different registries may run concurrently; per-registry serialization is
// the mutation gate's concern, not the dispatcher's.
type Dispatcher struct {
	logger *slog.Logger

	mu       sync.RWMutex
	commands map[string]commandBinding
}

type commandBinding struct {
	spec    guildkeep.CommandSpec
	handler guildkeep.Handler
}

// NewDispatcher creates an empty command dispatcher.
func NewDispatcher(options ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		logger:   slog.Default(),
		commands: make(map[string]commandBinding),
	}
	for _, option := range options {
		option(d)
	}

	return d
}

// Register binds one command spec to a handler.
func (d *Dispatcher) Register(spec guildkeep.CommandSpec, handler guildkeep.Handler) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("register command: %w", err)
	}
	if handler == nil {
		return fmt.Errorf("register command %s: nil handler", spec.Name)
	}

	name := guildkeep.NormalizeCommandName(spec.Name)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.commands[name]; exists {
		return fmt.Errorf("register command %s: %w", name, guildkeep.ErrCommandAlreadyRegistered)
	}
	d.commands[name] = commandBinding{spec: spec, handler: handler}

	return nil
}

// Specs returns every registered command spec sorted by name.
func (d *Dispatcher) Specs() []guildkeep.CommandSpec {
	d.mu.RLock()
	specs := make([]guildkeep.CommandSpec, 0, len(d.commands))
	for _, binding := range d.commands {
		specs = append(specs, binding.spec)
	}
	d.mu.RUnlock()

	sort.Slice(specs, func(i, j int) bool {
		return specs[i].Name < specs[j].Name
	})

	return specs
}

// Invoke routes one invocation to its bound handler.
//
// Expected outcomes (unknown command, missing role, argument-count miss) come
// back as typed errors for the framework to render; handler errors pass
// through unwrapped so their taxonomy stays visible to the caller.
func (d *Dispatcher) Invoke(ctx context.Context, inv guildkeep.Invocation) (guildkeep.Reply, error) {
	if err := inv.Validate(); err != nil {
		return guildkeep.Reply{}, fmt.Errorf("invoke: %w", err)
	}

	name := guildkeep.NormalizeCommandName(inv.Command)

	d.mu.RLock()
	binding, exists := d.commands[name]
	d.mu.RUnlock()

	if !exists {
		return guildkeep.Reply{}, fmt.Errorf("invoke %s: %w", name, guildkeep.ErrUnknownCommand)
	}
	if !guildkeep.IsAuthorized(inv.Roles, binding.spec.RequiredRole) {
		d.logger.InfoContext(ctx, "command refused",
			"command", name,
			"caller", inv.CallerID,
			"required_role", string(binding.spec.RequiredRole),
		)

		return guildkeep.Reply{}, fmt.Errorf("invoke %s: %w", name, guildkeep.ErrNotAuthorized)
	}
	if len(inv.Args) < binding.spec.MinArgs {
		usage := strings.TrimSpace(binding.spec.Usage)
		if usage == "" {
			usage = name
		}

		return guildkeep.Reply{}, fmt.Errorf("invoke %s: usage: %s", name, usage)
	}

	reply, err := binding.handler(ctx, inv)
	if err != nil {
		return guildkeep.Reply{}, err
	}

	return reply, nil
}
