package kernel

import (
	"fmt"

	"guildkeep/pkg/guildkeep"
)

// moduleRuntime is the per-module facade handed to OnRegister hooks.
type moduleRuntime struct {
	moduleName string
	services   *ServiceRegistry
	dispatcher *Dispatcher
}

// Services exposes the kernel service registry.
func (r *moduleRuntime) Services() guildkeep.ServiceRegistry {
	return r.services
}

// RegisterCommand binds one command spec to a module-owned handler.
func (r *moduleRuntime) RegisterCommand(spec guildkeep.CommandSpec, handler guildkeep.Handler) error {
	if err := r.dispatcher.Register(spec, handler); err != nil {
		return fmt.Errorf("module %s: %w", r.moduleName, err)
	}

	return nil
}

var _ guildkeep.ModuleRuntime = (*moduleRuntime)(nil)
