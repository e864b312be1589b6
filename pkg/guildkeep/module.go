package guildkeep

import "context"

// ModuleRuntime provides kernel facilities to modules during registration.
type ModuleRuntime interface {
	// Services exposes the service registry for dependency lookup.
	Services() ServiceRegistry
	// RegisterCommand binds one command spec to a module-owned handler.
	RegisterCommand(spec CommandSpec, handler Handler) error
}

// Module is a lifecycle-aware plugin contract.
//
// Handlers can run on multiple workers, so modules must be concurrency-safe.
type Module interface {
	// Name returns a stable module identifier.
	Name() string
	// OnRegister is called once when the module is registered.
	OnRegister(ctx context.Context, runtime ModuleRuntime) error
	// OnStart is called when the kernel begins runtime execution.
	OnStart(ctx context.Context) error
	// OnShutdown is called during orderly shutdown.
	OnShutdown(ctx context.Context) error
}
