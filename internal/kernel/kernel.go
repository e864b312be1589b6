package kernel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"guildkeep/pkg/guildkeep"
)

const (
	defaultModuleHookTimeout = 10 * time.Second
	defaultShutdownTimeout   = 15 * time.Second
)

// Option mutates kernel configuration.
type Option func(*config)

type config struct {
	moduleHookTimeout time.Duration
	shutdownTimeout   time.Duration
}

func defaultConfig() config {
	return config{
		moduleHookTimeout: defaultModuleHookTimeout,
		shutdownTimeout:   defaultShutdownTimeout,
	}
}

// WithModuleHookTimeout bounds each module lifecycle hook invocation.
func WithModuleHookTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		if timeout > 0 {
			cfg.moduleHookTimeout = timeout
		}
	}
}

// WithShutdownTimeout bounds the orderly shutdown window.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(cfg *config) {
		if timeout > 0 {
			cfg.shutdownTimeout = timeout
		}
	}
}

// Kernel is the framework core orchestrating modules and command dispatch.
type Kernel struct {
	cfg config

	services   *ServiceRegistry
	dispatcher *Dispatcher

	mu          sync.RWMutex
	modules     map[string]guildkeep.Module
	moduleOrder []string

	runMu   sync.Mutex
	running bool
}

// New creates a new kernel runtime.
func New(dispatcher *Dispatcher, options ...Option) *Kernel {
	cfg := defaultConfig()
	for _, option := range options {
		option(&cfg)
	}

	return &Kernel{
		cfg:         cfg,
		services:    NewServiceRegistry(),
		dispatcher:  dispatcher,
		modules:     make(map[string]guildkeep.Module),
		moduleOrder: make([]string, 0),
	}
}

// Services exposes the kernel service registry.
func (k *Kernel) Services() guildkeep.ServiceRegistry {
	return k.services
}

// Dispatcher exposes the command dispatcher to integration code.
func (k *Kernel) Dispatcher() *Dispatcher {
	return k.dispatcher
}

// RegisterService registers a runtime service singleton.
func (k *Kernel) RegisterService(name string, service any) error {
	if err := k.services.Register(name, service); err != nil {
		return fmt.Errorf("register service %s: %w", name, err)
	}

	return nil
}

// RegisterModule registers a lifecycle-aware module and runs its OnRegister hook.
func (k *Kernel) RegisterModule(ctx context.Context, module guildkeep.Module) error {
	if module == nil {
		return fmt.Errorf("register module: nil module")
	}
	name := module.Name()
	if name == "" {
		return fmt.Errorf("register module: empty module name")
	}

	k.mu.Lock()
	if _, exists := k.modules[name]; exists {
		k.mu.Unlock()
		return fmt.Errorf("register module %s: %w", name, guildkeep.ErrModuleAlreadyRegistered)
	}
	k.modules[name] = module
	k.moduleOrder = append(k.moduleOrder, name)
	k.mu.Unlock()

	runtime := &moduleRuntime{
		moduleName: name,
		services:   k.services,
		dispatcher: k.dispatcher,
	}

	hookCtx, cancel := context.WithTimeout(ctx, k.cfg.moduleHookTimeout)
	defer cancel()

	if err := runSafely("module "+name+" OnRegister", func() error {
		return module.OnRegister(hookCtx, runtime)
	}); err != nil {
		k.rollbackModuleRegistration(name)
		return fmt.Errorf("register module %s: %w", name, err)
	}

	return nil
}

// Run starts modules and blocks until cancellation, then shuts them down.
func (k *Kernel) Run(ctx context.Context) error {
	if err := k.startRun(); err != nil {
		return err
	}
	defer k.finishRun()

	if err := k.startModules(ctx); err != nil {
		shutdownErr := k.shutdownModules(ctx)
		if shutdownErr != nil {
			return errors.Join(err, shutdownErr)
		}

		return err
	}

	<-ctx.Done()

	return k.shutdownModules(ctx)
}

// startRun serializes Run invocations and rejects concurrent starts.
func (k *Kernel) startRun() error {
	k.runMu.Lock()
	defer k.runMu.Unlock()

	if k.running {
		return fmt.Errorf("kernel run: already running")
	}
	k.running = true

	return nil
}

// finishRun releases the single-run guard set by startRun.
func (k *Kernel) finishRun() {
	k.runMu.Lock()
	k.running = false
	k.runMu.Unlock()
}

// startModules invokes OnStart in registration order with per-module timeouts.
func (k *Kernel) startModules(ctx context.Context) error {
	for _, name := range k.moduleSnapshotOrder() {
		module := k.moduleByName(name)
		if module == nil {
			continue
		}
		hookCtx, cancel := context.WithTimeout(ctx, k.cfg.moduleHookTimeout)
		err := runSafely("module "+name+" OnStart", func() error {
			return module.OnStart(hookCtx)
		})
		cancel()
		if err != nil {
			return fmt.Errorf("start module %s: %w", name, err)
		}
	}

	return nil
}

// shutdownModules invokes OnShutdown in reverse registration order.
// It uses WithoutCancel so cleanup still runs after parent cancellation.
func (k *Kernel) shutdownModules(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.cfg.shutdownTimeout)
	defer cancel()

	order := k.moduleSnapshotOrder()

	var shutdownErr error
	for idx := len(order) - 1; idx >= 0; idx-- {
		name := order[idx]
		module := k.moduleByName(name)
		if module == nil {
			continue
		}
		hookCtx, hookCancel := context.WithTimeout(shutdownCtx, k.cfg.moduleHookTimeout)
		err := runSafely("module "+name+" OnShutdown", func() error {
			return module.OnShutdown(hookCtx)
		})
		hookCancel()
		if err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown module %s: %w", name, err))
		}
	}

	if shutdownErr != nil {
		return fmt.Errorf("kernel shutdown: %w", shutdownErr)
	}

	return nil
}

// rollbackModuleRegistration removes a module after a failed OnRegister hook.
// Commands it already bound stay registered; module registration is a startup
// path and a failed hook aborts the process before dispatch begins.
func (k *Kernel) rollbackModuleRegistration(name string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.modules, name)
	k.moduleOrder = removeOrderedName(k.moduleOrder, name)
}

func (k *Kernel) moduleSnapshotOrder() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return append([]string(nil), k.moduleOrder...)
}

func (k *Kernel) moduleByName(name string) guildkeep.Module {
	k.mu.RLock()
	defer k.mu.RUnlock()

	return k.modules[name]
}

// removeOrderedName removes one name while preserving remaining order.
func removeOrderedName(ordered []string, target string) []string {
	filtered := make([]string, 0, len(ordered))
	for _, item := range ordered {
		if item != target {
			filtered = append(filtered, item)
		}
	}

	return filtered
}
