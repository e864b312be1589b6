// Package kernel hosts the runtime glue between the command framework
// boundary and modules: service injection, command dispatch with role
// enforcement, and module lifecycle.
package kernel

import (
	"fmt"
	"sync"

	"guildkeep/pkg/guildkeep"
)

// ServiceRegistry holds named service singletons shared across modules.
//
// Bindings happen during composition, before any module starts; Resolve is
// safe for concurrent command handlers afterward.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]any
}

// NewServiceRegistry creates an empty service registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{services: make(map[string]any)}
}

// Register binds service to name. Each name binds once; a second binding
// fails with ErrServiceAlreadyRegistered.
func (r *ServiceRegistry) Register(name string, service any) error {
	if err := validateServiceName("register", name); err != nil {
		return err
	}
	if service == nil {
		return fmt.Errorf("register service %s: nil service", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.services[name]; taken {
		return fmt.Errorf("register service %s: %w", name, guildkeep.ErrServiceAlreadyRegistered)
	}
	r.services[name] = service

	return nil
}

// Resolve looks up the service bound to name.
func (r *ServiceRegistry) Resolve(name string) (any, error) {
	if err := validateServiceName("resolve", name); err != nil {
		return nil, err
	}

	r.mu.RLock()
	service, bound := r.services[name]
	r.mu.RUnlock()

	if !bound {
		return nil, fmt.Errorf("resolve service %s: %w", name, guildkeep.ErrServiceNotFound)
	}

	return service, nil
}

func validateServiceName(verb, name string) error {
	if name == "" {
		return fmt.Errorf("%s service: empty name", verb)
	}

	return nil
}

var _ guildkeep.ServiceRegistry = (*ServiceRegistry)(nil)
