package guildkeep

import "errors"

var (
	// ErrDuplicate indicates an add with a natural key that already exists.
	ErrDuplicate = errors.New("guildkeep: duplicate record")
	// ErrNotFound indicates a selector that matches no record.
	ErrNotFound = errors.New("guildkeep: record not found")
	// ErrCapacityExceeded indicates an add against a full registry.
	ErrCapacityExceeded = errors.New("guildkeep: registry capacity exceeded")
	// ErrChannelUnavailable indicates the summary target channel cannot be used.
	ErrChannelUnavailable = errors.New("guildkeep: channel unavailable")
	// ErrNotAuthorized indicates a caller without the required role.
	ErrNotAuthorized = errors.New("guildkeep: caller not authorized")
	// ErrUnknownCommand indicates an invocation for an unregistered command.
	ErrUnknownCommand = errors.New("guildkeep: unknown command")
	// ErrCommandAlreadyRegistered indicates duplicate command registration.
	ErrCommandAlreadyRegistered = errors.New("guildkeep: command already registered")
	// ErrServiceAlreadyRegistered indicates duplicate service registration.
	ErrServiceAlreadyRegistered = errors.New("guildkeep: service already registered")
	// ErrServiceNotFound indicates a service lookup miss.
	ErrServiceNotFound = errors.New("guildkeep: service not found")
	// ErrModuleAlreadyRegistered indicates duplicate module registration.
	ErrModuleAlreadyRegistered = errors.New("guildkeep: module already registered")
)
