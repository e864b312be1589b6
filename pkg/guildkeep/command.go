package guildkeep

import (
	"context"
	"fmt"
	"strings"
)

// Role identifies one authorization role supplied by the hosting framework.
type Role string

// RoleAdmin is the conventional role name gating registry mutations.
const RoleAdmin Role = "admin"

// Invocation carries one already-parsed command call from the hosting framework.
//
// Argument tokenization and validation happen upstream; the core only checks
// argument count against the bound command spec.
type Invocation struct {
	// Command is the normalized command name without prefix.
	Command string
	// Args stores the parsed argument tokens.
	Args []string
	// CallerID identifies the invoking caller.
	CallerID string
	// CallerName is the caller display name recorded on mutations.
	CallerName string
	// Roles lists the caller's role identifiers as supplied by the framework.
	Roles []Role
}

// Validate checks invocation contract fields.
func (i Invocation) Validate() error {
	if normalizeCommandName(i.Command) == "" {
		return fmt.Errorf("validate invocation: missing command")
	}
	if i.CallerID == "" {
		return fmt.Errorf("validate invocation: missing caller id")
	}

	return nil
}

// Reply is the success payload returned to the framework for rendering.
//
// The core produces only short status strings and rendered summary text; the
// framework owns final user-facing formatting.
type Reply struct {
	// Text is the short status or summary text.
	Text string
}

// Handler processes one authorized command invocation.
type Handler func(ctx context.Context, inv Invocation) (Reply, error)

// CommandSpec declares one module command registration.
type CommandSpec struct {
	// Name is the normalized command name without prefix.
	Name string
	// Description describes command behavior for diagnostics and help text.
	Description string
	// Usage is the short argument synopsis reported on argument-count misses.
	Usage string
	// RequiredRole gates this command; empty admits every caller.
	RequiredRole Role
	// MinArgs is the minimum accepted argument token count.
	MinArgs int
}

// Validate checks command specification coherence.
func (s CommandSpec) Validate() error {
	name := normalizeCommandName(s.Name)
	if name == "" {
		return fmt.Errorf("validate command spec: missing name")
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return fmt.Errorf("validate command spec: name %q contains whitespace", s.Name)
	}
	if s.MinArgs < 0 {
		return fmt.Errorf("validate command spec %s: negative min args", s.Name)
	}

	return nil
}

// IsAuthorized reports whether one caller role set satisfies a required role.
//
// This is the enforcement point only; role policy is defined by the hosting
// framework. An empty required role admits everyone.
func IsAuthorized(roles []Role, required Role) bool {
	if required == "" {
		return true
	}
	for _, role := range roles {
		if role == required {
			return true
		}
	}

	return false
}

func normalizeCommandName(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// NormalizeCommandName maps a raw command token onto its canonical form.
func NormalizeCommandName(value string) string {
	return normalizeCommandName(value)
}
