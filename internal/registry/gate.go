package registry

import (
	"context"
	"fmt"
)

// Gate serializes every mutating operation against one registry instance.
//
// The critical section spans read-modify-write of the snapshot, persistence,
// and any summary reconciliation triggered by the mutation; the completed
// mutation order is the admission order. A caller that gives up before
// admission fails fast with its context error; once admitted the section runs
// to completion because persisted mutations are final.
type Gate struct {
	slot chan struct{}
}

// NewGate creates an idle mutation gate.
func NewGate() *Gate {
	return &Gate{slot: make(chan struct{}, 1)}
}

// Do runs fn while holding exclusive mutation admission.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("mutation gate: nil section")
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("mutation gate admit: %w", ctx.Err())
	case g.slot <- struct{}{}:
	}
	defer func() { <-g.slot }()

	return fn(ctx)
}
