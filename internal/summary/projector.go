package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"guildkeep/internal/registry"
	"guildkeep/pkg/guildkeep"
)

// SummaryStatus reports how one summary projection pass ended.
type SummaryStatus string

const (
	// SummarySynced means the live message carries the current summary text.
	SummarySynced SummaryStatus = "synced"
	// SummaryDegraded means reconciliation failed; the registry is still consistent.
	SummaryDegraded SummaryStatus = "degraded"
	// SummaryUnavailable means the target channel cannot be used at all.
	SummaryUnavailable SummaryStatus = "unavailable"
)

// SummaryOutcome is the secondary result of one projected mutation.
type SummaryOutcome struct {
	// Status reports how the reconciliation pass ended.
	Status SummaryStatus
	// LiveMessageID is the adopted live message id when synced.
	LiveMessageID string
	// Err carries the reconciliation failure when not synced.
	Err error
}

// ProjectorOption mutates projector configuration.
type ProjectorOption func(*Projector)

// WithProjectorLogger injects a logger directly, bypassing service lookup.
func WithProjectorLogger(logger *slog.Logger) ProjectorOption {
	return func(p *Projector) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Projector runs registry mutations and summary reconciliation as one
// serialized unit behind the mutation gate.
//
// Registry mutation and summary projection are decoupled failure domains:
// a reconciliation failure is reported in the SummaryOutcome and logged as a
// warning, never merged into the mutation result.
type Projector struct {
	gate       *registry.Gate
	render     func() []Line
	renderer   *Renderer
	reconciler *Reconciler
	logger     *slog.Logger
}

// NewProjector creates a projector over one registry's gate and summary target.
//
// render must produce the summary rows from the registry's current state; it
// is invoked after the mutation has been persisted, still inside the gate.
func NewProjector(
	gate *registry.Gate,
	renderer *Renderer,
	reconciler *Reconciler,
	render func() []Line,
	options ...ProjectorOption,
) (*Projector, error) {
	if gate == nil {
		return nil, fmt.Errorf("new projector: nil gate")
	}
	if renderer == nil {
		return nil, fmt.Errorf("new projector: nil renderer")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("new projector: nil reconciler")
	}
	if render == nil {
		return nil, fmt.Errorf("new projector: nil render source")
	}

	p := &Projector{
		gate:       gate,
		render:     render,
		renderer:   renderer,
		reconciler: reconciler,
		logger:     slog.Default(),
	}
	for _, option := range options {
		option(p)
	}

	return p, nil
}

// Apply runs one summary-affecting mutation under the gate.
//
// When mutate fails nothing is projected and its error passes through
// verbatim. When mutate succeeds the mutation is already durable, so the
// subsequent reconciliation is best-effort and reported via SummaryOutcome.
func (p *Projector) Apply(ctx context.Context, mutate func(ctx context.Context) error) (SummaryOutcome, error) {
	var outcome SummaryOutcome
	err := p.gate.Do(ctx, func(ctx context.Context) error {
		if err := mutate(ctx); err != nil {
			return err
		}
		outcome = p.project(ctx)

		return nil
	})
	if err != nil {
		return SummaryOutcome{}, err
	}

	return outcome, nil
}

// Refresh reconciles the summary against current registry state without
// mutating anything, e.g. after startup hydration.
func (p *Projector) Refresh(ctx context.Context) SummaryOutcome {
	var outcome SummaryOutcome
	gateErr := p.gate.Do(ctx, func(ctx context.Context) error {
		outcome = p.project(ctx)

		return nil
	})
	if gateErr != nil {
		return SummaryOutcome{Status: SummaryDegraded, Err: gateErr}
	}

	return outcome
}

func (p *Projector) project(ctx context.Context) SummaryOutcome {
	text := p.renderer.Render(p.render())

	liveID, err := p.reconciler.Reconcile(ctx, text)
	if err == nil {
		return SummaryOutcome{Status: SummarySynced, LiveMessageID: liveID}
	}

	status := SummaryDegraded
	if errors.Is(err, guildkeep.ErrChannelUnavailable) {
		status = SummaryUnavailable
	}
	p.logger.WarnContext(ctx, "summary reconciliation failed",
		"status", string(status),
		"error", err,
	)

	return SummaryOutcome{Status: status, Err: err}
}
