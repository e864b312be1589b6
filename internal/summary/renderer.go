// Package summary keeps one live channel message consistent with registry
// state: a pure renderer, a reconciler that converges the channel onto the
// rendered text, and a projector composing both behind the mutation gate.
package summary

import (
	"fmt"
	"strings"
)

// Line is one rendered summary row.
type Line struct {
	// Primary is the leading field of the row.
	Primary string
	// Secondary is the comma-joined trailing field list of the row.
	Secondary []string
}

// RendererConfig declares the fixed framing of one summary layout.
type RendererConfig struct {
	// Title is the fixed leading line.
	Title string
	// EmptyText is the body rendered when the registry has zero records.
	EmptyText string
	// TrailingNote is the fixed closing line appended after a non-empty body.
	TrailingNote string
}

// Renderer turns a registry snapshot into summary text.
//
// Render is pure and total: no I/O, no randomness, and re-rendering the same
// snapshot yields byte-identical output.
type Renderer struct {
	cfg RendererConfig
}

// NewRenderer creates a renderer with a fixed layout.
func NewRenderer(cfg RendererConfig) (*Renderer, error) {
	if strings.TrimSpace(cfg.Title) == "" {
		return nil, fmt.Errorf("new renderer: missing title")
	}
	if cfg.EmptyText == "" {
		cfg.EmptyText = "*No entries yet.*"
	}

	return &Renderer{cfg: cfg}, nil
}

// Render produces the canonical summary text for one snapshot.
func (r *Renderer) Render(lines []Line) string {
	var builder strings.Builder
	builder.WriteString(r.cfg.Title)
	builder.WriteString("\n")

	if len(lines) == 0 {
		builder.WriteString(r.cfg.EmptyText)
		return builder.String()
	}

	for _, line := range lines {
		builder.WriteString("**")
		builder.WriteString(line.Primary)
		if len(line.Secondary) > 0 {
			builder.WriteString(" | ")
			builder.WriteString(strings.Join(line.Secondary, ", "))
		}
		builder.WriteString("**\n")
	}

	if r.cfg.TrailingNote != "" {
		builder.WriteString("\n")
		builder.WriteString(r.cfg.TrailingNote)
	}

	return builder.String()
}
