// Package render draws conversation turns in a terminal.
package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer turns turn content into terminal output.
type Renderer interface {
	Render(markdown string) (string, error)
}

// Markdown renders content with glamour.
type Markdown struct {
	renderer *glamour.TermRenderer
}

// NewMarkdown creates a glamour renderer wrapping at width columns.
func NewMarkdown(width int) (*Markdown, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &Markdown{renderer: r}, nil
}

// Render renders markdown, falling back to the raw text on failure.
func (m *Markdown) Render(markdown string) (string, error) {
	out, err := m.renderer.Render(markdown)
	if err != nil {
		return markdown, err
	}
	return out, nil
}

// Plain passes content through with a trailing newline.
type Plain struct{}

// Render returns markdown unchanged.
func (Plain) Render(markdown string) (string, error) {
	if markdown == "" || strings.HasSuffix(markdown, "\n") {
		return markdown, nil
	}
	return markdown + "\n", nil
}
