package render

import (
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// Live repaints a block of output in place as its content grows.
type Live struct {
	out      *termenv.Output
	renderer Renderer
	lines    int
}

// NewLive creates a Live block writing to w.
func NewLive(w io.Writer, r Renderer) *Live {
	return &Live{
		out:      termenv.NewOutput(w),
		renderer: r,
	}
}

// Update replaces the block with text.
func (l *Live) Update(text string) error {
	rendered, err := l.renderer.Render(text)
	if err != nil {
		return err
	}
	if l.lines > 0 {
		l.out.ClearLines(l.lines)
	}
	if _, err := l.out.WriteString(rendered); err != nil {
		return err
	}
	l.lines = strings.Count(rendered, "\n")
	return nil
}

// Commit ends the block; the next Update starts a new one below it.
func (l *Live) Commit() {
	l.lines = 0
}

// Lines returns how many lines the current block occupies.
func (l *Live) Lines() int {
	return l.lines
}
