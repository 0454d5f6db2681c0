package render

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/hilvik/vivum-demo-v1/internal/model"
)

var noticeStyle = lipgloss.NewStyle().Faint(true).Italic(true)

// Transcript draws engine events. User turns are not drawn since the
// terminal already shows what was typed.
type Transcript struct {
	w        io.Writer
	renderer Renderer
	live     *Live

	// shown is the ID of the last assistant turn drawn; open means its
	// reveal is still being painted in the live block.
	shown string
	open  bool
}

// NewTranscript creates a transcript writing to w.
func NewTranscript(w io.Writer, r Renderer) *Transcript {
	return &Transcript{
		w:        w,
		renderer: r,
		live:     NewLive(w, r),
	}
}

// Show draws a complete conversation, e.g. the initial snapshot.
func (t *Transcript) Show(turns []model.Turn) error {
	for _, turn := range turns {
		if turn.Role != model.RoleAssistant {
			continue
		}
		if err := t.draw(turn); err != nil {
			return err
		}
	}
	return nil
}

// Handle applies one event.
func (t *Transcript) Handle(ev model.Event) error {
	switch ev.Type {
	case model.EventTypeTurnAppended:
		if ev.Turn == nil || ev.Turn.Role != model.RoleAssistant {
			return nil
		}
		return t.draw(*ev.Turn)

	case model.EventTypeTurnRevealed:
		return t.live.Update(ev.Revealed)

	case model.EventTypeRevealCompleted:
		if err := t.live.Update(ev.Revealed); err != nil {
			return err
		}
		t.commit()

	case model.EventTypeReset:
		t.commit()
		t.shown = ""
		_, err := fmt.Fprintln(t.w, noticeStyle.Render("conversation reset"))
		return err
	}
	return nil
}

// Resync brings the transcript up to date with snap after events were
// missed. The open reveal is repainted and assistant turns appended since
// are drawn. If the conversation was reset in the meantime it is redrawn
// from the start.
func (t *Transcript) Resync(snap model.Snapshot) error {
	start := -1
	for i, turn := range snap.Turns {
		if turn.ID == t.shown {
			start = i
			break
		}
	}

	if start < 0 {
		t.commit()
		if t.shown != "" {
			t.shown = ""
			if _, err := fmt.Fprintln(t.w, noticeStyle.Render("conversation reset")); err != nil {
				return err
			}
		}
		return t.Show(snap.Turns)
	}

	if current := snap.Turns[start]; t.open && current.Revealed != "" {
		if err := t.live.Update(current.Revealed); err != nil {
			return err
		}
		if !current.Revealing() {
			t.commit()
		}
	}
	return t.Show(snap.Turns[start+1:])
}

func (t *Transcript) draw(turn model.Turn) error {
	t.commit()
	t.shown = turn.ID
	t.open = turn.Revealing()
	if turn.Revealed == "" {
		return nil
	}
	if err := t.live.Update(turn.Revealed); err != nil {
		return err
	}
	if !t.open {
		t.commit()
	}
	return nil
}

func (t *Transcript) commit() {
	t.live.Commit()
	t.open = false
}
