package tui

import (
	"strings"
	"testing"

	"github.com/salahayoub/hotviz/pkg/types"
)

func TestSplit(t *testing.T) {
	r := Split(120, 40, false)
	if r.Canvas.W != 80 || r.Canvas.H != 37 {
		t.Errorf("unexpected canvas rect %+v", r.Canvas)
	}
	if r.Status.X != 80 || r.Status.W != 40 {
		t.Errorf("unexpected status rect %+v", r.Status)
	}
	if r.Events.Y+r.Events.H != 39 {
		t.Errorf("expected events to end above the footer, got %+v", r.Events)
	}
	if r.Command.H != 0 {
		t.Error("expected no command rect when closed")
	}

	open := Split(120, 40, true)
	if open.Command.H != commandHeight || open.Command.Y+open.Command.H != 39 {
		t.Errorf("unexpected command rect %+v", open.Command)
	}
	if open.Canvas.H != 37-commandHeight {
		t.Errorf("expected canvas to shrink for the command panel, got %d", open.Canvas.H)
	}
}

func TestSplit_Tiny(t *testing.T) {
	r := Split(10, 3, true)
	if r.Canvas.H < 0 || r.Events.H < 0 {
		t.Errorf("expected no negative heights, got %+v", r)
	}
	if inner := r.Canvas.Inner(); inner.W < 0 || inner.H < 0 {
		t.Errorf("expected clamped inner rect, got %+v", inner)
	}
}

func TestFooterBar(t *testing.T) {
	f := NewFooterBar(100)
	if got := f.Render(false); !strings.HasPrefix(got, "Space: Replay") {
		t.Errorf("unexpected full footer %q", got)
	}
	f.SetWidth(60)
	if got := f.Render(false); len(got) > 60 || !strings.Contains(got, "q:Quit") {
		t.Errorf("unexpected abbreviated footer %q", got)
	}
	if got := f.Render(true); !strings.Contains(got, "Enter") {
		t.Errorf("unexpected command footer %q", got)
	}
}

func TestHeaderBar(t *testing.T) {
	m := NewModel()
	m.Session = "s1"
	m.Config = types.SessionConfig{NodeCount: 4, BranchCount: 1}
	m.State.Phase = types.PhaseCommit
	m.State.Step = 2
	m.State.View = 6
	m.State.HasView = true

	got := NewHeaderBar(false).Render(m)
	for _, want := range []string{"hotviz s1", "n=4 k=1 single-layer", "Round -", "View 6", "commit/2", "[OK]"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected header %q to contain %q", got, want)
		}
	}

	m.Connected = false
	if got := NewHeaderBar(true).Render(m); !strings.Contains(got, "○") {
		t.Errorf("expected hollow link symbol when disconnected, got %q", got)
	}
}

func TestProgressBar(t *testing.T) {
	p := NewProgressBar(10)
	if got := p.Render(50); got != "[█████░░░░░]  50%" {
		t.Errorf("unexpected bar %q", got)
	}
	if got := p.Render(150); got != "[██████████] 100%" {
		t.Errorf("expected clamping, got %q", got)
	}
	if got := PlaybackPercentage(1, 4, 0.5); got != 37.5 {
		t.Errorf("expected 37.5, got %v", got)
	}
	if got := PlaybackPercentage(0, 0, 0); got != 100 {
		t.Errorf("expected an empty playlist to be complete, got %v", got)
	}
}

func TestEventsPanel(t *testing.T) {
	p := NewEventsPanel()
	if p.Render(nil, 5) != "No events" {
		t.Error("expected placeholder for an empty log")
	}
	events := []EventLine{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	if got := strings.Count(p.Render(events, 2), "\n"); got != 1 {
		t.Errorf("expected 2 lines, got %d", got+1)
	}
}

func TestView_RenderCommandPanel(t *testing.T) {
	m := NewModel()
	m.ActivePanel = PanelCommand
	m.CommandInput = "round 3"
	m.ErrorMessage = "round 3 not found"

	buf := NewView().Render(m, nil, 100, 30)
	text := bufferText(buf)
	if !strings.Contains(text, ":round 3_") {
		t.Error("expected the command prompt")
	}
	if !strings.Contains(text, "Error: round 3 not found") {
		t.Error("expected the command error")
	}
	if !strings.Contains(text, "No session loaded") {
		t.Error("expected the empty status text")
	}
}

func TestView_RenderDisconnected(t *testing.T) {
	m := NewModel()
	m.Connected = false
	m.ReconnectAttempts = 2

	buf := NewView().Render(m, nil, 100, 30)
	if row := bufferRow(buf, 1); !strings.Contains(row, "DISCONNECTED") || !strings.Contains(row, "..") {
		t.Errorf("unexpected notice row %q", row)
	}
}

func bufferRow(b *Buffer, y int) string {
	var sb strings.Builder
	for _, c := range b.Cells[y] {
		sb.WriteRune(c.Rune)
	}
	return sb.String()
}

func bufferText(b *Buffer) string {
	rows := make([]string, b.Height)
	for y := range rows {
		rows[y] = bufferRow(b, y)
	}
	return strings.Join(rows, "\n")
}
