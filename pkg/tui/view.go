package tui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
)

// BorderStyle defines the characters used for panel borders.
type BorderStyle struct {
	TopLeft     rune
	TopRight    rune
	BottomLeft  rune
	BottomRight rune
	Horizontal  rune
	Vertical    rune
}

// NormalBorder is the default border style for unfocused panels.
// Uses single-line box drawing characters (┌─┐│└┘).
var NormalBorder = BorderStyle{
	TopLeft:     '┌',
	TopRight:    '┐',
	BottomLeft:  '└',
	BottomRight: '┘',
	Horizontal:  '─',
	Vertical:    '│',
}

// FocusedBorder is the border style for focused panels with distinct styling.
// Uses double-line box drawing characters (╔═╗║╚╝).
var FocusedBorder = BorderStyle{
	TopLeft:     '╔',
	TopRight:    '╗',
	BottomLeft:  '╚',
	BottomRight: '╝',
	Horizontal:  '═',
	Vertical:    '║',
}

// Rect is a cell rectangle.
type Rect struct {
	X, Y, W, H int
}

// Inner returns the rectangle inside a one-cell border.
func (r Rect) Inner() Rect {
	return Rect{X: r.X + 1, Y: r.Y + 1, W: max(r.W-2, 0), H: max(r.H-2, 0)}
}

// Regions is the screen split computed for one frame.
type Regions struct {
	Header  Rect
	Notice  Rect
	Canvas  Rect
	Status  Rect
	Legend  Rect
	Events  Rect
	Command Rect
	Footer  Rect
}

// commandHeight is the command panel height including borders.
const commandHeight = 4

// legendHeight is the legend panel height including borders.
const legendHeight = 8

// Split divides a width x height screen. The canvas takes two thirds of
// the width; the right column stacks status, legend and events. The
// command panel is only laid out while it has focus.
func Split(width, height int, commandOpen bool) Regions {
	var r Regions
	r.Header = Rect{0, 0, width, 1}
	r.Notice = Rect{0, 1, width, 1}
	r.Footer = Rect{0, max(height-1, 0), width, 1}

	bodyTop := 2
	bodyBottom := height - 1
	if commandOpen {
		r.Command = Rect{0, bodyBottom - commandHeight, width, commandHeight}
		bodyBottom -= commandHeight
	}
	bodyH := max(bodyBottom-bodyTop, 0)

	left := width * 2 / 3
	r.Canvas = Rect{0, bodyTop, left, bodyH}

	rightW := width - left
	statusH := min(11, bodyH)
	r.Status = Rect{left, bodyTop, rightW, statusH}
	legendH := min(legendHeight, bodyH-statusH)
	r.Legend = Rect{left, bodyTop + statusH, rightW, legendH}
	r.Events = Rect{left, bodyTop + statusH + legendH, rightW, max(bodyH-statusH-legendH, 0)}
	return r
}

// View composes the model and the canvas into a screen buffer.
type View struct {
	header       *HeaderBar
	footer       *FooterBar
	statusPanel  *StatusPanel
	legendPanel  *LegendPanel
	eventsPanel  *EventsPanel
	commandPanel *CommandPanel
}

// NewView creates a new View with all panel renderers initialized.
func NewView() *View {
	return &View{
		header:       NewHeaderBar(DetectUnicodeSupport()),
		footer:       NewFooterBar(80),
		statusPanel:  NewStatusPanel(),
		legendPanel:  NewLegendPanel(),
		eventsPanel:  NewEventsPanel(),
		commandPanel: NewCommandPanel(),
	}
}

// CanvasRect returns the cells available to the topology canvas.
func (v *View) CanvasRect(model *Model, width, height int) Rect {
	return Split(width, height, model.ActivePanel == PanelCommand).Canvas.Inner()
}

// Render draws the full frame into a new buffer.
func (v *View) Render(model *Model, canvas *Canvas, width, height int) *Buffer {
	buf := NewBuffer(width, height)
	regions := Split(width, height, model.ActivePanel == PanelCommand)

	buf.DrawString(0, 0, v.header.Render(model), CurrentStyles.Header)

	switch {
	case !model.Connected:
		buf.DrawString(0, 1, v.RenderConnectionStatus(model), CurrentStyles.Error)
	case model.Annotation != "":
		buf.DrawString(0, 1, model.Annotation, CurrentStyles.Warning.Bold(true))
	case model.ErrorMessage != "" && model.ActivePanel != PanelCommand:
		buf.DrawString(0, 1, model.ErrorMessage, CurrentStyles.Error)
	}

	drawPanel(buf, regions.Canvas, PanelCanvas.String(), model.ActivePanel == PanelCanvas)
	if canvas != nil {
		inner := regions.Canvas.Inner()
		cb := canvas.Buffer()
		if cb.Width == inner.W && cb.Height == inner.H {
			buf.Blit(cb, inner.X, inner.Y)
		}
	}

	drawPanel(buf, regions.Status, "Status", false)
	drawText(buf, regions.Status.Inner(), v.statusPanel.Render(model), CurrentStyles.Normal)

	drawPanel(buf, regions.Legend, "Legend", false)
	legendArea := regions.Legend.Inner()
	for i, e := range v.legendPanel.Entries() {
		if i >= legendArea.H {
			break
		}
		buf.Set(legendArea.X, legendArea.Y+i, e.Glyph, CurrentStyles.Node(e.Color))
		buf.DrawString(legendArea.X+2, legendArea.Y+i, clip(e.Label, legendArea.W-2), CurrentStyles.Muted)
	}

	drawPanel(buf, regions.Events, PanelEvents.String(), model.ActivePanel == PanelEvents)
	eventsArea := regions.Events.Inner()
	drawText(buf, eventsArea, v.eventsPanel.Render(model.Events, eventsArea.H), CurrentStyles.Muted)

	if model.ActivePanel == PanelCommand {
		drawPanel(buf, regions.Command, PanelCommand.String(), true)
		style := CurrentStyles.Normal
		if model.ErrorMessage != "" {
			style = CurrentStyles.Error
		}
		drawText(buf, regions.Command.Inner(), v.commandPanel.Render(model.CommandInput, model.CommandOutput, model.ErrorMessage), style)
	}

	v.footer.SetWidth(width)
	buf.DrawString(0, regions.Footer.Y, v.footer.Render(model.ActivePanel == PanelCommand), CurrentStyles.Muted)
	return buf
}

// RenderConnectionStatus renders the connection status indicator.
// Shows reconnection attempt count when disconnected.
func (v *View) RenderConnectionStatus(model *Model) string {
	if model.Connected {
		return ""
	}
	s := "*** DISCONNECTED ***"
	if model.ReconnectAttempts > 0 {
		s += " Reconnection attempts: " + strings.Repeat(".", model.ReconnectAttempts)
	}
	return s
}

// drawPanel draws a titled border around r.
func drawPanel(buf *Buffer, r Rect, title string, focused bool) {
	if r.W < 2 || r.H < 2 {
		return
	}
	border := NormalBorder
	style := CurrentStyles.Border
	if focused {
		border = FocusedBorder
		style = CurrentStyles.BorderFocus
	}

	buf.Set(r.X, r.Y, border.TopLeft, style)
	buf.Set(r.X+r.W-1, r.Y, border.TopRight, style)
	buf.Set(r.X, r.Y+r.H-1, border.BottomLeft, style)
	buf.Set(r.X+r.W-1, r.Y+r.H-1, border.BottomRight, style)
	for i := 1; i < r.W-1; i++ {
		buf.Set(r.X+i, r.Y, border.Horizontal, style)
		buf.Set(r.X+i, r.Y+r.H-1, border.Horizontal, style)
	}
	for i := 1; i < r.H-1; i++ {
		buf.Set(r.X, r.Y+i, border.Vertical, style)
		buf.Set(r.X+r.W-1, r.Y+i, border.Vertical, style)
	}
	if r.W > 6 {
		buf.DrawString(r.X+2, r.Y, clip(" "+title+" ", r.W-4), style.Bold(focused))
	}
}

// drawText writes newline separated lines into r, clipping both ways.
func drawText(buf *Buffer, r Rect, text string, style tcell.Style) {
	for i, line := range strings.Split(text, "\n") {
		if i >= r.H {
			return
		}
		buf.DrawString(r.X, r.Y+i, clip(line, r.W), style)
	}
}

func clip(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) > width {
		return string(runes[:width])
	}
	return s
}
