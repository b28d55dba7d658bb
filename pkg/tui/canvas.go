package tui

import (
	"fmt"
	"math"

	"github.com/salahayoub/hotviz/pkg/anim"
	"github.com/salahayoub/hotviz/pkg/topology"
)

// Node glyphs by role.
const (
	glyphRoot        = '◆'
	glyphGroupLeader = '●'
	glyphMember      = '○'
	glyphMarker      = '•'
	glyphEdge        = '·'
)

// Canvas draws layouts and moving markers into a cell buffer. Layout
// coordinates are scaled from the layout's own canvas to the cell grid.
//
// Canvas implements anim.Surface.
type Canvas struct {
	buf    *Buffer
	layout *topology.Layout

	consensus    int
	hasConsensus bool
	markers      int
}

var _ anim.Surface = (*Canvas)(nil)

// NewCanvas creates a canvas of width x height cells.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{buf: NewBuffer(max(width, 1), max(height, 1))}
}

// Resize replaces the cell grid. The last layout is redrawn.
func (c *Canvas) Resize(width, height int) {
	if width == c.buf.Width && height == c.buf.Height {
		return
	}
	c.buf = NewBuffer(max(width, 1), max(height, 1))
	if c.layout != nil {
		c.DrawTopology(c.layout)
	}
}

// Buffer returns the cell grid.
func (c *Canvas) Buffer() *Buffer {
	return c.buf
}

// Markers returns how many markers were drawn since the last topology draw.
func (c *Canvas) Markers() int {
	return c.markers
}

// Consensus returns the value shown by ShowConsensus, if any.
func (c *Canvas) Consensus() (int, bool) {
	return c.consensus, c.hasConsensus
}

// ClearConsensus hides the consensus banner from the next redraw on.
func (c *Canvas) ClearConsensus() {
	c.hasConsensus = false
}

// project maps a layout point to a cell.
func (c *Canvas) project(space topology.Canvas, x, y float64) (int, int) {
	w, h := space.Width, space.Height
	if w <= 0 || h <= 0 {
		w, h = topology.DefaultCanvas.Width, topology.DefaultCanvas.Height
	}
	cx := int(math.Round(x / w * float64(c.buf.Width-1)))
	cy := int(math.Round(y / h * float64(c.buf.Height-1)))
	return cx, cy
}

// DrawTopology clears the grid and draws edges, then nodes on top.
func (c *Canvas) DrawTopology(layout *topology.Layout) {
	c.layout = layout
	c.markers = 0
	c.buf.Clear()
	if layout == nil {
		return
	}

	for _, e := range layout.Edges() {
		from, ok1 := layout.At(e.From)
		to, ok2 := layout.At(e.To)
		if !ok1 || !ok2 {
			continue
		}
		x0, y0 := c.project(layout.Canvas, from.X, from.Y)
		x1, y1 := c.project(layout.Canvas, to.X, to.Y)
		c.buf.DrawLine(x0, y0, x1, y1, glyphEdge, CurrentStyles.Edge)
	}

	for id, pos := range layout.Positions {
		x, y := c.project(layout.Canvas, pos.X, pos.Y)
		c.buf.Set(x, y, nodeGlyph(pos.Role), CurrentStyles.Node(pos.Color))
		c.buf.DrawString(x+1, y, fmt.Sprintf("%d", id), CurrentStyles.Muted)
	}

	if c.hasConsensus {
		c.drawConsensus()
	}
}

func nodeGlyph(r topology.Role) rune {
	switch r {
	case topology.RoleRoot:
		return glyphRoot
	case topology.RoleGroupLeader:
		return glyphGroupLeader
	default:
		return glyphMember
	}
}

// DrawMarker draws a unit at its interpolated position, green when it
// carries the expected value and red otherwise.
func (c *Canvas) DrawMarker(u *anim.Unit, correct bool) {
	space := topology.DefaultCanvas
	if c.layout != nil {
		space = c.layout.Canvas
	}
	px, py := u.Point()
	x, y := c.project(space, px, py)
	style := CurrentStyles.MarkerBad
	if correct {
		style = CurrentStyles.MarkerOK
	}
	c.buf.Set(x, y, glyphMarker, style)
	c.markers++
}

// ShowConsensus draws the decided value banner.
func (c *Canvas) ShowConsensus(value int) {
	c.consensus = value
	c.hasConsensus = true
	c.drawConsensus()
}

func (c *Canvas) drawConsensus() {
	text := fmt.Sprintf(" consensus reached: %d ", c.consensus)
	c.buf.DrawStringAligned(0, c.buf.Height-1, c.buf.Width, text, CurrentStyles.Success.Bold(true), AlignCenter)
}
