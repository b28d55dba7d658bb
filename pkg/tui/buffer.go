package tui

import (
	"github.com/gdamore/tcell/v2"
)

// Cell represents a single character in the terminal.
type Cell struct {
	Rune  rune
	Style tcell.Style
}

// Buffer acts as an off-screen render target.
type Buffer struct {
	Cells  [][]Cell
	Width  int
	Height int
}

// NewBuffer creates a new buffer of the specified size.
func NewBuffer(width, height int) *Buffer {
	cells := make([][]Cell, height)
	for y := 0; y < height; y++ {
		cells[y] = make([]Cell, width)
		// Initialize with empty space
		for x := 0; x < width; x++ {
			cells[y][x] = Cell{Rune: ' ', Style: CurrentStyles.Normal}
		}
	}
	return &Buffer{
		Cells:  cells,
		Width:  width,
		Height: height,
	}
}

// Clear resets every cell to a blank in the normal style.
func (b *Buffer) Clear() {
	b.FillRect(0, 0, b.Width, b.Height, ' ', CurrentStyles.Normal)
}

// ApplyToScreen copies the buffer onto screen at the given offset.
func (b *Buffer) ApplyToScreen(screen tcell.Screen, offsetX, offsetY int) {
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			cell := b.Cells[y][x]
			screen.SetContent(offsetX+x, offsetY+y, cell.Rune, nil, cell.Style)
		}
	}
}

// Set writes a rune to the buffer at the specified coordinates.
func (b *Buffer) Set(x, y int, r rune, style tcell.Style) {
	if x >= 0 && x < b.Width && y >= 0 && y < b.Height {
		b.Cells[y][x] = Cell{Rune: r, Style: style}
	}
}

// DrawString writes a string to the buffer at (x, y).
func (b *Buffer) DrawString(x, y int, s string, style tcell.Style) {
	if y < 0 || y >= b.Height {
		return
	}

	col := x
	for _, r := range s {
		if col >= b.Width {
			break
		}
		if col >= 0 {
			b.Cells[y][col] = Cell{Rune: r, Style: style}
		}
		col++
	}
}

// DrawBox draws a border box.
func (b *Buffer) DrawBox(x, y, w, h int, style tcell.Style) {
	if w < 2 || h < 2 {
		return
	}

	// Corners
	b.Set(x, y, '╭', style)
	b.Set(x+w-1, y, '╮', style)
	b.Set(x, y+h-1, '╰', style)
	b.Set(x+w-1, y+h-1, '╯', style)

	// Horizontal
	for i := 1; i < w-1; i++ {
		b.Set(x+i, y, '─', style)
		b.Set(x+i, y+h-1, '─', style)
	}

	// Vertical
	for i := 1; i < h-1; i++ {
		b.Set(x, y+i, '│', style)
		b.Set(x+w-1, y+i, '│', style)
	}
}

// FillRect fills a rectangle with a specific rune and style.
func (b *Buffer) FillRect(x, y, w, h int, r rune, style tcell.Style) {
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			b.Set(x+j, y+i, r, style)
		}
	}
}

// Alignment values for DrawStringAligned.
const (
	AlignLeft = iota
	AlignCenter
	AlignRight
)

// DrawStringAligned writes s within width columns starting at x.
func (b *Buffer) DrawStringAligned(x, y, width int, s string, style tcell.Style, align int) {
	runes := []rune(s)
	spaces := width - len(runes)
	if spaces < 0 {
		runes = runes[:width]
		spaces = 0
	}
	s = string(runes)

	startX := x
	switch align {
	case AlignCenter:
		startX = x + spaces/2
	case AlignRight:
		startX = x + spaces
	}

	b.DrawString(startX, y, s, style)
}

// DrawLine draws a straight line of r between two cells (Bresenham).
// Endpoints are not drawn so node glyphs stay visible.
func (b *Buffer) DrawLine(x0, y0, x1, y1 int, r rune, style tcell.Style) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	x, y := x0, y0
	for {
		if (x != x0 || y != y0) && (x != x1 || y != y1) {
			b.Set(x, y, r, style)
		}
		if x == x1 && y == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// DrawBar draws a progress bar. fraction is in [0, 1].
func (b *Buffer) DrawBar(x, y, width int, fraction float64, fg, bg tcell.Style) {
	if fraction < 0 {
		fraction = 0
	}
	filledWidth := int(float64(width) * fraction)
	if filledWidth > width {
		filledWidth = width
	}

	// Draw full blocks
	b.FillRect(x, y, filledWidth, 1, '█', fg)

	// Draw empty background
	b.FillRect(x+filledWidth, y, width-filledWidth, 1, '░', bg)
}

// Blit copies src into b with its top-left corner at (x, y).
func (b *Buffer) Blit(src *Buffer, x, y int) {
	for row := 0; row < src.Height; row++ {
		for col := 0; col < src.Width; col++ {
			c := src.Cells[row][col]
			b.Set(x+col, y+row, c.Rune, c.Style)
		}
	}
}
