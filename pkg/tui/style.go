package tui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/salahayoub/hotviz/pkg/topology"
)

// Theme defines the color palette for the application.
type Theme struct {
	Primary    tcell.Color
	Background tcell.Color
	Text       tcell.Color
	Muted      tcell.Color
	Success    tcell.Color
	Warning    tcell.Color
	Error      tcell.Color
	Highlight  tcell.Color

	// Node fills by role.
	Gold  tcell.Color
	Blue  tcell.Color
	Green tcell.Color
	Red   tcell.Color
}

// DefaultTheme defines the dark mode colors.
var DefaultTheme = Theme{
	Primary:    tcell.NewRGBColor(99, 102, 241),  // Indigo
	Background: tcell.NewRGBColor(15, 23, 42),    // Slate 900
	Text:       tcell.NewRGBColor(226, 232, 240), // Slate 200
	Muted:      tcell.NewRGBColor(100, 116, 139), // Slate 500
	Success:    tcell.NewRGBColor(34, 197, 94),   // Green 500
	Warning:    tcell.NewRGBColor(234, 179, 8),   // Yellow 500
	Error:      tcell.NewRGBColor(239, 68, 68),   // Red 500
	Highlight:  tcell.NewRGBColor(56, 189, 248),  // Sky 400
	Gold:       tcell.NewRGBColor(255, 215, 0),
	Blue:       tcell.NewRGBColor(59, 130, 246),
	Green:      tcell.NewRGBColor(16, 185, 129),
	Red:        tcell.NewRGBColor(220, 38, 38),
}

// Styles container for application-wide styles.
type Styles struct {
	Normal      tcell.Style
	Bold        tcell.Style
	Muted       tcell.Style
	Success     tcell.Style
	Warning     tcell.Style
	Error       tcell.Style
	Header      tcell.Style
	Border      tcell.Style
	BorderFocus tcell.Style
	Highlight   tcell.Style
	Edge        tcell.Style

	MarkerOK  tcell.Style
	MarkerBad tcell.Style

	roles map[topology.Color]tcell.Style
}

// GetStyles returns the style definitions based on the current theme.
func GetStyles(theme Theme) Styles {
	base := tcell.StyleDefault.Background(theme.Background).Foreground(theme.Text)

	return Styles{
		Normal:      base,
		Bold:        base.Bold(true),
		Muted:       base.Foreground(theme.Muted),
		Success:     base.Foreground(theme.Success),
		Warning:     base.Foreground(theme.Warning),
		Error:       base.Foreground(theme.Error),
		Header:      base.Foreground(theme.Primary).Bold(true),
		Border:      base.Foreground(theme.Muted),
		BorderFocus: base.Foreground(theme.Highlight),
		Highlight:   base.Foreground(theme.Highlight),
		Edge:        base.Foreground(theme.Muted).Dim(true),
		MarkerOK:    base.Foreground(theme.Success).Bold(true),
		MarkerBad:   base.Foreground(theme.Error).Bold(true),
		roles: map[topology.Color]tcell.Style{
			topology.ColorGold:  base.Foreground(theme.Gold).Bold(true),
			topology.ColorBlue:  base.Foreground(theme.Blue).Bold(true),
			topology.ColorGreen: base.Foreground(theme.Green),
			topology.ColorRed:   base.Foreground(theme.Red).Bold(true),
		},
	}
}

// Node returns the style of a node fill color.
func (s Styles) Node(c topology.Color) tcell.Style {
	if st, ok := s.roles[c]; ok {
		return st
	}
	return s.Normal
}

// CurrentStyles holds the global styles instance.
var CurrentStyles = GetStyles(DefaultTheme)
