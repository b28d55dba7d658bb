package tui

import (
	"fmt"
	"strings"
)

// ProgressBar renders playback progress as a text bar.
type ProgressBar struct {
	width int
}

// NewProgressBar creates a progress bar renderer.
// width specifies the character width of the bar (excluding brackets and percentage).
func NewProgressBar(width int) *ProgressBar {
	if width < 1 {
		width = 10 // Default minimum width
	}
	return &ProgressBar{width: width}
}

// Render outputs a progress bar for the given percentage.
// Returns format: "[████████░░]  80%"
func (p *ProgressBar) Render(percentage float64) string {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	filledCount := int(percentage / 100 * float64(p.width))
	emptyCount := p.width - filledCount

	var sb strings.Builder
	sb.WriteString("[")
	sb.WriteString(strings.Repeat("█", filledCount))
	sb.WriteString(strings.Repeat("░", emptyCount))
	sb.WriteString("]")
	sb.WriteString(fmt.Sprintf(" %3.0f%%", percentage))
	return sb.String()
}

// PlaybackPercentage combines the round position and the progress of the
// active batch into one percentage. The active batch stands in for the
// progress of its whole round.
func PlaybackPercentage(round, total int, batch float64) float64 {
	if total <= 0 {
		return 100.0
	}
	if round >= total {
		return 100.0
	}
	return (float64(round) + batch) / float64(total) * 100.0
}
