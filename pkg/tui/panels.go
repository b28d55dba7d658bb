package tui

import (
	"fmt"
	"strings"

	"github.com/salahayoub/hotviz/pkg/topology"
	"github.com/salahayoub/hotviz/pkg/trace"
)

// StatusPanel renders protocol state and quorum figures.
type StatusPanel struct {
	progress *ProgressBar
}

// NewStatusPanel creates a new StatusPanel.
func NewStatusPanel() *StatusPanel {
	return &StatusPanel{progress: NewProgressBar(16)}
}

// Render returns the status panel lines for the model.
func (p *StatusPanel) Render(m *Model) string {
	cfg := m.Config
	if cfg.NodeCount == 0 {
		return "No session loaded"
	}

	var sb strings.Builder
	st := m.State
	sb.WriteString(fmt.Sprintf("Phase:     %s (step %d)\n", st.Phase, st.Step))
	if st.HasView {
		sb.WriteString(fmt.Sprintf("View:      %d\n", st.View))
	} else {
		sb.WriteString("View:      -\n")
	}
	if st.Round > 0 {
		sb.WriteString(fmt.Sprintf("Live rnd:  %d\n", st.Round))
	}

	k := topology.EffectiveBranches(cfg.NodeCount, cfg.BranchCount)
	mode := topology.ModeFor(cfg.NodeCount, cfg.BranchCount)
	sb.WriteString(fmt.Sprintf("Topology:  %s, %d group(s)\n", mode, k))
	quorum := fmt.Sprintf("Quorum:    %d of %d", trace.Quorum(cfg.NodeCount), cfg.NodeCount)
	if mode == topology.TwoLayer {
		gs := topology.GroupSize(cfg.NodeCount, cfg.BranchCount)
		quorum += fmt.Sprintf(", local %d of %d", trace.LocalQuorum(gs), gs)
	}
	sb.WriteString(quorum + "\n")
	sb.WriteString(fmt.Sprintf("Byzantine: %d (tolerates %d)\n", cfg.ByzantineCount, trace.FaultTolerance(cfg.NodeCount)))
	sb.WriteString(fmt.Sprintf("Value:     %d\n", cfg.ProposalValue))

	if m.Playing {
		sb.WriteString("Playback:  " + p.progress.Render(PlaybackPercentage(m.PlayRound, m.PlayTotal, m.BatchProgress)) + "\n")
	} else if m.Consensus != "" {
		sb.WriteString("Result:    " + m.Consensus + "\n")
	}
	if m.TotalDropped > 0 {
		sb.WriteString(fmt.Sprintf("Dropped:   %d message(s)\n", m.TotalDropped))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// LegendPanel renders the role legend.
type LegendPanel struct{}

// NewLegendPanel creates a new LegendPanel.
func NewLegendPanel() *LegendPanel {
	return &LegendPanel{}
}

// LegendEntry pairs a glyph and color with its meaning.
type LegendEntry struct {
	Glyph rune
	Color topology.Color
	Label string
}

// Entries returns the legend rows.
func (p *LegendPanel) Entries() []LegendEntry {
	return []LegendEntry{
		{glyphRoot, topology.ColorGold, "root / leader"},
		{glyphGroupLeader, topology.ColorBlue, "group leader"},
		{glyphMember, topology.ColorGreen, "member"},
		{glyphMember, topology.ColorRed, "byzantine"},
		{glyphMarker, topology.ColorGreen, "correct value"},
		{glyphMarker, topology.ColorRed, "wrong value"},
	}
}

// EventsPanel renders the newest event lines.
type EventsPanel struct{}

// NewEventsPanel creates a new EventsPanel.
func NewEventsPanel() *EventsPanel {
	return &EventsPanel{}
}

// Render returns at most maxLines events, newest first.
func (p *EventsPanel) Render(events []EventLine, maxLines int) string {
	if len(events) == 0 {
		return "No events"
	}
	if maxLines > 0 && len(events) > maxLines {
		events = events[:maxLines]
	}
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}

// CommandPanel renders the command input and its result.
type CommandPanel struct{}

// NewCommandPanel creates a new CommandPanel.
func NewCommandPanel() *CommandPanel {
	return &CommandPanel{}
}

// Render returns the prompt line followed by output or error.
func (p *CommandPanel) Render(input, output, errorMsg string) string {
	var sb strings.Builder
	sb.WriteString(":")
	sb.WriteString(input)
	sb.WriteString("_")
	if errorMsg != "" {
		sb.WriteString("\nError: ")
		sb.WriteString(errorMsg)
	} else if output != "" {
		sb.WriteString("\n")
		sb.WriteString(output)
	}
	return sb.String()
}
