package tui

import (
	"fmt"
	"time"

	"github.com/salahayoub/hotviz/pkg/phase"
	"github.com/salahayoub/hotviz/pkg/topology"
	"github.com/salahayoub/hotviz/pkg/types"
)

// PanelType identifies which panel has focus.
type PanelType int

const (
	PanelCanvas PanelType = iota
	PanelEvents
	PanelCommand
)

// String returns a human-readable representation of the PanelType.
func (p PanelType) String() string {
	switch p {
	case PanelCanvas:
		return "Topology"
	case PanelEvents:
		return "Events"
	case PanelCommand:
		return "Command"
	default:
		return "Unknown"
	}
}

// PanelCount is the total number of panels for navigation.
const PanelCount = 3

// MaxEventLines caps the event log.
const MaxEventLines = 50

// EventLine is one entry of the event log.
type EventLine struct {
	Time time.Time
	Kind types.EventKind
	Text string
}

func (l EventLine) String() string {
	return l.Time.Format("15:04:05") + " " + l.Text
}

// Model holds the application state for the TUI.
type Model struct {
	// Session data
	Session      string
	Config       types.SessionConfig
	Layout       *topology.Layout
	Rounds       []types.Round
	RoundIndex   int
	Consensus    string
	LastDropped  int
	TotalDropped int

	// Playback state, copied from the sequencer after every frame
	Playing       bool
	PlayRound     int
	PlayTotal     int
	BatchProgress float64

	// Protocol state, copied from the phase tracker before rendering
	State      phase.State
	Annotation string

	// Events newest first
	Events []EventLine

	// UI state
	ActivePanel   PanelType
	CommandInput  string
	CommandOutput string
	ErrorMessage  string

	// Connection state
	Connected         bool
	ReconnectAttempts int
	LastReconnect     time.Time

	// Configuration
	RefreshInterval time.Duration
}

// NewModel creates a new Model with default values.
func NewModel() *Model {
	return &Model{
		ActivePanel:     PanelCanvas,
		Connected:       true,
		RefreshInterval: 2 * time.Second,
		Events:          make([]EventLine, 0, MaxEventLines),
	}
}

// NextPanel moves focus to the next panel in circular order.
func (m *Model) NextPanel() {
	m.ActivePanel = NextPanel(m.ActivePanel)
}

// PrevPanel moves focus to the previous panel in circular order.
func (m *Model) PrevPanel() {
	m.ActivePanel = PrevPanel(m.ActivePanel)
}

// AddEvent prepends an entry to the event log, dropping the oldest entry
// once MaxEventLines is reached.
func (m *Model) AddEvent(line EventLine) {
	if len(m.Events) >= MaxEventLines {
		m.Events = m.Events[:MaxEventLines-1]
	}
	m.Events = append(m.Events, EventLine{})
	copy(m.Events[1:], m.Events)
	m.Events[0] = line
}

// Note adds a free-form line to the event log.
func (m *Model) Note(now time.Time, format string, args ...interface{}) {
	m.AddEvent(EventLine{Time: now, Text: fmt.Sprintf(format, args...)})
}

// SelectedRound returns the round under the cursor.
func (m *Model) SelectedRound() (types.Round, bool) {
	if m.RoundIndex < 0 || m.RoundIndex >= len(m.Rounds) {
		return types.Round{}, false
	}
	return m.Rounds[m.RoundIndex], true
}

// RoundIndexOf returns the index of the round numbered n.
func (m *Model) RoundIndexOf(n int) (int, bool) {
	for i, r := range m.Rounds {
		if r.Number == n {
			return i, true
		}
	}
	return 0, false
}

// FormatEvent renders a live event as one log line.
func FormatEvent(ev types.Event) EventLine {
	line := EventLine{Time: ev.Time, Kind: ev.Kind}
	switch ev.Kind {
	case types.EventSessionConfig:
		if c := ev.Config; c != nil {
			line.Text = fmt.Sprintf("session: n=%d k=%d byzantine=%d value=%d",
				c.NodeCount, c.BranchCount, c.ByzantineCount, c.ProposalValue)
		}
	case types.EventPhaseUpdate:
		if p := ev.Phase; p != nil {
			line.Text = fmt.Sprintf("phase %s step %d", p.Phase, p.Step)
			if p.View != nil {
				line.Text += fmt.Sprintf(" view %d", *p.View)
			}
			if p.Leader != nil {
				line.Text += fmt.Sprintf(" leader %d", *p.Leader)
			}
		}
	case types.EventNewRound:
		if r := ev.Round; r != nil {
			line.Text = fmt.Sprintf("round %d started (view %d)", r.Round, r.View)
		}
	case types.EventMessageReceived:
		if m := ev.Message; m != nil {
			line.Text = fmt.Sprintf("%s from node %d value %d", m.Type, m.From, m.Value)
		}
	case types.EventConsensusResult:
		if r := ev.Result; r != nil {
			line.Text = fmt.Sprintf("consensus %s: %s", r.Status, r.Description)
		}
	}
	if line.Text == "" {
		line.Text = string(ev.Kind)
	}
	return line
}
