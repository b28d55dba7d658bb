package tui

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/salahayoub/hotviz/pkg/types"
)

func TestModel_AddEventNewestFirst(t *testing.T) {
	m := NewModel()
	base := time.Unix(0, 0)
	for i := 0; i < 3; i++ {
		m.AddEvent(EventLine{Time: base, Text: fmt.Sprintf("e%d", i)})
	}

	want := []string{"e2", "e1", "e0"}
	for i, w := range want {
		if m.Events[i].Text != w {
			t.Errorf("event %d: expected %q, got %q", i, w, m.Events[i].Text)
		}
	}
}

func TestModel_AddEventCapped(t *testing.T) {
	m := NewModel()
	for i := 0; i < MaxEventLines+15; i++ {
		m.AddEvent(EventLine{Text: fmt.Sprintf("e%d", i)})
	}

	if len(m.Events) != MaxEventLines {
		t.Fatalf("expected %d events, got %d", MaxEventLines, len(m.Events))
	}
	if m.Events[0].Text != fmt.Sprintf("e%d", MaxEventLines+14) {
		t.Errorf("expected newest event first, got %q", m.Events[0].Text)
	}
	if m.Events[MaxEventLines-1].Text != "e15" {
		t.Errorf("expected oldest kept event e15, got %q", m.Events[MaxEventLines-1].Text)
	}
}

func TestModel_PanelNavigation(t *testing.T) {
	m := NewModel()
	for i := 0; i < PanelCount; i++ {
		m.NextPanel()
	}
	if m.ActivePanel != PanelCanvas {
		t.Errorf("expected full cycle to return to Topology, got %v", m.ActivePanel)
	}
	m.PrevPanel()
	if m.ActivePanel != PanelCommand {
		t.Errorf("expected PrevPanel from Topology to wrap to Command, got %v", m.ActivePanel)
	}
	if IsValidPanel(PanelType(PanelCount)) {
		t.Error("expected out of range panel to be invalid")
	}
}

func TestModel_RoundLookup(t *testing.T) {
	m := NewModel()
	if _, ok := m.SelectedRound(); ok {
		t.Error("expected no selected round in an empty model")
	}
	m.Rounds = []types.Round{{Number: 4}, {Number: 7}}
	if idx, ok := m.RoundIndexOf(7); !ok || idx != 1 {
		t.Errorf("expected round 7 at index 1, got %d (%v)", idx, ok)
	}
	if _, ok := m.RoundIndexOf(5); ok {
		t.Error("expected round 5 to be missing")
	}
}

func TestFormatEvent(t *testing.T) {
	view := 3
	leader := types.NodeID(3)
	tests := []struct {
		ev   types.Event
		want string
	}{
		{types.Event{Kind: types.EventSessionConfig, Config: &types.SessionConfig{NodeCount: 7, BranchCount: 2, ByzantineCount: 1, ProposalValue: 9}},
			"session: n=7 k=2 byzantine=1 value=9"},
		{types.Event{Kind: types.EventPhaseUpdate, Phase: &types.PhaseUpdate{Phase: types.PhaseCommit, Step: 1, View: &view, Leader: &leader}},
			"phase commit step 1 view 3 leader 3"},
		{types.Event{Kind: types.EventPhaseUpdate, Phase: &types.PhaseUpdate{Phase: types.PhasePrepare}},
			"phase prepare step 0"},
		{types.Event{Kind: types.EventNewRound, Round: &types.NewRound{Round: 2, View: 1}},
			"round 2 started (view 1)"},
		{types.Event{Kind: types.EventMessageReceived, Message: &types.ReceivedMessage{From: 4, Type: "vote", Value: 9}},
			"vote from node 4 value 9"},
		{types.Event{Kind: types.EventConsensusResult, Result: &types.ConsensusResult{Status: "success", Description: "value 9"}},
			"consensus success: value 9"},
		{types.Event{Kind: types.EventNewRound},
			"new_round"},
	}

	for _, tt := range tests {
		got := FormatEvent(tt.ev)
		if got.Text != tt.want {
			t.Errorf("FormatEvent(%s) = %q, want %q", tt.ev.Kind, got.Text, tt.want)
		}
		if got.Kind != tt.ev.Kind {
			t.Errorf("FormatEvent(%s) kind = %s", tt.ev.Kind, got.Kind)
		}
	}
}

func TestEventLineString(t *testing.T) {
	line := EventLine{Time: time.Date(2024, 1, 1, 13, 4, 5, 0, time.UTC), Text: "hello"}
	if !strings.HasSuffix(line.String(), "13:04:05 hello") {
		t.Errorf("unexpected line %q", line.String())
	}
}
