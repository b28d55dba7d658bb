package anim

import (
	"testing"

	"github.com/salahayoub/hotviz/pkg/topology"
	"github.com/salahayoub/hotviz/pkg/types"
)

type recordingSurface struct {
	topologyDraws int
	markers       []markerCall
	consensus     []int
}

type markerCall struct {
	src, dst types.NodeID
	progress float64
	correct  bool
}

func (s *recordingSurface) DrawTopology(*topology.Layout) { s.topologyDraws++ }

func (s *recordingSurface) DrawMarker(u *Unit, correct bool) {
	s.markers = append(s.markers, markerCall{u.Src, u.Dst, u.Progress, correct})
}

func (s *recordingSurface) ShowConsensus(v int) { s.consensus = append(s.consensus, v) }

func fixedLayout(n, k int) LayoutFunc {
	l := topology.ComputeLayout(topology.Params{NodeCount: n, BranchCount: k}, topology.DefaultCanvas)
	return func() *topology.Layout { return l }
}

func msg(src int, dst types.Destination, value int) types.Message {
	return types.Message{Src: types.NodeID(src), Dst: dst, Type: types.MsgProposal, Value: value}
}

func runToEnd(t *testing.T, s *Sequencer, limit int) int {
	t.Helper()
	ticks := 0
	for {
		ticks++
		if !s.Tick() {
			return ticks
		}
		if ticks > limit {
			t.Fatalf("playback did not finish within %d ticks", limit)
		}
	}
}

func TestEmptyRoundCompletesWithoutTick(t *testing.T) {
	surface := &recordingSurface{}
	s := NewSequencer(surface, fixedLayout(4, 1))

	var completed []int
	done := false
	rounds := []Round{
		{},
		{Batch{msg(9, types.ToAll, 1)}, Batch{msg(0, types.ToNode(42), 1)}},
	}
	p := s.Play(rounds, Options{
		Decided:         7,
		OnRoundComplete: func(i int) { completed = append(completed, i) },
		OnDone:          func() { done = true },
	})

	if !p.Finished() {
		t.Fatal("expected playback to finish synchronously")
	}
	if len(completed) != 2 || completed[0] != 0 || completed[1] != 1 {
		t.Errorf("round callbacks = %v, want [0 1]", completed)
	}
	if !done {
		t.Error("expected OnDone to fire")
	}
	if surface.topologyDraws != 0 {
		t.Errorf("expected no frames, got %d", surface.topologyDraws)
	}
	if len(surface.consensus) != 1 || surface.consensus[0] != 7 {
		t.Errorf("consensus = %v, want [7]", surface.consensus)
	}
	if s.Tick() {
		t.Error("Tick on finished playback should report false")
	}
}

func TestRoundsPlaySequentially(t *testing.T) {
	surface := &recordingSurface{}
	s := NewSequencer(surface, fixedLayout(5, 1))

	var events []string
	var firstRoundUnits []*Unit
	rounds := []Round{
		{Batch{msg(0, types.ToAll, 1)}},
		{Batch{msg(1, types.ToNode(0), 1)}, Batch{msg(0, types.ToNode(2), 1)}},
	}
	p := s.Play(rounds, Options{
		Step:     0.25,
		Expected: 1,
		OnRoundComplete: func(i int) {
			if i == 0 {
				for _, u := range firstRoundUnits {
					if u.Progress < 1 {
						t.Errorf("round 0 completed with unit %d->%d at %.2f", u.Src, u.Dst, u.Progress)
					}
				}
			}
			events = append(events, "round")
		},
		OnDone: func() { events = append(events, "done") },
	})
	firstRoundUnits = p.Units()
	if len(firstRoundUnits) != 4 {
		t.Fatalf("expected 4 units for broadcast over 5 nodes, got %d", len(firstRoundUnits))
	}

	ticks := runToEnd(t, s, 100)
	// 4 ticks per batch, three batches.
	if ticks != 12 {
		t.Errorf("ticks = %d, want 12", ticks)
	}
	want := []string{"round", "round", "done"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, events[i], want[i])
		}
	}
	if p.BatchProgress() != 1 {
		t.Errorf("finished playback progress = %v, want 1", p.BatchProgress())
	}
}

func TestSecondRoundWaitsForFirst(t *testing.T) {
	surface := &recordingSurface{}
	s := NewSequencer(surface, fixedLayout(3, 1))

	var completed []int
	s.Play([]Round{
		{Batch{msg(0, types.ToNode(1), 1)}},
		{Batch{msg(1, types.ToNode(2), 1)}},
	}, Options{Step: 0.5, OnRoundComplete: func(i int) { completed = append(completed, i) }})

	s.Tick()
	if len(completed) != 0 {
		t.Fatalf("round completed early: %v", completed)
	}
	s.Tick()
	if len(completed) != 1 || completed[0] != 0 {
		t.Fatalf("after first round: %v", completed)
	}
	idx, total := s.Current().Round()
	if idx != 1 || total != 2 {
		t.Errorf("Round() = %d/%d, want 1/2", idx, total)
	}
	s.Tick()
	s.Tick()
	if len(completed) != 2 {
		t.Errorf("after second round: %v", completed)
	}
}

func TestPlaySupersedesPrevious(t *testing.T) {
	surface := &recordingSurface{}
	s := NewSequencer(surface, fixedLayout(4, 1))

	oldDone := false
	oldRounds := 0
	first := s.Play([]Round{{Batch{msg(0, types.ToAll, 1)}}}, Options{
		Step:            0.1,
		OnRoundComplete: func(int) { oldRounds++ },
		OnDone:          func() { oldDone = true },
	})
	s.Tick()

	second := s.Play([]Round{{Batch{msg(1, types.ToNode(2), 3)}}}, Options{Step: 0.5, Expected: 3, Decided: 3})
	if first.Active() || !first.Cancelled() {
		t.Fatal("first playback should be cancelled")
	}
	if first.Tick() {
		t.Error("cancelled playback must not tick")
	}

	runToEnd(t, s, 10)
	if oldDone || oldRounds != 0 {
		t.Errorf("superseded callbacks fired: done=%v rounds=%d", oldDone, oldRounds)
	}
	if !second.Finished() {
		t.Error("second playback should finish")
	}
	if len(surface.consensus) != 1 || surface.consensus[0] != 3 {
		t.Errorf("consensus = %v, want [3]", surface.consensus)
	}
}

func TestMarkerCorrectness(t *testing.T) {
	surface := &recordingSurface{}
	s := NewSequencer(surface, fixedLayout(3, 1))
	s.Play([]Round{{Batch{msg(0, types.ToNode(1), 5), msg(0, types.ToNode(2), 6)}}}, Options{Step: 1, Expected: 5})
	s.Tick()

	if len(surface.markers) != 2 {
		t.Fatalf("expected 2 markers, got %d", len(surface.markers))
	}
	for _, m := range surface.markers {
		want := m.dst == 1
		if m.correct != want {
			t.Errorf("marker to %d correct=%v, want %v", m.dst, m.correct, want)
		}
		if m.progress != 1 {
			t.Errorf("progress = %v, want clamped 1", m.progress)
		}
	}
}

func TestDroppedMessagesReported(t *testing.T) {
	surface := &recordingSurface{}
	s := NewSequencer(surface, fixedLayout(3, 1))

	dropped := map[int]int{}
	p := s.Play([]Round{{Batch{
		msg(0, types.ToNode(1), 1),
		msg(7, types.ToAll, 1),
		msg(0, types.ToNode(-1), 1),
	}}}, Options{OnDropped: func(i, n int) { dropped[i] += n }})

	if dropped[0] != 2 {
		t.Errorf("dropped = %v, want 2 in round 0", dropped)
	}
	if len(p.Units()) != 1 {
		t.Errorf("units = %d, want 1", len(p.Units()))
	}
}

func TestUnitPointInterpolates(t *testing.T) {
	u := Unit{
		Start:    topology.Position{X: 0, Y: 10},
		End:      topology.Position{X: 100, Y: 30},
		Progress: 0.25,
	}
	x, y := u.Point()
	if x != 25 || y != 15 {
		t.Errorf("Point() = (%v, %v), want (25, 15)", x, y)
	}
	u.Progress = 2
	x, y = u.Point()
	if x != 100 || y != 30 {
		t.Errorf("overshoot Point() = (%v, %v), want end", x, y)
	}
}

func TestStopCancelsCurrent(t *testing.T) {
	s := NewSequencer(&recordingSurface{}, fixedLayout(3, 1))
	p := s.Play([]Round{{Batch{msg(0, types.ToAll, 1)}}}, Options{})
	s.Stop()
	if p.Active() || s.Tick() {
		t.Error("stopped playback should be inactive")
	}
}

// TestTickReportsPlaybackStartedByCallback verifies Tick reports the
// playback a round-complete callback started, not the finished one.
func TestTickReportsPlaybackStartedByCallback(t *testing.T) {
	surface := &recordingSurface{}
	s := NewSequencer(surface, fixedLayout(3, 1))

	next := []Round{{Batch{msg(0, types.ToNode(1), 5)}}}
	var restarted *Playback
	first := s.Play([]Round{{Batch{msg(0, types.ToNode(2), 5)}}}, Options{
		Step: 1,
		OnRoundComplete: func(int) {
			if restarted == nil {
				restarted = s.Play(next, Options{Step: 1})
			}
		},
	})

	if !s.Tick() {
		t.Fatal("expected Tick to report the playback started by the callback")
	}
	if restarted == nil || s.Current() != restarted {
		t.Fatalf("expected the callback playback to be current")
	}
	if first.Active() {
		t.Error("expected the first playback to be over")
	}
	if !restarted.Active() {
		t.Error("expected the new playback to be active")
	}
}
