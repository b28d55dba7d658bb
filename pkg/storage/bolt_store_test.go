// Package storage provides unit tests for the BoltStore implementation.
package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/salahayoub/hotviz/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

var testConfig = types.SessionConfig{NodeCount: 6, BranchCount: 2, LeaderID: 0, ByzantineCount: 1, ProposalValue: 42}

// TestGetSessionNotFound verifies that a missing session reports ErrSessionNotFound.
func TestGetSessionNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSession("missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
	if _, err := store.Rounds("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound from Rounds, got %v", err)
	}
	if err := store.SaveRound("missing", types.Round{Number: 1}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound from SaveRound, got %v", err)
	}
}

// TestSaveSessionKeepsCreated verifies that re-saving a session updates its
// config but not its creation time.
func TestSaveSessionKeepsCreated(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveSession("s1", testConfig); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	first, err := store.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}

	updated := testConfig
	updated.NodeCount = 9
	if err := store.SaveSession("s1", updated); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	second, err := store.GetSession("s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if second.Config.NodeCount != 9 {
		t.Errorf("Expected NodeCount 9, got %d", second.Config.NodeCount)
	}
	if !second.Created.Equal(first.Created) {
		t.Errorf("Created changed from %v to %v", first.Created, second.Created)
	}

	if err := store.SaveSession("", testConfig); !errors.Is(err, ErrEmptySessionID) {
		t.Errorf("Expected ErrEmptySessionID, got %v", err)
	}
}

// TestListSessionsOrdered verifies sessions are listed by id.
func TestListSessionsOrdered(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"b", "c", "a"} {
		if err := store.SaveSession(id, testConfig); err != nil {
			t.Fatalf("SaveSession(%s) failed: %v", id, err)
		}
	}

	sessions, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", len(sessions))
	}
	for i, want := range []string{"a", "b", "c"} {
		if sessions[i].ID != want {
			t.Errorf("sessions[%d] = %s, want %s", i, sessions[i].ID, want)
		}
	}
}

// TestRoundsOrderedByNumber verifies rounds come back in numeric order
// regardless of insertion order, and that messages survive the round trip.
func TestRoundsOrderedByNumber(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveSession("s1", testConfig); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	for _, n := range []int{10, 2, 1} {
		r := types.Round{Number: n, Leader: types.NodeID(n % 6), View: n, Messages: []types.Message{
			{Src: 0, Dst: types.ToAll, Type: types.MsgProposal, Value: 42, Phase: types.PhasePrepare},
			{Src: 4, Dst: types.ToNode(3), Type: types.MsgVote, Value: 42, Phase: types.PhasePrepare},
		}}
		if err := store.SaveRound("s1", r); err != nil {
			t.Fatalf("SaveRound(%d) failed: %v", n, err)
		}
	}

	rounds, err := store.Rounds("s1")
	if err != nil {
		t.Fatalf("Rounds failed: %v", err)
	}
	if len(rounds) != 3 {
		t.Fatalf("Expected 3 rounds, got %d", len(rounds))
	}
	for i, want := range []int{1, 2, 10} {
		if rounds[i].Number != want {
			t.Errorf("rounds[%d].Number = %d, want %d", i, rounds[i].Number, want)
		}
	}
	if got := rounds[0].Messages[0].Dst; got != types.ToAll {
		t.Errorf("Expected dst all, got %v", got)
	}
	if got := rounds[0].Messages[1].Dst; got != types.ToNode(3) {
		t.Errorf("Expected dst 3, got %v", got)
	}

	r, err := store.GetRound("s1", 2)
	if err != nil {
		t.Fatalf("GetRound failed: %v", err)
	}
	if r.View != 2 {
		t.Errorf("Expected view 2, got %d", r.View)
	}
	if _, err := store.GetRound("s1", 3); !errors.Is(err, ErrRoundNotFound) {
		t.Errorf("Expected ErrRoundNotFound, got %v", err)
	}
}

// TestLoadTrace verifies the stored config and rounds are combined.
func TestLoadTrace(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveSession("s1", testConfig); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := store.SaveRound("s1", types.Round{Number: 1}); err != nil {
		t.Fatalf("SaveRound failed: %v", err)
	}

	tr, err := store.LoadTrace("s1")
	if err != nil {
		t.Fatalf("LoadTrace failed: %v", err)
	}
	if tr.Config != testConfig {
		t.Errorf("Config = %+v, want %+v", tr.Config, testConfig)
	}
	if len(tr.Rounds) != 1 {
		t.Errorf("Expected 1 round, got %d", len(tr.Rounds))
	}
}

// TestEventsSince verifies event sequencing and incremental reads.
func TestEventsSince(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveSession("s1", testConfig); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	view := 1
	events := []types.Event{
		{Kind: types.EventSessionConfig, Time: now, Config: &testConfig},
		{Kind: types.EventPhaseUpdate, Time: now, Phase: &types.PhaseUpdate{Phase: types.PhasePrepare, View: &view}},
		{Kind: types.EventConsensusResult, Time: now, Result: &types.ConsensusResult{Status: "Consensus Completed"}},
	}
	for i, ev := range events {
		seq, err := store.AppendEvent("s1", ev)
		if err != nil {
			t.Fatalf("AppendEvent failed: %v", err)
		}
		if seq != uint64(i+1) {
			t.Errorf("Expected seq %d, got %d", i+1, seq)
		}
	}

	all, err := store.Events("s1")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(all))
	}
	if all[1].Phase == nil || all[1].Phase.View == nil || *all[1].Phase.View != 1 {
		t.Errorf("phase payload lost: %+v", all[1].Phase)
	}

	tail, err := store.EventsSince("s1", 2)
	if err != nil {
		t.Fatalf("EventsSince failed: %v", err)
	}
	if len(tail) != 1 || tail[0].Seq != 3 || tail[0].Event.Kind != types.EventConsensusResult {
		t.Errorf("Unexpected tail: %+v", tail)
	}
	if len(tail) == 1 && tail[0].Event.Seq != 3 {
		t.Errorf("Expected stored event to carry seq 3, got %d", tail[0].Event.Seq)
	}
	for i, ev := range all {
		if ev.Seq != uint64(i+1) {
			t.Errorf("Event %d: expected seq %d, got %d", i, i+1, ev.Seq)
		}
	}
}

// TestAppendEventIgnoresCallerSeq verifies the store assigns sequence numbers.
func TestAppendEventIgnoresCallerSeq(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveSession("s1", testConfig); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	seq, err := store.AppendEvent("s1", types.Event{Kind: types.EventNewRound, Seq: 99, Round: &types.NewRound{Round: 1}})
	if err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
	events, err := store.Events("s1")
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if seq != 1 || len(events) != 1 || events[0].Seq != 1 {
		t.Errorf("Expected a single event with seq 1, got seq %d and %+v", seq, events)
	}
}

// TestHistoryAndDelete verifies history ordering and session deletion.
func TestHistoryAndDelete(t *testing.T) {
	store := newTestStore(t)
	if err := store.SaveSession("s1", testConfig); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	for i := 1; i <= 2; i++ {
		item := types.HistoryItem{Round: i, View: i, Status: "Consensus Completed", Messages: 10 * i}
		if err := store.AppendHistory("s1", item); err != nil {
			t.Fatalf("AppendHistory failed: %v", err)
		}
	}

	history, err := store.History("s1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 || history[0].Round != 1 || history[1].Messages != 20 {
		t.Errorf("Unexpected history: %+v", history)
	}

	if err := store.DeleteSession("s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := store.History("s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.SaveSession("s1", testConfig); err != nil {
		t.Fatalf("SaveSession after delete failed: %v", err)
	}
	if history, _ := store.History("s1"); len(history) != 0 {
		t.Errorf("Expected empty history after recreate, got %d", len(history))
	}
}

// TestReopenPersists verifies data survives closing and reopening.
func TestReopenPersists(t *testing.T) {
	path := t.TempDir() + "/test.db"
	store, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.SaveSession("s1", testConfig); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	store.Close()

	store, err = NewBoltStore(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store.Close()
	if _, err := store.GetSession("s1"); err != nil {
		t.Errorf("GetSession after reopen failed: %v", err)
	}
}
