package tui

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/salahayoub/hotviz/pkg/storage"
	"github.com/salahayoub/hotviz/pkg/types"
)

func TestStaticFetcher(t *testing.T) {
	f := NewStaticFetcher(&types.Trace{
		Config: types.SessionConfig{NodeCount: 4, BranchCount: 1},
		Rounds: []types.Round{{Number: 5}, {}, {Number: 5, View: 9}},
	})

	cfg, err := f.FetchSession()
	if err != nil || cfg.NodeCount != 4 {
		t.Fatalf("FetchSession = %+v, %v", cfg, err)
	}

	numbers, _ := f.FetchRoundNumbers()
	if len(numbers) != 2 || numbers[0] != 2 || numbers[1] != 5 {
		t.Fatalf("expected rounds [2 5], got %v", numbers)
	}

	r, err := f.FetchRound(5)
	if err != nil {
		t.Fatalf("FetchRound(5) failed: %v", err)
	}
	if r.View != 0 {
		t.Errorf("expected the first round numbered 5 to win, got view %d", r.View)
	}
	if _, err := f.FetchRound(7); err == nil {
		t.Error("expected an error for a missing round")
	}
	if !f.IsConnected() || f.Reconnect() != nil {
		t.Error("expected a static trace to always be connected")
	}
}

func TestFileFetcher(t *testing.T) {
	if _, err := NewFileFetcher(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing trace file")
	}
}

func TestStoreFetcher(t *testing.T) {
	store, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "hotviz.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	cfg := types.SessionConfig{NodeCount: 7, BranchCount: 2, ProposalValue: 3}
	if err := store.SaveSession("s1", cfg); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	for _, n := range []int{1, 2} {
		if err := store.SaveRound("s1", types.Round{Number: n, Leader: types.NodeID(n)}); err != nil {
			t.Fatalf("SaveRound failed: %v", err)
		}
	}

	f := NewStoreFetcher(store, "s1")
	got, err := f.FetchSession()
	if err != nil || got.NodeCount != 7 {
		t.Fatalf("FetchSession = %+v, %v", got, err)
	}
	numbers, err := f.FetchRoundNumbers()
	if err != nil || len(numbers) != 2 {
		t.Fatalf("FetchRoundNumbers = %v, %v", numbers, err)
	}
	r, err := f.FetchRound(2)
	if err != nil || r.Leader != 2 {
		t.Fatalf("FetchRound(2) = %+v, %v", r, err)
	}

	missing := NewStoreFetcher(store, "nope")
	if err := missing.Reconnect(); err == nil {
		t.Error("expected reconnect to an unknown session to fail")
	}
	if missing.IsConnected() {
		t.Error("expected unknown session to report disconnected")
	}
}

func newEngineServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions/abc", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"session_id":"abc","config":{"nodeCount":7,"faultyNodes":1,"branchCount":2,"proposalValue":5},"current_view":9,"current_round":2}`))
	})
	mux.HandleFunc("/api/sessions/abc/history", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("round") {
		case "":
			w.Write([]byte(`{"rounds":[1,2],"currentRound":2,"totalRounds":2}`))
		case "2":
			w.Write([]byte(`{"round":2,"leaderId":1,"messages":[{"from":1,"to":"all","type":"proposal","value":5}],"consensus":"success","nodeCount":7}`))
		default:
			http.Error(w, `{"error":"round not found"}`, http.StatusNotFound)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPTraceFetcher(t *testing.T) {
	srv := newEngineServer(t)
	f := NewHTTPTraceFetcher(srv.URL+"/", "abc")

	cfg, err := f.FetchSession()
	if err != nil {
		t.Fatalf("FetchSession failed: %v", err)
	}
	want := types.SessionConfig{NodeCount: 7, BranchCount: 2, LeaderID: 2, ByzantineCount: 1, ProposalValue: 5}
	if *cfg != want {
		t.Errorf("FetchSession = %+v, want %+v", *cfg, want)
	}

	numbers, err := f.FetchRoundNumbers()
	if err != nil || len(numbers) != 2 {
		t.Fatalf("FetchRoundNumbers = %v, %v", numbers, err)
	}

	r, err := f.FetchRound(2)
	if err != nil {
		t.Fatalf("FetchRound failed: %v", err)
	}
	if r.Number != 2 || r.Leader != 1 || r.Consensus != "success" {
		t.Errorf("unexpected round %+v", r)
	}
	if len(r.Messages) != 1 || r.Messages[0].Src != 1 || r.Messages[0].Dst != types.ToAll {
		t.Errorf("expected engine message spelling to decode, got %+v", r.Messages)
	}

	if _, err := f.FetchRound(3); err == nil {
		t.Error("expected an error for a missing round")
	}
	if !f.IsConnected() {
		t.Error("expected a 404 to leave the fetcher connected")
	}
}

func TestHTTPTraceFetcher_Unreachable(t *testing.T) {
	srv := newEngineServer(t)
	f := NewHTTPTraceFetcher(srv.URL, "abc")
	if _, err := f.FetchSession(); err != nil {
		t.Fatalf("FetchSession failed: %v", err)
	}
	srv.Close()

	cfg, err := f.FetchSession()
	if err != nil || cfg.NodeCount != 7 {
		t.Errorf("expected the cached session after a failure, got %+v, %v", cfg, err)
	}
	if f.IsConnected() {
		t.Error("expected fetcher to report disconnected")
	}
	if err := f.Reconnect(); err == nil {
		t.Error("expected reconnect to fail")
	}
}
