package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/salahayoub/hotviz/pkg/metrics"
	"github.com/salahayoub/hotviz/pkg/phase"
	"github.com/salahayoub/hotviz/pkg/storage"
	"github.com/salahayoub/hotviz/pkg/topology"
	"github.com/salahayoub/hotviz/pkg/trace"
	"github.com/salahayoub/hotviz/pkg/transport"
	"github.com/salahayoub/hotviz/pkg/types"
)

const (
	// maxBodyBytes bounds ingested request bodies.
	maxBodyBytes = 1 << 20
)

// Handler serves the relay HTTP API over a store. Ingested events are
// recorded, applied to a per-session phase tracker and republished on the
// event relay.
type Handler struct {
	store   *storage.BoltStore
	relay   transport.Publisher
	session string

	mu       sync.Mutex
	trackers map[string]*phase.Tracker
}

// NewHandler creates a Handler. session is the default session of /status
// and /layout.
func NewHandler(store *storage.BoltStore, relay transport.Publisher, session string) *Handler {
	return &Handler{
		store:    store,
		relay:    relay,
		session:  session,
		trackers: make(map[string]*phase.Tracker),
	}
}

// Routes returns the HTTP routes of the relay.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", h.HandleStatus)
	mux.HandleFunc("GET /layout", h.HandleLayout)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleSession)
	mux.HandleFunc("GET /api/sessions/{id}/history", h.HandleHistory)
	mux.HandleFunc("GET /api/sessions/{id}/stats", h.HandleStats)
	mux.HandleFunc("POST /api/sessions/{id}/events", h.HandleIngestEvent)
	mux.HandleFunc("POST /api/sessions/{id}/rounds", h.HandleIngestRound)
	return mux
}

// Close stops the annotation timers of every tracker.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.trackers {
		t.Stop()
	}
}

// tracker returns the phase tracker of a session. A new tracker replays
// the recorded events so state survives a relay restart.
func (h *Handler) tracker(id string, nodeCount int) *phase.Tracker {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.trackers[id]
	if ok {
		return t
	}
	t = phase.NewTracker(nodeCount, nil)
	events, err := h.store.Events(id)
	if err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		slog.Warn("failed to replay events", "session", id, "error", err)
	}
	for _, ev := range events {
		t.Apply(ev)
	}
	h.trackers[id] = t
	return t
}

// sessionOr404 loads a session record, writing 404 when it is missing.
func (h *Handler) sessionOr404(w http.ResponseWriter, id string) (storage.SessionRecord, bool) {
	rec, err := h.store.GetSession(id)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return rec, false
	}
	return rec, true
}

// HandleStatus handles GET /status for the default session.
// Returns JSON with topology, tracked protocol state and stored counts.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.sessionOr404(w, h.session)
	if !ok {
		return
	}
	cfg := rec.Config
	state := h.tracker(h.session, cfg.NodeCount).State()

	rounds, err := h.store.Rounds(h.session)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	events, err := h.store.EventsSince(h.session, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	leader := state.Leader
	if !state.HasView {
		leader = topology.NormalizeLeader(cfg.LeaderID, cfg.NodeCount)
	}
	writeJSON(w, http.StatusOK, types.StatusResponse{
		SessionID:   rec.ID,
		NodeCount:   cfg.NodeCount,
		BranchCount: cfg.BranchCount,
		Mode:        topology.ModeFor(cfg.NodeCount, cfg.BranchCount).String(),
		Leader:      leader,
		Phase:       state.Phase,
		Step:        state.Step,
		View:        state.View,
		Rounds:      len(rounds),
		Events:      len(events),
	})
}

// HandleLayout handles GET /layout for the default session.
// ?leader=N overrides the root.
func (h *Handler) HandleLayout(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.sessionOr404(w, h.session)
	if !ok {
		return
	}
	params := topology.ParamsFromConfig(rec.Config)
	if s := r.URL.Query().Get("leader"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid leader")
			return
		}
		params.Leader = types.NodeID(n)
	}
	layout := topology.ComputeLayout(params, topology.DefaultCanvas)
	writeJSON(w, http.StatusOK, layout.Nodes())
}

// engineSessionResponse mirrors the protocol engine's session document.
type engineSessionResponse struct {
	SessionID string `json:"session_id"`
	Config    struct {
		NodeCount     int `json:"nodeCount"`
		FaultyNodes   int `json:"faultyNodes"`
		BranchCount   int `json:"branchCount"`
		ProposalValue int `json:"proposalValue"`
		LeaderID      int `json:"leaderId"`
	} `json:"config"`
	CurrentView  int         `json:"current_view"`
	CurrentRound int         `json:"current_round"`
	Phase        types.Phase `json:"phase"`
	Status       string      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// HandleSession handles GET /api/sessions/{id}.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok := h.sessionOr404(w, id)
	if !ok {
		return
	}
	state := h.tracker(id, rec.Config.NodeCount).State()

	var resp engineSessionResponse
	resp.SessionID = id
	resp.Config.NodeCount = rec.Config.NodeCount
	resp.Config.FaultyNodes = rec.Config.ByzantineCount
	resp.Config.BranchCount = rec.Config.BranchCount
	resp.Config.ProposalValue = rec.Config.ProposalValue
	resp.Config.LeaderID = int(rec.Config.LeaderID)
	resp.CurrentView = state.View
	resp.CurrentRound = state.Round
	resp.Phase = state.Phase
	resp.Status = "recorded"
	resp.CreatedAt = rec.Created
	writeJSON(w, http.StatusOK, resp)
}

// roundListResponse is the history document without a round parameter.
type roundListResponse struct {
	Rounds       []int               `json:"rounds"`
	CurrentRound int                 `json:"currentRound"`
	TotalRounds  int                 `json:"totalRounds"`
	History      []types.HistoryItem `json:"history"`
}

// roundResponse is the history document of one round.
type roundResponse struct {
	types.Round
	NodeCount     int              `json:"nodeCount"`
	ProposalValue int              `json:"proposalValue"`
	Stats         trace.RoundStats `json:"stats"`
}

// HandleHistory handles GET /api/sessions/{id}/history[?round=N].
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok := h.sessionOr404(w, id)
	if !ok {
		return
	}

	if s := r.URL.Query().Get("round"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid round")
			return
		}
		round, err := h.store.GetRound(id, n)
		if err != nil {
			if errors.Is(err, storage.ErrRoundNotFound) {
				writeError(w, http.StatusNotFound, fmt.Sprintf("round %d not found", n))
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, roundResponse{
			Round:         round,
			NodeCount:     rec.Config.NodeCount,
			ProposalValue: rec.Config.ProposalValue,
			Stats:         trace.Summarize(&types.Trace{Config: rec.Config, Rounds: []types.Round{round}})[0],
		})
		return
	}

	rounds, err := h.store.Rounds(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	history, err := h.store.History(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := roundListResponse{Rounds: make([]int, len(rounds)), History: history}
	for i, rd := range rounds {
		resp.Rounds[i] = rd.Number
		if rd.Number > resp.CurrentRound {
			resp.CurrentRound = rd.Number
		}
	}
	resp.TotalRounds = len(rounds)
	writeJSON(w, http.StatusOK, resp)
}

// HandleStats handles GET /api/sessions/{id}/stats, the complexity
// comparison over every stored round.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.sessionOr404(w, id); !ok {
		return
	}
	t, err := h.store.LoadTrace(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	actual := 0
	for _, rs := range trace.Summarize(t) {
		actual += rs.Units
	}
	writeJSON(w, http.StatusOK, trace.Compare(t.Config.NodeCount, t.Config.BranchCount, actual))
}

// HandleIngestEvent handles POST /api/sessions/{id}/events. The event is
// stored, applied to the session tracker and republished. A session_config
// event creates or updates the session; a consensus_result event is added
// to the history.
func (h *Handler) HandleIngestEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var ev types.Event
	if err := decodeBody(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	if ev.Kind == types.EventSessionConfig {
		if ev.Config == nil {
			writeError(w, http.StatusBadRequest, "session_config event without config")
			return
		}
		if err := h.store.SaveSession(id, *ev.Config); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	rec, ok := h.sessionOr404(w, id)
	if !ok {
		return
	}
	tracker := h.tracker(id, rec.Config.NodeCount)
	seq, err := h.store.AppendEvent(id, ev)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ev.Seq = seq
	metrics.EventsIngested.WithLabelValues(string(ev.Kind)).Inc()

	if ann, shown := tracker.Apply(ev); shown {
		slog.Info("view change", "session", id, "reason", ann.Reason.String(), "from", ann.FromView, "to", ann.ToView, "leader", ann.Leader)
	}

	if ev.Kind == types.EventConsensusResult && ev.Result != nil {
		state := tracker.State()
		item := types.HistoryItem{
			Round:       state.Round,
			View:        state.View,
			Status:      ev.Result.Status,
			Description: ev.Result.Description,
		}
		if round, err := h.store.GetRound(id, state.Round); err == nil {
			item.Messages = len(round.Messages)
		}
		if err := h.store.AppendHistory(id, item); err != nil {
			slog.Warn("failed to record history", "session", id, "error", err)
		}
	}

	if err := h.relay.Publish(id, ev); err != nil {
		slog.Warn("failed to publish event", "session", id, "kind", ev.Kind, "error", err)
	}
	writeJSON(w, http.StatusAccepted, map[string]uint64{"seq": seq})
}

// HandleIngestRound handles POST /api/sessions/{id}/rounds, storing a
// round trace in either the trace or the engine spelling.
func (h *Handler) HandleIngestRound(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.sessionOr404(w, id); !ok {
		return
	}

	var round types.Round
	if err := decodeBody(r, &round); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if round.Number < 1 {
		writeError(w, http.StatusBadRequest, "round number must be positive")
		return
	}
	if err := h.store.SaveRound(id, round); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"round": round.Number})
}

func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
