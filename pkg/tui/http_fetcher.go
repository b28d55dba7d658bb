package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/salahayoub/hotviz/pkg/topology"
	"github.com/salahayoub/hotviz/pkg/types"
)

// engineSession is the subset of GET /api/sessions/{id} the viewer uses.
// The engine names the Byzantine count faultyNodes.
type engineSession struct {
	Config struct {
		NodeCount     int  `json:"nodeCount"`
		BranchCount   *int `json:"branchCount"`
		FaultyNodes   int  `json:"faultyNodes"`
		ProposalValue int  `json:"proposalValue"`
	} `json:"config"`
	CurrentView  int `json:"current_view"`
	CurrentRound int `json:"current_round"`
}

// engineRoundList is GET /api/sessions/{id}/history without a round.
type engineRoundList struct {
	Rounds       []int `json:"rounds"`
	CurrentRound int   `json:"currentRound"`
	TotalRounds  int   `json:"totalRounds"`
}

// engineRound is GET /api/sessions/{id}/history?round=N.
type engineRound struct {
	types.Round
	NodeCount     int `json:"nodeCount"`
	ProposalValue int `json:"proposalValue"`
}

// HTTPTraceFetcher implements TraceFetcher against the protocol engine's
// session API.
type HTTPTraceFetcher struct {
	baseURL   string
	sessionID string
	client    *http.Client

	mu        sync.RWMutex
	connected bool
	lastCfg   *types.SessionConfig
}

// NewHTTPTraceFetcher creates a fetcher for sessionID.
// baseURL should be the engine root (e.g., "http://localhost:8000").
func NewHTTPTraceFetcher(baseURL, sessionID string) *HTTPTraceFetcher {
	return &HTTPTraceFetcher{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		sessionID: sessionID,
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
		connected: true, // Assume connected initially
	}
}

func (f *HTTPTraceFetcher) sessionURL(suffix string) string {
	return f.baseURL + "/api/sessions/" + url.PathEscape(f.sessionID) + suffix
}

func (f *HTTPTraceFetcher) getJSON(u string, v interface{}) error {
	resp, err := f.client.Get(u)
	if err != nil {
		f.setConnected(false)
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode >= 500 {
			f.setConnected(false)
		}
		return fmt.Errorf("%s returned %d: %s", u, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	f.setConnected(true)
	return nil
}

func (f *HTTPTraceFetcher) setConnected(ok bool) {
	f.mu.Lock()
	f.connected = ok
	f.mu.Unlock()
}

// FetchSession retrieves the session configuration. The leader is derived
// from the engine's current view.
func (f *HTTPTraceFetcher) FetchSession() (*types.SessionConfig, error) {
	var s engineSession
	if err := f.getJSON(f.sessionURL(""), &s); err != nil {
		f.mu.RLock()
		cached := f.lastCfg
		f.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}
		return nil, err
	}

	branches := 2
	if s.Config.BranchCount != nil {
		branches = *s.Config.BranchCount
	}
	cfg := &types.SessionConfig{
		NodeCount:      s.Config.NodeCount,
		BranchCount:    branches,
		LeaderID:       topology.LeaderForView(s.CurrentView, s.Config.NodeCount),
		ByzantineCount: s.Config.FaultyNodes,
		ProposalValue:  s.Config.ProposalValue,
	}

	f.mu.Lock()
	f.lastCfg = cfg
	f.mu.Unlock()
	return cfg, nil
}

// FetchRoundNumbers lists the rounds the engine has history for.
func (f *HTTPTraceFetcher) FetchRoundNumbers() ([]int, error) {
	var list engineRoundList
	if err := f.getJSON(f.sessionURL("/history"), &list); err != nil {
		return nil, err
	}
	return list.Rounds, nil
}

// FetchRound retrieves the history of one round.
func (f *HTTPTraceFetcher) FetchRound(number int) (*types.Round, error) {
	var r engineRound
	if err := f.getJSON(fmt.Sprintf("%s?round=%d", f.sessionURL("/history"), number), &r); err != nil {
		return nil, err
	}
	if r.Number == 0 {
		r.Number = number
	}
	return &r.Round, nil
}

// IsConnected returns whether the last request reached the engine.
func (f *HTTPTraceFetcher) IsConnected() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.connected
}

// Reconnect attempts to reach the session endpoint.
func (f *HTTPTraceFetcher) Reconnect() error {
	var s engineSession
	return f.getJSON(f.sessionURL(""), &s)
}

// SessionID returns the session this fetcher reads.
func (f *HTTPTraceFetcher) SessionID() string {
	return f.sessionID
}
