package tui

import (
	"fmt"
	"strings"

	"github.com/salahayoub/hotviz/pkg/topology"
)

// HeaderBar renders the session overview header.
type HeaderBar struct {
	unicodeSupport bool
}

// NewHeaderBar creates a header bar renderer.
func NewHeaderBar(unicodeSupport bool) *HeaderBar {
	return &HeaderBar{unicodeSupport: unicodeSupport}
}

// Render outputs the header bar content.
// Format: "hotviz <session> | n=N k=K <mode> | Round R/T | View V | Leader L | <phase>/<step> <link>"
func (h *HeaderBar) Render(model *Model) string {
	if model == nil {
		return ""
	}
	cfg := model.Config
	mode := topology.ModeFor(cfg.NodeCount, cfg.BranchCount)

	parts := []string{"hotviz"}
	if model.Session != "" {
		parts[0] += " " + model.Session
	}
	parts = append(parts, fmt.Sprintf("n=%d k=%d %s", cfg.NodeCount, cfg.BranchCount, mode))

	if len(model.Rounds) > 0 {
		round, _ := model.SelectedRound()
		parts = append(parts, fmt.Sprintf("Round %d/%d", round.Number, len(model.Rounds)))
	} else {
		parts = append(parts, "Round -")
	}

	st := model.State
	if st.HasView {
		parts = append(parts, fmt.Sprintf("View %d", st.View))
	}
	leader := cfg.LeaderID
	if model.Layout != nil {
		leader = model.Layout.Leader()
	}
	parts = append(parts, fmt.Sprintf("Leader %d", leader))
	parts = append(parts, fmt.Sprintf("%s/%d %s", st.Phase, st.Step, h.linkSymbol(model.Connected)))

	return strings.Join(parts, " | ")
}

func (h *HeaderBar) linkSymbol(connected bool) string {
	if h.unicodeSupport {
		if connected {
			return "●"
		}
		return "○"
	}
	if connected {
		return "[OK]"
	}
	return "[--]"
}
