package trace

import (
	"github.com/salahayoub/hotviz/pkg/fanout"
	"github.com/salahayoub/hotviz/pkg/topology"
	"github.com/salahayoub/hotviz/pkg/types"
)

// FaultTolerance is f = floor((n-1)/3), the Byzantine nodes n can absorb.
func FaultTolerance(n int) int {
	if n <= 1 {
		return 0
	}
	return (n - 1) / 3
}

// Quorum is the global 2f+1 vote threshold for n nodes.
func Quorum(n int) int {
	return 2*FaultTolerance(n) + 1
}

// LocalQuorum is the 2f+1 threshold inside a group of groupSize nodes.
func LocalQuorum(groupSize int) int {
	return 2*FaultTolerance(groupSize) + 1
}

// Algorithm is one row of the message complexity comparison.
type Algorithm struct {
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	Theoretical int     `json:"theoretical"`
	Actual      int     `json:"actual"`
	Complexity  string  `json:"complexity"`
	Ratio       float64 `json:"optimization_ratio,omitempty"`
	Current     bool    `json:"is_current,omitempty"`
}

// Comparison contrasts the two-layer protocol with flat PBFT, flat
// HotStuff and multi-layer PBFT for the same n and k.
type Comparison struct {
	NodeCount   int         `json:"node_count"`
	BranchCount int         `json:"branch_count"`
	Actual      int         `json:"actual_messages"`
	Algorithms  []Algorithm `json:"algorithms"`
}

// Compare computes the comparison for n nodes in k groups, given the
// number of messages the two-layer run actually sent. Ratios are the
// other algorithm's theoretical count over actual, and zero when actual
// is zero.
func Compare(n, k, actual int) Comparison {
	if k < 1 {
		k = 1
	}
	gs := n / k

	ratio := func(theoretical int) float64 {
		if actual <= 0 {
			return 0
		}
		return float64(theoretical) / float64(actual)
	}

	pbft := 2 * n * n
	hotstuff := 4 * n
	multi := 2*k*k + 2*n*n/k

	return Comparison{
		NodeCount:   n,
		BranchCount: k,
		Actual:      actual,
		Algorithms: []Algorithm{
			{
				Key:         "double_hotstuff",
				Name:        "Double-Layer HotStuff",
				Theoretical: 8 * n,
				Actual:      actual,
				Complexity:  "O(N)",
				Current:     true,
			},
			{
				Key:         "pbft_pure",
				Name:        "PBFT",
				Theoretical: pbft,
				Actual:      2 * n * (n - 1),
				Complexity:  "O(N^2)",
				Ratio:       ratio(pbft),
			},
			{
				Key:         "hotstuff_pure",
				Name:        "HotStuff",
				Theoretical: hotstuff,
				Actual:      8 * (n - 1),
				Complexity:  "O(N)",
				Ratio:       ratio(hotstuff),
			},
			{
				Key:         "pbft_multi_layer",
				Name:        "PBFT (Multi-Layer)",
				Theoretical: multi,
				Actual:      2*k*(k-1) + k*2*gs*(gs-1),
				Complexity:  "O(K^2 + N^2/K)",
				Ratio:       ratio(multi),
			},
		},
	}
}

// CountUnits returns how many point-to-point transfers batches expand to
// on layout, and how many messages were dropped for bad node ids.
func CountUnits(batches [][]types.Message, layout *topology.Layout) (units, dropped int) {
	for _, batch := range batches {
		pairs, d := fanout.ExpandBatch(batch, layout)
		units += len(pairs)
		dropped += d
	}
	return units, dropped
}

// RoundStats summarizes one round for display.
type RoundStats struct {
	Round     int                 `json:"round"`
	View      int                 `json:"view"`
	Leader    types.NodeID        `json:"leader"`
	Batches   int                 `json:"batches"`
	Units     int                 `json:"units"`
	Dropped   int                 `json:"dropped"`
	ByPhase   map[types.Phase]int `json:"byPhase"`
	Quorum    int                 `json:"quorum"`
	Consensus string              `json:"consensus,omitempty"`
}

// Summarize computes RoundStats for every round of t.
func Summarize(t *types.Trace) []RoundStats {
	out := make([]RoundStats, 0, len(t.Rounds))
	for _, r := range t.Rounds {
		layout := topology.ComputeLayout(topology.Params{
			NodeCount:      t.Config.NodeCount,
			BranchCount:    t.Config.BranchCount,
			Leader:         r.Leader,
			ByzantineCount: t.Config.ByzantineCount,
		}, topology.DefaultCanvas)
		batches := BuildBatches(r, t.Config)
		units, dropped := CountUnits(batches, layout)

		byPhase := make(map[types.Phase]int)
		for _, m := range r.Messages {
			if m.Phase != "" {
				byPhase[m.Phase]++
			}
		}
		out = append(out, RoundStats{
			Round:     r.Number,
			View:      FinalView(r),
			Leader:    layout.Leader(),
			Batches:   len(batches),
			Units:     units,
			Dropped:   dropped,
			ByPhase:   byPhase,
			Quorum:    Quorum(t.Config.NodeCount),
			Consensus: r.Consensus,
		})
	}
	return out
}
