package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salahayoub/hotviz/pkg/types"
)

func TestQuorum(t *testing.T) {
	tests := []struct {
		n, want int
	}{
		{1, 1},
		{4, 3},
		{7, 5},
		{10, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quorum(tt.n), "Quorum(%d)", tt.n)
	}
	assert.Equal(t, 1, LocalQuorum(3))
	assert.Equal(t, 3, LocalQuorum(4))
}

func TestCompare(t *testing.T) {
	c := Compare(8, 2, 50)
	require.Len(t, c.Algorithms, 4)

	byKey := map[string]Algorithm{}
	for _, a := range c.Algorithms {
		byKey[a.Key] = a
	}

	assert.Equal(t, 64, byKey["double_hotstuff"].Theoretical)
	assert.True(t, byKey["double_hotstuff"].Current)

	assert.Equal(t, 128, byKey["pbft_pure"].Theoretical)
	assert.Equal(t, 112, byKey["pbft_pure"].Actual)
	assert.InDelta(t, 2.56, byKey["pbft_pure"].Ratio, 1e-9)

	assert.Equal(t, 32, byKey["hotstuff_pure"].Theoretical)
	assert.Equal(t, 56, byKey["hotstuff_pure"].Actual)

	assert.Equal(t, 72, byKey["pbft_multi_layer"].Theoretical)
	assert.Equal(t, 52, byKey["pbft_multi_layer"].Actual)
}

func TestCompareZeroActual(t *testing.T) {
	c := Compare(4, 0, 0)
	assert.Equal(t, 1, c.BranchCount)
	for _, a := range c.Algorithms {
		assert.Zero(t, a.Ratio, a.Key)
	}
}

func TestSummarize(t *testing.T) {
	tr := &types.Trace{
		Config: types.SessionConfig{NodeCount: 4, BranchCount: 1},
		Rounds: []types.Round{{
			Number:    1,
			Leader:    5,
			Consensus: "Consensus Completed",
			Messages: []types.Message{
				broadcast(1, types.MsgProposal, types.PhasePrepare, 0),
				vote(2, 1, types.PhasePrepare, 0),
				vote(9, 1, types.PhasePrepare, 0),
			},
		}},
	}
	stats := Summarize(tr)
	require.Len(t, stats, 1)
	s := stats[0]
	assert.Equal(t, types.NodeID(1), s.Leader)
	assert.Equal(t, 2, s.Batches)
	assert.Equal(t, 4, s.Units)
	assert.Equal(t, 1, s.Dropped)
	assert.Equal(t, 3, s.ByPhase[types.PhasePrepare])
	assert.Equal(t, 3, s.Quorum)
}
