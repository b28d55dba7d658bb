// Package trace turns engine round records into ordered animation batches
// and computes the per-round statistics shown next to the playback.
package trace

import (
	"github.com/salahayoub/hotviz/pkg/anim"
	"github.com/salahayoub/hotviz/pkg/topology"
	"github.com/salahayoub/hotviz/pkg/types"
)

// step selects the messages of one HotStuff step.
type step struct {
	typ   string
	phase types.Phase
}

// hotstuffSteps is the order a round is replayed in: proposal, then for
// each of prepare, pre-commit and commit the votes followed by the QC.
var hotstuffSteps = []step{
	{types.MsgProposal, ""},
	{types.MsgVote, types.PhasePrepare},
	{types.MsgQC, types.PhasePrepare},
	{types.MsgVote, types.PhasePreCommit},
	{types.MsgQC, types.PhasePreCommit},
	{types.MsgVote, types.PhaseCommit},
	{types.MsgQC, types.PhaseCommit},
}

// FinalView is the highest view any message of r carries. Messages from
// earlier views belong to attempts that timed out.
func FinalView(r types.Round) int {
	view := r.View
	for i, m := range r.Messages {
		if i == 0 || m.View > view {
			view = m.View
		}
	}
	return view
}

// BuildBatches orders the messages of r into animation batches. A round
// that already carries batches is returned unchanged.
//
// In two-layer mode every broadcast is split into the root reaching the
// group leaders and then each group head reaching its members, and votes
// travel member to group leader before group leaders vote to the root.
func BuildBatches(r types.Round, cfg types.SessionConfig) [][]types.Message {
	if len(r.Batches) > 0 {
		return r.Batches
	}
	if len(r.Messages) == 0 || cfg.NodeCount <= 0 {
		return nil
	}

	view := FinalView(r)
	msgs := make([]types.Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.View == view {
			msgs = append(msgs, m)
		}
	}

	layout := topology.ComputeLayout(topology.Params{
		NodeCount:   cfg.NodeCount,
		BranchCount: cfg.BranchCount,
		Leader:      r.Leader,
	}, topology.DefaultCanvas)
	b := &builder{layout: layout}

	for _, s := range hotstuffSteps {
		selected := selectStep(msgs, s)
		if len(selected) == 0 {
			continue
		}
		if s.typ == types.MsgVote {
			b.votes(selected)
		} else {
			for _, m := range selected {
				b.broadcast(m, s)
			}
		}
	}
	return b.out
}

func selectStep(msgs []types.Message, s step) []types.Message {
	var out []types.Message
	for _, m := range msgs {
		if m.Type != s.typ {
			continue
		}
		if s.phase != "" && m.Phase != s.phase {
			continue
		}
		out = append(out, m)
	}
	return out
}

type builder struct {
	layout *topology.Layout
	out    [][]types.Message
}

func (b *builder) emit(batch []types.Message) {
	if len(batch) > 0 {
		b.out = append(b.out, batch)
	}
}

// displayPhase is the phase a step's messages are shown under. A QC for
// phase p opens the phase after it.
func displayPhase(m types.Message, s step) types.Phase {
	switch s.typ {
	case types.MsgProposal:
		return types.PhasePrepare
	case types.MsgQC:
		return s.phase.Next()
	default:
		return m.Phase
	}
}

func (b *builder) broadcast(m types.Message, s step) {
	m.Phase = displayPhase(m, s)
	if !m.Dst.IsSymbolic() || b.layout.Mode == topology.SingleLayer {
		b.emit([]types.Message{m})
		return
	}

	down := m
	down.Dst = types.ToGroupLeaders
	b.emit([]types.Message{down})

	var relay []types.Message
	groups := topology.EffectiveBranches(b.layout.Params.NodeCount, b.layout.Params.BranchCount)
	for g := 0; g < groups; g++ {
		head := topology.GroupLeaderID(g, b.layout.Params.NodeCount, b.layout.Params.BranchCount)
		pos, ok := b.layout.At(head)
		if !ok || pos.Role == topology.RoleMember {
			continue
		}
		r := m
		r.Src = head
		r.Dst = types.ToGroupMembers
		relay = append(relay, r)
	}
	b.emit(relay)
}

func (b *builder) votes(msgs []types.Message) {
	if b.layout.Mode == topology.SingleLayer {
		b.emit(msgs)
		return
	}

	leader := b.layout.Leader()
	var up, top []types.Message
	for _, m := range msgs {
		pos, ok := b.layout.At(m.Src)
		if !ok {
			continue
		}
		switch pos.Role {
		case topology.RoleMember:
			parent, ok := b.layout.ParentOf(m.Src)
			if !ok {
				continue
			}
			m.Dst = types.ToNode(parent)
			up = append(up, m)
		case topology.RoleGroupLeader:
			if m.Dst == types.ToNode(leader) {
				top = append(top, m)
			}
		}
	}
	b.emit(up)
	b.emit(top)
}

// Playlist converts the rounds of t into sequencer rounds.
func Playlist(t *types.Trace) []anim.Round {
	rounds := make([]anim.Round, 0, len(t.Rounds))
	for _, r := range t.Rounds {
		batches := BuildBatches(r, t.Config)
		ar := make(anim.Round, 0, len(batches))
		for _, batch := range batches {
			ar = append(ar, anim.Batch(batch))
		}
		rounds = append(rounds, ar)
	}
	return rounds
}
