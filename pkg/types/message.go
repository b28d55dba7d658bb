package types

import "encoding/json"

// NodeID identifies a node. Valid ids lie in [0, nodeCount).
type NodeID int

// Phase is a HotStuff phase name.
type Phase string

const (
	PhaseNewView   Phase = "new-view"
	PhasePrepare   Phase = "prepare"
	PhasePreCommit Phase = "pre-commit"
	PhaseCommit    Phase = "commit"
	PhaseDecide    Phase = "decide"
)

// Next returns the phase that follows p. Decide is terminal and unknown
// phases restart at prepare.
func (p Phase) Next() Phase {
	switch p {
	case PhaseNewView:
		return PhasePrepare
	case PhasePrepare:
		return PhasePreCommit
	case PhasePreCommit:
		return PhaseCommit
	case PhaseCommit, PhaseDecide:
		return PhaseDecide
	default:
		return PhasePrepare
	}
}

// Message types emitted by the protocol engine.
const (
	MsgProposal = "proposal"
	MsgVote     = "vote"
	MsgQC       = "qc"
	MsgNewView  = "new_view"
)

// Message is one consensus message of a round trace. It is produced
// externally and treated as immutable.
type Message struct {
	Src    NodeID      `json:"src" yaml:"src"`
	Dst    Destination `json:"dst" yaml:"dst"`
	Type   string      `json:"type" yaml:"type"`
	Value  int         `json:"value" yaml:"value"`
	Phase  Phase       `json:"phase,omitempty" yaml:"phase,omitempty"`
	View   int         `json:"view,omitempty" yaml:"view,omitempty"`
	Weight int         `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// UnmarshalJSON also accepts the engine's history spelling, where source
// and destination are "from"/"to" and QC messages carry their value under
// "qc.value".
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Src    *NodeID      `json:"src"`
		From   *NodeID      `json:"from"`
		Dst    *Destination `json:"dst"`
		To     *Destination `json:"to"`
		Type   string       `json:"type"`
		Value  *int         `json:"value"`
		Phase  Phase        `json:"phase"`
		View   int          `json:"view"`
		Weight int          `json:"weight"`
		QC     *struct {
			Value *int `json:"value"`
		} `json:"qc"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = Message{Type: raw.Type, Phase: raw.Phase, View: raw.View, Weight: raw.Weight}
	switch {
	case raw.Src != nil:
		m.Src = *raw.Src
	case raw.From != nil:
		m.Src = *raw.From
	}
	switch {
	case raw.Dst != nil:
		m.Dst = *raw.Dst
	case raw.To != nil:
		m.Dst = *raw.To
	}
	switch {
	case raw.Value != nil:
		m.Value = *raw.Value
	case raw.QC != nil && raw.QC.Value != nil:
		m.Value = *raw.QC.Value
	}
	return nil
}

// Round is one consensus round as delivered by the engine. Batches, when
// present, is the ordered animation sequence; otherwise it is derived from
// Messages.
type Round struct {
	Number    int         `json:"round" yaml:"round"`
	Leader    NodeID      `json:"leaderId" yaml:"leaderId"`
	Phase     Phase       `json:"phase,omitempty" yaml:"phase,omitempty"`
	Step      int         `json:"step" yaml:"step"`
	View      int         `json:"view" yaml:"view"`
	Messages  []Message   `json:"messages" yaml:"messages"`
	Batches   [][]Message `json:"animation_sequence,omitempty" yaml:"batches,omitempty"`
	Consensus string      `json:"consensus,omitempty" yaml:"consensus,omitempty"`
}

// Trace is a complete replayable session: its configuration and rounds in
// play order.
type Trace struct {
	Config SessionConfig `json:"config" yaml:"config"`
	Rounds []Round       `json:"rounds" yaml:"rounds"`
}
