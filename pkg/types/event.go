package types

import "time"

// EventKind names a live event on the session channel.
type EventKind string

const (
	EventSessionConfig   EventKind = "session_config"
	EventPhaseUpdate     EventKind = "phase_update"
	EventNewRound        EventKind = "new_round"
	EventMessageReceived EventKind = "message_received"
	EventConsensusResult EventKind = "consensus_result"
)

// PhaseUpdate reports the engine's current phase. View and Leader are
// optional on the wire.
type PhaseUpdate struct {
	Phase  Phase   `json:"phase"`
	Step   int     `json:"step"`
	View   *int    `json:"view,omitempty"`
	Leader *NodeID `json:"leader,omitempty"`
}

// NewRound announces the start of a consensus round.
type NewRound struct {
	Round  int     `json:"round"`
	View   int     `json:"view"`
	Phase  Phase   `json:"phase"`
	Step   int     `json:"step"`
	Leader *NodeID `json:"leader,omitempty"`
}

// ReceivedMessage is a message delivered to the local node.
type ReceivedMessage struct {
	From  NodeID `json:"from"`
	Type  string `json:"type"`
	Value int    `json:"value"`
}

// ConsensusResult is the outcome reported when a round ends.
type ConsensusResult struct {
	Status      string `json:"status"`
	Description string `json:"description"`
}

// Event is a tagged union of the live payloads. Exactly one payload field
// matching Kind is set. Seq is the recorder's sequence number, zero for
// events that were never recorded.
type Event struct {
	Kind    EventKind        `json:"kind"`
	Seq     uint64           `json:"seq,omitempty"`
	Time    time.Time        `json:"time"`
	Config  *SessionConfig   `json:"config,omitempty"`
	Phase   *PhaseUpdate     `json:"phase,omitempty"`
	Round   *NewRound        `json:"round,omitempty"`
	Message *ReceivedMessage `json:"message,omitempty"`
	Result  *ConsensusResult `json:"result,omitempty"`
}
