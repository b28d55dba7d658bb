// Package types holds shared data structures used across hotviz packages:
// the trace and event payloads received from the protocol engine and the
// JSON documents served over HTTP.
package types

// StatusResponse is the JSON payload returned by the /status endpoint.
type StatusResponse struct {
	SessionID   string `json:"session_id"`
	NodeCount   int    `json:"node_count"`
	BranchCount int    `json:"branch_count"`
	Mode        string `json:"mode"`
	Leader      NodeID `json:"leader"`
	Phase       Phase  `json:"phase"`
	Step        int    `json:"step"`
	View        int    `json:"view"`
	Rounds      int    `json:"rounds"`
	Events      int    `json:"events"`
}

// LayoutNode is one entry of the /layout document.
type LayoutNode struct {
	ID     NodeID  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Role   string  `json:"role"`
	Color  string  `json:"color"`
	Radius float64 `json:"radius"`
	Group  int     `json:"group"`
}
