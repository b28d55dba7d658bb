package types

// SessionConfig is the configuration a session was started with.
type SessionConfig struct {
	NodeCount      int    `json:"nodeCount" yaml:"nodeCount"`
	BranchCount    int    `json:"branchCount" yaml:"branchCount"`
	LeaderID       NodeID `json:"leaderId" yaml:"leaderId"`
	ByzantineCount int    `json:"byzantineCount" yaml:"byzantineCount"`
	ProposalValue  int    `json:"proposalValue" yaml:"proposalValue"`
}

// HistoryItem records the outcome of one finished round.
type HistoryItem struct {
	Round       int    `json:"round"`
	View        int    `json:"view"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Messages    int    `json:"messages"`
}
