// Package topology computes the rendered layout of a consensus cluster.
//
// Roles and groups are pure functions of (nodeID, nodeCount, branchCount,
// leader). Nothing here caches a role; callers recompute on every leader or
// count change.
package topology

import "github.com/salahayoub/hotviz/pkg/types"

// Mode is the topology regime a layout is drawn in.
type Mode int

const (
	SingleLayer Mode = iota
	TwoLayer
)

// String returns the wire name of the mode.
func (m Mode) String() string {
	if m == TwoLayer {
		return "two-layer"
	}
	return "single-layer"
}

// Role is a node's derived position in the hierarchy.
type Role int

const (
	RoleMember Role = iota
	RoleGroupLeader
	RoleRoot
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RoleRoot:
		return "root"
	case RoleGroupLeader:
		return "group_leader"
	default:
		return "member"
	}
}

// ModeFor selects two-layer only when there are at least two branches and
// every branch can hold two nodes.
func ModeFor(nodeCount, branchCount int) Mode {
	if branchCount > 1 && nodeCount >= branchCount*2 {
		return TwoLayer
	}
	return SingleLayer
}

// EffectiveBranches is the branch count actually used for grouping: the
// requested count in two-layer mode, 1 otherwise.
func EffectiveBranches(nodeCount, branchCount int) int {
	if ModeFor(nodeCount, branchCount) == TwoLayer {
		return branchCount
	}
	return 1
}

// GroupSize is floor(nodeCount / branches), never below 1.
func GroupSize(nodeCount, branchCount int) int {
	b := EffectiveBranches(nodeCount, branchCount)
	size := nodeCount / b
	if size < 1 {
		return 1
	}
	return size
}

// GroupOf returns the group of id. Ids past branches*groupSize fold into the
// last group, so the last group may be larger than the others.
func GroupOf(id types.NodeID, nodeCount, branchCount int) int {
	b := EffectiveBranches(nodeCount, branchCount)
	g := int(id) / GroupSize(nodeCount, branchCount)
	if g >= b {
		g = b - 1
	}
	if g < 0 {
		g = 0
	}
	return g
}

// GroupLeaderID is the smallest id of group g.
func GroupLeaderID(g, nodeCount, branchCount int) types.NodeID {
	return types.NodeID(g * GroupSize(nodeCount, branchCount))
}

// GroupBounds returns the half-open id range [start, end) of group g.
func GroupBounds(g, nodeCount, branchCount int) (types.NodeID, types.NodeID) {
	size := GroupSize(nodeCount, branchCount)
	start := g * size
	end := start + size
	if g == EffectiveBranches(nodeCount, branchCount)-1 || end > nodeCount {
		end = nodeCount
	}
	return types.NodeID(start), types.NodeID(end)
}

// NormalizeLeader maps any leader id into [0, nodeCount) the same way view
// numbers map onto leaders.
func NormalizeLeader(leader types.NodeID, nodeCount int) types.NodeID {
	if nodeCount <= 0 {
		return 0
	}
	l := int(leader) % nodeCount
	if l < 0 {
		l += nodeCount
	}
	return types.NodeID(l)
}

// LeaderForView is the rotating leader of a view: view mod nodeCount.
func LeaderForView(view, nodeCount int) types.NodeID {
	return NormalizeLeader(types.NodeID(view), nodeCount)
}

// RoleOf derives the role of id. The leader is always root; in two-layer
// mode the first id of each other group is its group leader.
func RoleOf(id types.NodeID, nodeCount, branchCount int, leader types.NodeID) Role {
	if id == NormalizeLeader(leader, nodeCount) {
		return RoleRoot
	}
	if ModeFor(nodeCount, branchCount) == SingleLayer {
		return RoleMember
	}
	g := GroupOf(id, nodeCount, branchCount)
	if id == GroupLeaderID(g, nodeCount, branchCount) {
		return RoleGroupLeader
	}
	return RoleMember
}

// ByzantineRange returns the trailing half-open id range flagged as faulty,
// clamped to [max(0, n-b), n).
func ByzantineRange(nodeCount, byzantineCount int) (types.NodeID, types.NodeID) {
	if nodeCount < 0 {
		nodeCount = 0
	}
	if byzantineCount < 0 {
		byzantineCount = 0
	}
	start := nodeCount - byzantineCount
	if start < 0 {
		start = 0
	}
	return types.NodeID(start), types.NodeID(nodeCount)
}

// IsByzantine reports whether id falls in the byzantine range.
func IsByzantine(id types.NodeID, nodeCount, byzantineCount int) bool {
	start, end := ByzantineRange(nodeCount, byzantineCount)
	return id >= start && id < end
}
