package topology

import (
	"math"

	"github.com/salahayoub/hotviz/pkg/types"
)

// Color is a role-derived fill color. The renderer maps it to a concrete
// palette entry.
type Color string

const (
	ColorGold  Color = "gold"
	ColorBlue  Color = "blue"
	ColorGreen Color = "green"
	ColorRed   Color = "red"
)

// Node radii. Root > group leader > member is part of the legend contract.
const (
	RootRadius        = 24.0
	GroupLeaderRadius = 18.0
	MemberRadius      = 14.0
)

const (
	// circleRatio is the single-layer circle radius as a share of the
	// shorter canvas side.
	circleRatio = 0.38

	rootRowRatio   = 0.12
	leaderRowRatio = 0.45
	memberRowRatio = 0.80

	// MinMemberSpacing is the anti-overlap floor between members of one
	// group, in canvas units.
	MinMemberSpacing = 2*MemberRadius + 8
)

// Canvas is the drawing area positions are computed for.
type Canvas struct {
	Width  float64
	Height float64
}

// DefaultCanvas matches the engine's web canvas.
var DefaultCanvas = Canvas{Width: 800, Height: 600}

// Params are the inputs of a layout.
type Params struct {
	NodeCount      int
	BranchCount    int
	Leader         types.NodeID
	ByzantineCount int
}

// ParamsFromConfig builds layout inputs from a session config.
func ParamsFromConfig(cfg types.SessionConfig) Params {
	return Params{
		NodeCount:      cfg.NodeCount,
		BranchCount:    cfg.BranchCount,
		Leader:         cfg.LeaderID,
		ByzantineCount: cfg.ByzantineCount,
	}
}

// Position is a node's rendered placement.
type Position struct {
	X         float64
	Y         float64
	Role      Role
	Color     Color
	Radius    float64
	Group     int
	Byzantine bool
}

// Edge is a static topology link drawn under the animation.
type Edge struct {
	From types.NodeID
	To   types.NodeID
}

// Layout is the output of ComputeLayout. Positions is indexed by NodeID.
type Layout struct {
	Params    Params
	Canvas    Canvas
	Mode      Mode
	GroupSize int
	Positions []Position
}

// ComputeLayout places every node in [0, NodeCount). It returns an empty
// layout only when NodeCount <= 0. Identical inputs give identical output.
func ComputeLayout(p Params, c Canvas) *Layout {
	l := &Layout{Params: p, Canvas: c, Mode: ModeFor(p.NodeCount, p.BranchCount)}
	if p.NodeCount <= 0 {
		return l
	}
	l.Params.Leader = NormalizeLeader(p.Leader, p.NodeCount)
	l.GroupSize = GroupSize(p.NodeCount, p.BranchCount)
	l.Positions = make([]Position, p.NodeCount)

	for i := range l.Positions {
		id := types.NodeID(i)
		role := RoleOf(id, p.NodeCount, p.BranchCount, l.Params.Leader)
		l.Positions[i] = Position{
			Role:      role,
			Color:     roleColor(role),
			Radius:    roleRadius(role),
			Group:     GroupOf(id, p.NodeCount, p.BranchCount),
			Byzantine: IsByzantine(id, p.NodeCount, p.ByzantineCount),
		}
		if l.Positions[i].Byzantine {
			l.Positions[i].Color = ColorRed
		}
	}

	if l.Mode == TwoLayer {
		l.placeTwoLayer()
	} else {
		l.placeCircle()
	}
	return l
}

// placeCircle spreads nodes clockwise on a circle starting at the top.
func (l *Layout) placeCircle() {
	n := len(l.Positions)
	cx, cy := l.Canvas.Width/2, l.Canvas.Height/2
	r := math.Min(l.Canvas.Width, l.Canvas.Height) * circleRatio
	for i := range l.Positions {
		angle := -math.Pi/2 + 2*math.Pi*float64(i)/float64(n)
		l.Positions[i].X = cx + r*math.Cos(angle)
		l.Positions[i].Y = cy + r*math.Sin(angle)
	}
}

// placeTwoLayer puts the root top-center, group leaders on the middle row
// under their column and members centered on the bottom row. Member spacing
// never drops below MinMemberSpacing, so large groups overflow their column.
func (l *Layout) placeTwoLayer() {
	branches := l.Params.BranchCount
	colWidth := l.Canvas.Width / float64(branches)

	members := make([][]int, branches)
	for i, pos := range l.Positions {
		switch pos.Role {
		case RoleRoot:
			l.Positions[i].X = l.Canvas.Width / 2
			l.Positions[i].Y = l.Canvas.Height * rootRowRatio
		case RoleGroupLeader:
			l.Positions[i].X = colWidth * (float64(pos.Group) + 0.5)
			l.Positions[i].Y = l.Canvas.Height * leaderRowRatio
		default:
			members[pos.Group] = append(members[pos.Group], i)
		}
	}

	for g, ids := range members {
		if len(ids) == 0 {
			continue
		}
		center := colWidth * (float64(g) + 0.5)
		spacing := math.Max(colWidth/float64(len(ids)), MinMemberSpacing)
		offset := float64(len(ids)-1) / 2
		for k, i := range ids {
			l.Positions[i].X = center + (float64(k)-offset)*spacing
			l.Positions[i].Y = l.Canvas.Height * memberRowRatio
		}
	}
}

// Len returns the number of placed nodes.
func (l *Layout) Len() int {
	return len(l.Positions)
}

// At returns the position of id, or false when id has no layout entry.
func (l *Layout) At(id types.NodeID) (Position, bool) {
	if l == nil || id < 0 || int(id) >= len(l.Positions) {
		return Position{}, false
	}
	return l.Positions[id], true
}

// Leader returns the normalized global leader.
func (l *Layout) Leader() types.NodeID {
	return l.Params.Leader
}

// ParentOf returns the node id aggregates for: the root for group leaders,
// the group leader (or the root, when it occupies that slot) for members.
// The root has no parent.
func (l *Layout) ParentOf(id types.NodeID) (types.NodeID, bool) {
	pos, ok := l.At(id)
	if !ok || pos.Role == RoleRoot {
		return 0, false
	}
	if pos.Role == RoleGroupLeader || l.Mode == SingleLayer {
		return l.Params.Leader, true
	}
	gl := GroupLeaderID(pos.Group, l.Params.NodeCount, l.Params.BranchCount)
	if gl == l.Params.Leader {
		return l.Params.Leader, true
	}
	return gl, true
}

// Edges returns the static links: each non-root node to its parent.
func (l *Layout) Edges() []Edge {
	edges := make([]Edge, 0, len(l.Positions))
	for i := range l.Positions {
		if parent, ok := l.ParentOf(types.NodeID(i)); ok {
			edges = append(edges, Edge{From: parent, To: types.NodeID(i)})
		}
	}
	return edges
}

// Nodes converts the layout into its JSON document form.
func (l *Layout) Nodes() []types.LayoutNode {
	nodes := make([]types.LayoutNode, len(l.Positions))
	for i, pos := range l.Positions {
		nodes[i] = types.LayoutNode{
			ID:     types.NodeID(i),
			X:      pos.X,
			Y:      pos.Y,
			Role:   pos.Role.String(),
			Color:  string(pos.Color),
			Radius: pos.Radius,
			Group:  pos.Group,
		}
	}
	return nodes
}

func roleColor(r Role) Color {
	switch r {
	case RoleRoot:
		return ColorGold
	case RoleGroupLeader:
		return ColorBlue
	default:
		return ColorGreen
	}
}

func roleRadius(r Role) float64 {
	switch r {
	case RoleRoot:
		return RootRadius
	case RoleGroupLeader:
		return GroupLeaderRadius
	default:
		return MemberRadius
	}
}
