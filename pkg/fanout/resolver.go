// Package fanout expands symbolic message destinations into concrete
// recipients using the roles of a computed layout.
package fanout

import (
	"github.com/salahayoub/hotviz/pkg/topology"
	"github.com/salahayoub/hotviz/pkg/types"
)

// ResolveTargets returns the recipients of msg. It is pure: the same message
// and layout always yield the same ids, in ascending order.
//
// A source without a layout entry resolves to nothing, and a literal
// destination outside the layout is dropped.
func ResolveTargets(msg types.Message, layout *topology.Layout) []types.NodeID {
	src, ok := layout.At(msg.Src)
	if !ok {
		return nil
	}

	switch msg.Dst.Kind {
	case types.DestAll:
		return collect(layout, func(id types.NodeID, _ topology.Position) bool {
			return id != msg.Src
		})

	case types.DestGroupLeaders:
		// the root is never counted as a group leader
		return collect(layout, func(_ types.NodeID, pos topology.Position) bool {
			return pos.Role == topology.RoleGroupLeader
		})

	case types.DestGroupMembers:
		return collect(layout, func(id types.NodeID, pos topology.Position) bool {
			return id != msg.Src && pos.Group == src.Group && pos.Role == topology.RoleMember
		})

	default:
		if _, ok := layout.At(msg.Dst.Node); !ok {
			return nil
		}
		return []types.NodeID{msg.Dst.Node}
	}
}

func collect(layout *topology.Layout, keep func(types.NodeID, topology.Position) bool) []types.NodeID {
	var ids []types.NodeID
	for i, pos := range layout.Positions {
		id := types.NodeID(i)
		if keep(id, pos) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Pair is one resolved point-to-point transfer of a message.
type Pair struct {
	Src     types.NodeID
	Dst     types.NodeID
	Message types.Message
}

// ExpandBatch resolves every message of a batch. dropped counts messages
// that resolved to no recipient because of an out-of-range id.
func ExpandBatch(batch []types.Message, layout *topology.Layout) (pairs []Pair, dropped int) {
	for _, msg := range batch {
		if !inRange(msg.Src, layout) || !msg.Dst.IsSymbolic() && !inRange(msg.Dst.Node, layout) {
			dropped++
			continue
		}
		for _, dst := range ResolveTargets(msg, layout) {
			pairs = append(pairs, Pair{Src: msg.Src, Dst: dst, Message: msg})
		}
	}
	return pairs, dropped
}

func inRange(id types.NodeID, layout *topology.Layout) bool {
	_, ok := layout.At(id)
	return ok
}
