// Package anim plays a round trace as point-to-point transfers.
//
// Playback is cooperative: nothing here starts a goroutine or a timer. The
// host calls Tick once per rendered frame and every tick advances each
// in-flight unit by a fixed step, so playback speed follows the frame rate.
package anim

import (
	"github.com/salahayoub/hotviz/pkg/topology"
	"github.com/salahayoub/hotviz/pkg/types"
)

// DefaultStep is the progress added to a unit per frame.
const DefaultStep = 0.02

// Unit is one moving marker between two node positions.
type Unit struct {
	Src      types.NodeID
	Dst      types.NodeID
	Start    topology.Position
	End      topology.Position
	Progress float64
	Value    int
	Type     string
	Phase    types.Phase
}

// Point returns the marker position, linearly interpolated by Progress.
func (u *Unit) Point() (x, y float64) {
	t := u.Progress
	if t > 1 {
		t = 1
	}
	return u.Start.X + (u.End.X-u.Start.X)*t, u.Start.Y + (u.End.Y-u.Start.Y)*t
}

// Done reports whether the unit reached its destination.
func (u *Unit) Done() bool {
	return u.Progress >= 1
}

// Surface is the rendering target of a playback. A surface is driven by one
// playback at a time.
type Surface interface {
	// DrawTopology redraws the static edges and nodes.
	DrawTopology(layout *topology.Layout)
	// DrawMarker renders a unit at its current position. correct reports
	// whether the carried value matches the expected value.
	DrawMarker(u *Unit, correct bool)
	// ShowConsensus presents the decided value after the last round.
	ShowConsensus(value int)
}

// Batch is a group of messages animated together.
type Batch []types.Message

// Round is an ordered list of batches.
type Round []Batch
