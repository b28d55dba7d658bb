// Package phase tracks one node's view of protocol progress from the live
// event stream and classifies view changes.
package phase

import (
	"fmt"
	"sync"
	"time"

	"github.com/salahayoub/hotviz/pkg/metrics"
	"github.com/salahayoub/hotviz/pkg/topology"
	"github.com/salahayoub/hotviz/pkg/types"
)

// AnnotationDuration is how long a view-change annotation stays visible.
const AnnotationDuration = 3 * time.Second

// Reason classifies a view change.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonNewRound
	ReasonTimeout
)

func (r Reason) String() string {
	switch r {
	case ReasonNewRound:
		return "new-round"
	case ReasonTimeout:
		return "timeout"
	default:
		return "none"
	}
}

// Label is the text shown in the annotation overlay.
func (r Reason) Label() string {
	switch r {
	case ReasonNewRound:
		return "New consensus round started"
	case ReasonTimeout:
		return "View change: timeout / liveness"
	default:
		return ""
	}
}

// Classify applies the view-change heuristic to the step reported before
// and after a view transition.
func Classify(oldStep, newStep int) Reason {
	switch {
	case oldStep == 0 && newStep == 0:
		return ReasonNewRound
	case newStep > 0:
		return ReasonTimeout
	default:
		return ReasonNewRound
	}
}

// State is the reported protocol state. Fields are adopted verbatim from
// events.
type State struct {
	Round   int
	Phase   types.Phase
	Step    int
	View    int
	HasView bool
	Leader  types.NodeID
}

// Annotation is a transient view-change notice.
type Annotation struct {
	Reason   Reason
	FromView int
	ToView   int
	Leader   types.NodeID
}

func (a Annotation) String() string {
	return fmt.Sprintf("%s (view %d -> %d, leader %d)", a.Reason.Label(), a.FromView, a.ToView, a.Leader)
}

// Tracker is safe for concurrent use: annotation expiry runs on the clock's
// goroutine.
type Tracker struct {
	mu        sync.Mutex
	nodeCount int
	state     State

	clock      Clock
	duration   time.Duration
	annotation *Annotation
	timer      Timer
	generation uint64

	// OnExpire is called without the tracker lock held when an annotation
	// times out. It is not called for annotations replaced early.
	OnExpire func()
}

// NewTracker creates a tracker for a session of nodeCount nodes. A nil clock
// uses RealClock.
func NewTracker(nodeCount int, clock Clock) *Tracker {
	if clock == nil {
		clock = RealClock
	}
	return &Tracker{
		nodeCount: nodeCount,
		clock:     clock,
		duration:  AnnotationDuration,
		state:     State{Phase: types.PhasePrepare},
	}
}

// SetNodeCount updates the count used for leader rotation.
func (t *Tracker) SetNodeCount(n int) {
	t.mu.Lock()
	t.nodeCount = n
	t.mu.Unlock()
}

// State returns a snapshot of the tracked state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Annotation returns the visible annotation, if any.
func (t *Tracker) Annotation() (Annotation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.annotation == nil {
		return Annotation{}, false
	}
	return *t.annotation, true
}

// Apply feeds one live event into the tracker. It returns the annotation
// raised by the event, if the event changed the view.
func (t *Tracker) Apply(ev types.Event) (Annotation, bool) {
	switch ev.Kind {
	case types.EventSessionConfig:
		if ev.Config != nil {
			t.mu.Lock()
			t.nodeCount = ev.Config.NodeCount
			t.state.Leader = topology.NormalizeLeader(ev.Config.LeaderID, ev.Config.NodeCount)
			t.mu.Unlock()
		}
	case types.EventPhaseUpdate:
		if ev.Phase != nil {
			return t.PhaseUpdate(*ev.Phase)
		}
	case types.EventNewRound:
		if ev.Round != nil {
			return t.NewRound(*ev.Round)
		}
	}
	return Annotation{}, false
}

// PhaseUpdate adopts a phase_update payload.
func (t *Tracker) PhaseUpdate(u types.PhaseUpdate) (Annotation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	oldStep := t.state.Step
	t.state.Phase = u.Phase
	t.state.Step = u.Step
	if u.View == nil {
		if u.Leader != nil {
			t.state.Leader = *u.Leader
		}
		return Annotation{}, false
	}
	return t.observeView(*u.View, oldStep, u.Step, u.Leader)
}

// NewRound adopts a new_round payload. The phase resets to prepare unless
// the event names one.
func (t *Tracker) NewRound(r types.NewRound) (Annotation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	oldStep := t.state.Step
	t.state.Round = r.Round
	t.state.Phase = r.Phase
	if t.state.Phase == "" {
		t.state.Phase = types.PhasePrepare
	}
	t.state.Step = r.Step
	return t.observeView(r.View, oldStep, r.Step, r.Leader)
}

// observeView records a reported view and raises an annotation when it
// differs from a previously observed one. Caller holds t.mu.
func (t *Tracker) observeView(view, oldStep, newStep int, leader *types.NodeID) (Annotation, bool) {
	oldView, hadView := t.state.View, t.state.HasView
	t.state.View = view
	t.state.HasView = true
	metrics.CurrentView.Set(float64(view))

	switch {
	case leader != nil:
		t.state.Leader = *leader
	case t.nodeCount > 0:
		t.state.Leader = topology.LeaderForView(view, t.nodeCount)
	}

	if !hadView || oldView == view {
		return Annotation{}, false
	}

	a := Annotation{
		Reason:   Classify(oldStep, newStep),
		FromView: oldView,
		ToView:   view,
		Leader:   t.state.Leader,
	}
	metrics.ViewChanges.WithLabelValues(a.Reason.String()).Inc()
	t.show(a)
	return a, true
}

// show replaces the visible annotation and restarts the expiry timer.
// Caller holds t.mu.
func (t *Tracker) show(a Annotation) {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.generation++
	gen := t.generation
	t.annotation = &a
	t.timer = t.clock.AfterFunc(t.duration, func() { t.expire(gen) })
}

func (t *Tracker) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.annotation = nil
	t.timer = nil
	cb := t.OnExpire
	t.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Stop cancels any pending annotation timer.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.generation++
	t.annotation = nil
}
