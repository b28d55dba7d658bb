package anim

import (
	"github.com/salahayoub/hotviz/pkg/fanout"
	"github.com/salahayoub/hotviz/pkg/metrics"
	"github.com/salahayoub/hotviz/pkg/topology"
)

// LayoutFunc returns the layout in effect right now. It is consulted when a
// batch starts and on every frame.
type LayoutFunc func() *topology.Layout

// Options parameterize one playback.
type Options struct {
	// Step is the progress added per frame. Zero means DefaultStep.
	Step float64
	// Expected is the reference value markers are checked against.
	Expected int
	// Decided is the value shown once the last round completes.
	Decided int

	// OnRoundComplete fires after every batch of round index finished.
	OnRoundComplete func(index int)
	// OnDone fires once after the last round.
	OnDone func()
	// OnDropped reports messages of round index dropped for bad ids.
	OnDropped func(index int, count int)
}

// Sequencer owns the current playback of a surface.
//
// It is not safe for concurrent use; the host serializes Play and Tick.
type Sequencer struct {
	surface Surface
	layout  LayoutFunc
	current *Playback
}

// NewSequencer creates a sequencer drawing on surface.
func NewSequencer(surface Surface, layout LayoutFunc) *Sequencer {
	return &Sequencer{surface: surface, layout: layout}
}

// Play starts a new playback of rounds, superseding any playback in
// progress. Leading rounds that expand to no units complete before Play
// returns.
func (s *Sequencer) Play(rounds []Round, opts Options) *Playback {
	if s.current != nil && s.current.Active() {
		s.current.cancel()
		metrics.PlaybacksSuperseded.Inc()
	}

	step := opts.Step
	if step <= 0 {
		step = DefaultStep
	}
	p := &Playback{
		rounds:  rounds,
		surface: s.surface,
		layout:  s.layout,
		opts:    opts,
		step:    step,
	}
	s.current = p
	p.advance()
	return p
}

// Tick advances the current playback by one frame. It returns false when
// nothing is playing, including when a callback run during this tick
// replaced the playback with one that is already finished.
func (s *Sequencer) Tick() bool {
	if s.current == nil {
		return false
	}
	s.current.Tick()
	return s.current.Active()
}

// Current returns the latest playback, which may already be finished.
func (s *Sequencer) Current() *Playback {
	return s.current
}

// Stop cancels the current playback without starting a new one.
func (s *Sequencer) Stop() {
	if s.current != nil {
		s.current.cancel()
	}
}

// Playback is the handle of one Play call. Once superseded it never draws
// or calls back again.
type Playback struct {
	rounds  []Round
	surface Surface
	layout  LayoutFunc
	opts    Options
	step    float64

	round int
	batch int
	units []*Unit

	frames    int
	finished  bool
	cancelled bool
}

// Active reports whether the playback still has work and was not superseded.
func (p *Playback) Active() bool {
	return !p.finished && !p.cancelled
}

// Finished reports whether the playback ran through its last round.
func (p *Playback) Finished() bool {
	return p.finished
}

// Cancelled reports whether the playback was superseded or stopped.
func (p *Playback) Cancelled() bool {
	return p.cancelled
}

// Frames returns the number of ticks that advanced units.
func (p *Playback) Frames() int {
	return p.frames
}

// Round returns the index of the round being played and the total count.
func (p *Playback) Round() (index, total int) {
	return p.round, len(p.rounds)
}

// Units returns the units of the active batch.
func (p *Playback) Units() []*Unit {
	return p.units
}

// BatchProgress is the mean progress of the active batch in [0, 1].
func (p *Playback) BatchProgress() float64 {
	if len(p.units) == 0 {
		if p.finished {
			return 1
		}
		return 0
	}
	var sum float64
	for _, u := range p.units {
		if u.Progress >= 1 {
			sum++
		} else {
			sum += u.Progress
		}
	}
	return sum / float64(len(p.units))
}

// Tick redraws the topology and moves every unfinished unit one step. When
// the batch completes the next batch (or round) is started.
func (p *Playback) Tick() bool {
	if !p.Active() {
		return false
	}
	if len(p.units) == 0 {
		p.advance()
		return p.Active()
	}

	p.surface.DrawTopology(p.layout())
	remaining := 0
	for _, u := range p.units {
		if u.Done() {
			continue
		}
		u.Progress += p.step
		if u.Progress > 1 {
			u.Progress = 1
		}
		p.surface.DrawMarker(u, u.Value == p.opts.Expected)
		if !u.Done() {
			remaining++
		}
	}
	p.frames++
	metrics.FramesTotal.Inc()
	metrics.ActiveUnits.Set(float64(remaining))

	if remaining == 0 {
		p.units = nil
		p.advance()
	}
	return p.Active()
}

// advance starts the next batch that has units. Rounds that run out of
// batches complete on the way, firing their callback before the next round
// is expanded.
func (p *Playback) advance() {
	for p.Active() {
		if p.round >= len(p.rounds) {
			p.finish()
			return
		}
		rnd := p.rounds[p.round]
		if p.batch >= len(rnd) {
			index := p.round
			p.round++
			p.batch = 0
			metrics.RoundsCompleted.Inc()
			if p.opts.OnRoundComplete != nil {
				p.opts.OnRoundComplete(index)
			}
			continue
		}

		units := p.expand(rnd[p.batch])
		p.batch++
		if len(units) > 0 {
			p.units = units
			return
		}
	}
}

func (p *Playback) expand(batch Batch) []*Unit {
	layout := p.layout()
	pairs, dropped := fanout.ExpandBatch(batch, layout)
	if dropped > 0 {
		metrics.UnitsDropped.Add(float64(dropped))
		if p.opts.OnDropped != nil {
			p.opts.OnDropped(p.round, dropped)
		}
	}

	units := make([]*Unit, 0, len(pairs))
	for _, pair := range pairs {
		start, ok := layout.At(pair.Src)
		if !ok {
			continue
		}
		end, ok := layout.At(pair.Dst)
		if !ok {
			continue
		}
		units = append(units, &Unit{
			Src:   pair.Src,
			Dst:   pair.Dst,
			Start: start,
			End:   end,
			Value: pair.Message.Value,
			Type:  pair.Message.Type,
			Phase: pair.Message.Phase,
		})
	}
	metrics.UnitsScheduled.Add(float64(len(units)))
	return units
}

func (p *Playback) finish() {
	p.finished = true
	p.units = nil
	metrics.ActiveUnits.Set(0)
	p.surface.ShowConsensus(p.opts.Decided)
	if p.opts.OnDone != nil {
		p.opts.OnDone()
	}
}

func (p *Playback) cancel() {
	p.cancelled = true
	p.units = nil
}
