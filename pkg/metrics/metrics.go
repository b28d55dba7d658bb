// Package metrics exposes Prometheus instrumentation for playback, the
// phase tracker and the event stream.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hotviz",
		Subsystem: "anim",
		Name:      "frames_total",
		Help:      "Total animation frames ticked",
	})

	UnitsScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hotviz",
		Subsystem: "anim",
		Name:      "units_scheduled_total",
		Help:      "Total point-to-point animation units created",
	})

	UnitsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hotviz",
		Subsystem: "anim",
		Name:      "messages_dropped_total",
		Help:      "Total trace messages dropped for out-of-range node ids",
	})

	RoundsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hotviz",
		Subsystem: "anim",
		Name:      "rounds_completed_total",
		Help:      "Total rounds whose animations finished",
	})

	PlaybacksSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hotviz",
		Subsystem: "anim",
		Name:      "playbacks_superseded_total",
		Help:      "Total playbacks replaced before finishing",
	})

	ActiveUnits = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hotviz",
		Subsystem: "anim",
		Name:      "active_units",
		Help:      "Animation units still in flight",
	})

	ViewChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hotviz",
		Subsystem: "phase",
		Name:      "view_changes_total",
		Help:      "Observed view changes by classified reason",
	}, []string{"reason"})

	CurrentView = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hotviz",
		Subsystem: "phase",
		Name:      "view",
		Help:      "Last reported view number",
	})

	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hotviz",
		Subsystem: "events",
		Name:      "received_total",
		Help:      "Live events received by kind",
	}, []string{"kind"})

	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hotviz",
		Subsystem: "relay",
		Name:      "events_ingested_total",
		Help:      "Engine events posted to the relay by kind",
	}, []string{"kind"})

	StreamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hotviz",
		Subsystem: "events",
		Name:      "subscribers",
		Help:      "Connected event stream subscribers",
	})
)
