package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts completed detection cycles by outcome.
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palletwatch_cycles_total",
		Help: "Detection cycles processed, by outcome.",
	}, []string{"outcome"})

	// DetectionsTotal counts raw detections ingested, by class.
	DetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palletwatch_detections_total",
		Help: "Raw detections ingested, by object class.",
	}, []string{"class"})

	// OvertimeEventsTotal counts overtime events emitted by the engine.
	OvertimeEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palletwatch_overtime_events_total",
		Help: "Overtime events emitted by the tracking engine.",
	})

	// AlertsSentTotal counts alerts actually delivered after the resend
	// window is applied.
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palletwatch_alerts_sent_total",
		Help: "Overtime alerts delivered, by result.",
	}, []string{"result"})

	// ActiveObjects tracks the size of the active set after each cycle.
	ActiveObjects = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "palletwatch_active_objects",
		Help: "Tracked objects currently active.",
	})

	// CycleDuration observes wall time per cycle.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "palletwatch_cycle_duration_seconds",
		Help:    "Wall time of one detection cycle.",
		Buckets: prometheus.DefBuckets,
	})
)
