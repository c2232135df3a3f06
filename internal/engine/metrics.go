package engine

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes scheduler health counters. Register once per process.
type Metrics struct {
	Ticks            prometheus.Counter
	TickDuration     prometheus.Histogram
	TickDrift        prometheus.Gauge
	TickOverruns     prometheus.Counter
	QueueDepth       prometheus.Gauge
	QueueOverflows   prometheus.Counter
	CommandsApplied  prometheus.Counter
	CommandsRejected *prometheus.CounterVec
	EventsEmitted    *prometheus.CounterVec
	PersistBatches   prometheus.Counter
	PersistRejected  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stellarion", Subsystem: "engine",
			Name: "ticks_total", Help: "Simulation ticks completed.",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stellarion", Subsystem: "engine",
			Name: "tick_duration_seconds", Help: "Wall time spent per tick.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		TickDrift: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stellarion", Subsystem: "engine",
			Name: "tick_drift_seconds", Help: "Deviation of the last tick from its scheduled time.",
		}),
		TickOverruns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stellarion", Subsystem: "engine",
			Name: "tick_overruns_total", Help: "Ticks whose processing exceeded the tick interval.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "stellarion", Subsystem: "engine",
			Name: "command_queue_depth", Help: "Commands staged at tick start.",
		}),
		QueueOverflows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stellarion", Subsystem: "engine",
			Name: "command_queue_overflows_total", Help: "Commands refused because the queue was full.",
		}),
		CommandsApplied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stellarion", Subsystem: "engine",
			Name: "commands_applied_total", Help: "Commands applied successfully.",
		}),
		CommandsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stellarion", Subsystem: "engine",
			Name: "commands_rejected_total", Help: "Commands rejected at apply time.",
		}, []string{"reason"}),
		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stellarion", Subsystem: "engine",
			Name: "events_emitted_total", Help: "Simulation events emitted.",
		}, []string{"kind"}),
		PersistBatches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stellarion", Subsystem: "persist",
			Name: "batches_total", Help: "State batches handed to the persistence bridge.",
		}),
		PersistRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "stellarion", Subsystem: "persist",
			Name: "batches_rejected_total", Help: "Batches the saver refused; their report rows were restaged.",
		}),
	}
}

// rejectionReason maps a sentinel error to its metrics label.
func rejectionReason(err error) string {
	if err == nil {
		return "none"
	}
	for _, known := range []struct {
		err  error
		name string
	}{
		{ErrInsufficientResources, "insufficient_resources"},
		{ErrPrerequisiteNotMet, "prerequisite_not_met"},
		{ErrFleetCapacityExceeded, "fleet_capacity_exceeded"},
		{ErrInvalidCoordinates, "invalid_coordinates"},
		{ErrNotFound, "not_found"},
		{ErrAlreadyActive, "already_active"},
		{ErrInvalidCommand, "invalid_command"},
	} {
		if errors.Is(err, known.err) {
			return known.name
		}
	}
	return "other"
}
