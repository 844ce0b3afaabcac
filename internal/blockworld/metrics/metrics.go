// Package metrics exports BlockWorld tick and broadcast counters to
// Prometheus.
package metrics

import (
	"github.com/banshee-data/blockworld/internal/blockworld/events"
	"github.com/banshee-data/blockworld/internal/blockworld/l6world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics observes World ticks and broadcasts. It implements
// l6world.TickObserver and events.Broadcaster; a nil *Metrics is a no-op.
type Metrics struct {
	Ticks         prometheus.Counter
	TickErrors    prometheus.Counter
	TickDuration  prometheus.Histogram
	Markers       prometheus.Counter
	MarkerGroups  prometheus.Counter
	Objects       prometheus.Gauge
	ObservedLast  prometheus.Gauge
	LastTimestamp prometheus.Gauge

	// Broadcasts by event kind.
	Events *prometheus.CounterVec
}

// New creates the BlockWorld metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer to export them from the default handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Name: "blockworld_ticks_total",
			Help: "World updates run",
		}),
		TickErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "blockworld_tick_errors_total",
			Help: "World updates that returned an error",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "blockworld_tick_duration_seconds",
			Help:    "Wall time spent in one world update",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),
		Markers: f.NewCounter(prometheus.CounterOpts{
			Name: "blockworld_markers_total",
			Help: "Observed markers drained from the queue",
		}),
		MarkerGroups: f.NewCounter(prometheus.CounterOpts{
			Name: "blockworld_marker_groups_total",
			Help: "Timestamp groups of observed markers processed",
		}),
		Objects: f.NewGauge(prometheus.GaugeOpts{
			Name: "blockworld_objects",
			Help: "Objects registered after the last update",
		}),
		ObservedLast: f.NewGauge(prometheus.GaugeOpts{
			Name: "blockworld_objects_observed",
			Help: "Objects resolved in the last update",
		}),
		LastTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "blockworld_last_image_timestamp_ms",
			Help: "Robot image timestamp of the last update",
		}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "blockworld_events_total",
			Help: "Events broadcast by kind",
		}, []string{"kind"}),
	}
}

// ObserveTick implements l6world.TickObserver.
func (m *Metrics) ObserveTick(s l6world.TickStats) {
	if m == nil {
		return
	}
	m.Ticks.Inc()
	if s.Err != nil {
		m.TickErrors.Inc()
	}
	m.TickDuration.Observe(s.Duration.Seconds())
	m.Markers.Add(float64(s.Markers))
	m.MarkerGroups.Add(float64(s.Groups))
	m.Objects.Set(float64(s.Objects))
	m.ObservedLast.Set(float64(s.Observed))
	m.LastTimestamp.Set(float64(s.Timestamp))
}

// Broadcast implements events.Broadcaster.
func (m *Metrics) Broadcast(e events.Event) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(string(e.Kind())).Inc()
}
