// Package metrics exposes activity and reminder counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives domain events worth counting.
type Recorder interface {
	ActivityRecorded(kind string, streak int, at time.Time)
	NotificationEmitted(source string)
	NotificationSuppressed(source, reason string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) ActivityRecorded(string, int, time.Time) {}
func (Nop) NotificationEmitted(string) {}
func (Nop) NotificationSuppressed(string, string) {}

// Collector implements Recorder on top of Prometheus collectors registered in its own registry.
type Collector struct {
	registry *prometheus.Registry

	activities   *prometheus.CounterVec
	streak       prometheus.Histogram
	lastActivity prometheus.Gauge
	emitted      *prometheus.CounterVec
	suppressed   *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		activities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellspring",
			Subsystem: "tracker",
			Name:      "activities_recorded_total",
			Help:      "Number of activity-producing actions by kind.",
		}, []string{"kind"}),
		streak: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wellspring",
			Subsystem: "tracker",
			Name:      "streak_days",
			Help:      "Streak of the acting user after each activity-producing action.",
			Buckets:   []float64{0, 1, 2, 3, 5, 7, 14, 30, 60, 100, 365},
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wellspring",
			Subsystem: "tracker",
			Name:      "last_activity_timestamp_seconds",
			Help:      "Unix timestamp of the most recent activity-producing action by any user.",
		}),
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellspring",
			Subsystem: "reminder",
			Name:      "notifications_emitted_total",
			Help:      "Notifications handed to the platform, by source.",
		}, []string{"source"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellspring",
			Subsystem: "reminder",
			Name:      "notifications_suppressed_total",
			Help:      "Notifications dropped by the enabled/permission gate, by source and reason.",
		}, []string{"source", "reason"}),
	}

	c.registry.MustRegister(c.activities, c.streak, c.lastActivity, c.emitted, c.suppressed)
	return c
}

func (c *Collector) ActivityRecorded(kind string, streak int, at time.Time) {
	c.activities.WithLabelValues(kind).Inc()
	c.streak.Observe(float64(streak))
	if !at.IsZero() {
		c.lastActivity.Set(float64(at.Unix()))
	}
}

func (c *Collector) NotificationEmitted(source string) {
	c.emitted.WithLabelValues(source).Inc()
}

func (c *Collector) NotificationSuppressed(source, reason string) {
	c.suppressed.WithLabelValues(source, reason).Inc()
}

// Handler serves the collector's registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
