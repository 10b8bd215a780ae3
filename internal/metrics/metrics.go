// Package metrics exports store activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/tstate/internal/state"
)

const namespace = "tstate"

// Collector implements state.Hooks. Pass it to stores with
// state.WithHooks. One Collector serves any number of stores; metrics are
// labelled by store name.
type Collector struct {
	commits       *prometheus.CounterVec
	vetoes        *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	flushes       *prometheus.CounterVec
	notifications *prometheus.CounterVec
	flushDuration *prometheus.HistogramVec
}

var _ state.Hooks = (*Collector)(nil)

// New registers the store metrics with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Collector{
		commits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "commits_total",
			Help:      "Mutations that replaced the current value",
		}, []string{"store", "action"}),
		vetoes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "vetoes_total",
			Help:      "Mutations rejected by a middleware",
		}, []string{"store", "action"}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "skipped_total",
			Help:      "Mutations dropped by the equality check",
		}, []string{"store"}),
		flushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "flushes_total",
			Help:      "Notification passes",
		}, []string{"store"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "notifications_total",
			Help:      "Subscriber calls made by notification passes",
		}, []string{"store"}),
		flushDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "flush_duration_seconds",
			Help:      "Time spent notifying subscribers in one pass",
			Buckets:   []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"store"}),
	}
}

// Committed counts a commit by store and action.
func (c *Collector) Committed(store string, action state.Action) {
	c.commits.WithLabelValues(label(store), action.Type).Inc()
}

// Vetoed counts a mutation rejected by middleware.
func (c *Collector) Vetoed(store string, action state.Action) {
	c.vetoes.WithLabelValues(label(store), action.Type).Inc()
}

// Skipped counts a mutation dropped by the equality check.
func (c *Collector) Skipped(store string, _ state.Action) {
	c.skipped.WithLabelValues(label(store)).Inc()
}

// Flushed records one notification pass and how many subscribers it reached.
func (c *Collector) Flushed(store string, subscribers int, elapsed time.Duration) {
	s := label(store)
	c.flushes.WithLabelValues(s).Inc()
	c.notifications.WithLabelValues(s).Add(float64(subscribers))
	c.flushDuration.WithLabelValues(s).Observe(elapsed.Seconds())
}

// label names unnamed stores.
func label(store string) string {
	if store == "" {
		return "anonymous"
	}
	return store
}
