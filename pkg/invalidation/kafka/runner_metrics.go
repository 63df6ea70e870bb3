package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricSet is owned by one runner. Errors shared with the rest of the
// gateway go through observability instead.
type metricSet struct {
	msgs  *prometheus.CounterVec
	apply *prometheus.CounterVec
	proc  prometheus.Histogram
}

func newMetricSet(r prometheus.Registerer) *metricSet {
	m := &metricSet{
		msgs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capabilities_events_total",
			Help: "Capabilities change events consumed, by result (ok, error, invalid).",
		}, []string{"result"}),
		apply: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capabilities_evictions_total",
			Help: "Entries evicted by capabilities change events, by kind.",
		}, []string{"kind"}),
		proc: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "capabilities_event_seconds",
			Help:    "Time to apply one capabilities change event.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
	if r != nil {
		r.MustRegister(m.msgs, m.apply, m.proc)
	}
	return m
}
