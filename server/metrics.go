package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hazyhaar/domdiff/diff"
)

// Metrics holds the comparison collectors on a private registry.
type Metrics struct {
	Registry    *prometheus.Registry
	comparisons *prometheus.CounterVec
	records     *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewMetrics registers the domdiff collectors plus Go runtime collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		comparisons: f.NewCounterVec(prometheus.CounterOpts{
			Name: "domdiff_comparisons_total",
			Help: "Comparisons by outcome (identical, different, error).",
		}, []string{"outcome"}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "domdiff_change_records_total",
			Help: "Change records emitted, by action.",
		}, []string{"action"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "domdiff_compare_duration_seconds",
			Help:    "Wall time of a full comparison, acquisition included.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}

func (m *Metrics) observe(res *diff.Result, seconds float64, failed bool) {
	m.duration.Observe(seconds)
	switch {
	case failed || res == nil:
		m.comparisons.WithLabelValues("error").Inc()
		return
	case res.Identical():
		m.comparisons.WithLabelValues("identical").Inc()
	default:
		m.comparisons.WithLabelValues("different").Inc()
	}
	for action, n := range res.CountByAction() {
		label := string(action)
		if !action.Known() {
			label = "unknown"
		}
		m.records.WithLabelValues(label).Add(float64(n))
	}
}
