package costmodel

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the Prometheus instrumentation the cost model
// exposes, grounded on the teacher's broad use of
// prometheus/client_golang throughout internal/scheduler/metrics. It
// observes the model; it never feeds back into arc costs.
type Metrics struct {
	ArcsEmitted           prometheus.Counter
	HardConstraintRejects *prometheus.CounterVec
	FanOutClamped         prometheus.Counter
	ArcCost               prometheus.Histogram
}

// NewMetrics constructs and registers the cost model's metrics against
// reg. Passing a fresh prometheus.NewRegistry() in tests keeps them
// isolated from the global default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ArcsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "costmodel",
			Name:      "arcs_emitted_total",
			Help:      "Number of EC-to-EC arcs emitted by GetEquivClassToEquivClassesArcs.",
		}),
		HardConstraintRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "costmodel",
			Name:      "hard_constraint_rejections_total",
			Help:      "Number of machines rejected by the hard-constraint filter, by predicate.",
		}, []string{"predicate"}),
		FanOutClamped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "costmodel",
			Name:      "fan_out_clamped_total",
			Help:      "Number of machines whose EC fan-out was clamped to max_multi_arcs_for_cpu.",
		}),
		ArcCost: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "costmodel",
			Name:      "arc_cost",
			Help:      "Distribution of flattened EC-to-EC arc costs.",
			Buckets:   prometheus.LinearBuckets(0, 500, 9),
		}),
	}
	reg.MustRegister(m.ArcsEmitted, m.HardConstraintRejects, m.FanOutClamped, m.ArcCost)
	return m
}

// noopMetrics is used when the caller does not care about
// instrumentation (e.g. most unit tests).
func noopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
