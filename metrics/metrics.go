// Package metrics exposes Prometheus instrumentation for a Stepped-Merge
// index, the same shape the rest of the example pack reaches for
// (prometheus/client_golang + promauto) when a component needs production
// observability instead of plain log lines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the counters and gauges one SM index reports. A nil
// *Metrics is valid and every method becomes a no-op, so instrumentation
// stays optional without every call site needing its own nil check.
type Metrics struct {
	inserts          prometheus.Counter
	uniqueViolations prometheus.Counter
	merges           *prometheus.CounterVec // labeled by the caller; smindex passes "flush"
	runsDropped      prometheus.Counter
	vacuumOrphans    prometheus.Counter
	liveTuples       prometheus.Gauge
}

// New registers SM's metrics with registry (use prometheus.NewRegistry()
// for an isolated registry per index, or prometheus.DefaultRegisterer to
// share the process-wide one).
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		inserts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "smerge",
			Name:      "inserts_total",
			Help:      "Cumulative count of tuples inserted into the index",
		}),
		uniqueViolations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "smerge",
			Name:      "unique_violations_total",
			Help:      "Cumulative count of inserts rejected by the cross-run uniqueness probe",
		}),
		merges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smerge",
			Name:      "merges_total",
			Help:      "Cumulative count of merge passes that superseded runs, by caller label",
		}, []string{"level"}),
		runsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "smerge",
			Name:      "runs_dropped_total",
			Help:      "Cumulative count of run relations dropped after being superseded by a merge",
		}),
		vacuumOrphans: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "smerge",
			Name:      "vacuum_orphans_swept_total",
			Help:      "Cumulative count of orphaned run files swept by VacuumCleanup",
		}),
		liveTuples: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "smerge",
			Name:      "live_tuples",
			Help:      "Estimated live tuple count across every run, per the manifest's tracked stats",
		}),
	}
}

func (m *Metrics) IncInsert() {
	if m == nil {
		return
	}
	m.inserts.Inc()
}

func (m *Metrics) IncUniqueViolation() {
	if m == nil {
		return
	}
	m.uniqueViolations.Inc()
}

func (m *Metrics) ObserveMerge(level string, runsDropped int) {
	if m == nil {
		return
	}
	m.merges.WithLabelValues(level).Inc()
	m.runsDropped.Add(float64(runsDropped))
}

func (m *Metrics) AddVacuumOrphansSwept(n int) {
	if m == nil {
		return
	}
	m.vacuumOrphans.Add(float64(n))
}

func (m *Metrics) SetLiveTuples(n int64) {
	if m == nil {
		return
	}
	m.liveTuples.Set(float64(n))
}
