package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		var total float64
		for _, m := range fam.GetMetric() {
			switch {
			case m.Counter != nil:
				total += m.Counter.GetValue()
			case m.Gauge != nil:
				total += m.Gauge.GetValue()
			}
		}
		return total
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestMetricsRecordInsertsAndUniqueViolations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncInsert()
	m.IncInsert()
	m.IncUniqueViolation()

	if got := gatherValue(t, reg, "smerge_inserts_total"); got != 2 {
		t.Fatalf("expected 2 inserts, got %v", got)
	}
	if got := gatherValue(t, reg, "smerge_unique_violations_total"); got != 1 {
		t.Fatalf("expected 1 unique violation, got %v", got)
	}
}

func TestMetricsRecordMergesAndRunsDropped(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveMerge("flush", 3)
	m.ObserveMerge("flush", 2)

	if got := gatherValue(t, reg, "smerge_merges_total"); got != 2 {
		t.Fatalf("expected 2 merge events, got %v", got)
	}
	if got := gatherValue(t, reg, "smerge_runs_dropped_total"); got != 5 {
		t.Fatalf("expected 5 runs dropped, got %v", got)
	}
}

func TestMetricsLiveTuplesGaugeAndVacuum(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetLiveTuples(42)
	m.AddVacuumOrphansSwept(4)

	if got := gatherValue(t, reg, "smerge_live_tuples"); got != 42 {
		t.Fatalf("expected live tuples 42, got %v", got)
	}
	if got := gatherValue(t, reg, "smerge_vacuum_orphans_swept_total"); got != 4 {
		t.Fatalf("expected 4 orphans swept, got %v", got)
	}
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.IncInsert()
	m.IncUniqueViolation()
	m.ObserveMerge("flush", 1)
	m.AddVacuumOrphansSwept(1)
	m.SetLiveTuples(1)
}
