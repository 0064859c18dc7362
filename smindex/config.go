package smindex

import "github.com/prometheus/client_golang/prometheus"

// Config configures one Stepped-Merge index instance, the AM facade's
// equivalent of the original's hardcoded K=3/N=3 _sm_init_metadata call.
type Config struct {
	DataDir string

	// MetricsRegistry, if non-nil, turns on Prometheus instrumentation
	// for this index (inserts, merges, vacuum sweeps, live tuple gauge).
	// Left nil, the index runs uninstrumented — every metrics call
	// becomes a no-op.
	MetricsRegistry prometheus.Registerer

	// K is the fan-in of each level (runs held before promotion). N is
	// the number of levels below root. Production deployments use
	// K=16, N=8 (manifest.MaxK/MaxN); development and the test suite
	// use the smaller K=3, N=3 the original ships with.
	K, N int

	// MaxInMemTuples bounds curr before it is promoted to level 0.
	MaxInMemTuples int

	// Attrs lists the indexed attribute numbers, carried into every run
	// this index creates.
	Attrs []int

	// Unique enables the cross-run uniqueness probe on every insert.
	Unique bool

	// CacheSize is the per-run page cache size, passed straight through
	// to btree.Config.CacheSize.
	CacheSize int
}

// DefaultConfig returns the development-scale defaults (K=3, N=3,
// MaxInMemTuples=2) used throughout the test suite and the demo command.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:        dataDir,
		K:              3,
		N:              3,
		MaxInMemTuples: 2,
		Attrs:          []int{1},
		Unique:         false,
		CacheSize:      1000,
	}
}

// Capabilities is the AM facade's capability record, populated once at
// Index construction instead of the original's global IndexAmRoutine
// function table.
type Capabilities struct {
	CanOrder     bool
	CanBackward  bool
	CanUnique    bool
	CanMulticol  bool
	CanReturn    bool
	CanBitmap    bool
	CanIncludeAll bool
}

func capabilitiesFor(cfg Config) Capabilities {
	return Capabilities{
		CanOrder:    false, // scans are unordered concatenations, never sorted
		CanBackward: false,
		CanUnique:   true,
		CanMulticol: true, // redesigned: the original hardcodes false
		CanReturn:   true,
		CanBitmap:   false,
	}
}
