// Package catalog replaces the original's ad-hoc node-graph construction
// (raw IndexStmt/RangeVar/IndexElem field assignment) with a typed
// builder: a RunSpec value goes straight into CreateRun, no Node tree is
// ever built by hand.
package catalog

import "github.com/intellect4all/smerge/common"

// RunSpec describes the run relation to create: which heap attributes it
// indexes and whether it must reject duplicate keys.
type RunSpec struct {
	Attrs  []int
	Unique bool
}

// Cursor walks one run's entries in composite-key order: key length
// first, then key bytes, then TID. Keys of different lengths are
// therefore not in plain lexicographic order.
type Cursor interface {
	Next() bool
	Key() []byte
	TID() common.TID
	Err() error
	Close() error
}

// BulkInserter builds a run from an already key-ordered stream, the way
// a merge writes its output: one sequential pass, no per-entry
// split-and-rebalance. Entries must arrive in ascending composite-key
// order; Finish must be called exactly once, after the last Add.
type BulkInserter interface {
	Add(key []byte, tid common.TID) error
	Finish() error
}

// Run is one immutable-once-built (or, for curr, currently mutable)
// B-tree run: an ordered key -> TID store plus a membership filter.
type Run interface {
	ID() common.RunID
	Insert(key []byte, tid common.TID) error
	// ContainsKey reports whether any entry (for any TID) exists for key.
	ContainsKey(key []byte) (bool, error)
	NewCursor() (Cursor, error)
	MayContain(key []byte) bool
	EntryCount() int64
	// BulkLoad opens a sequential-build writer against a freshly created
	// run. Only valid before any Insert has been made against this run.
	BulkLoad() (BulkInserter, error)
	// Stats reports the run's current on-disk footprint and access
	// counts, the per-run unit smindex.Index.Stats aggregates.
	Stats() common.RunStats
	Sync() error
	Close() error
}

// Catalog creates, opens, and drops run relations. DirCatalog is the one
// concrete implementation; the interface exists so the merge/insert
// paths never depend on the on-disk layout directly.
type Catalog interface {
	CreateRun(spec RunSpec) (Run, error)
	OpenRun(id common.RunID) (Run, error)
	DropRun(id common.RunID) error
	// ListRunIDs enumerates every run relation materialized on disk,
	// independent of what any particular manifest currently references.
	// Vacuum uses the difference to find and sweep orphans.
	ListRunIDs() ([]common.RunID, error)
	Close() error
}
