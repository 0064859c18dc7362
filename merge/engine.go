// Package merge implements the Stepped-Merge flush engine: promoting a
// filled level's K runs into one run one level down, and, once the
// deepest level fills, merging it (plus any existing root) into a new
// root. It is grounded on the original's _sm_merge_k bulk-merge loop:
// open every input as a cursor, repeatedly pull the minimum front-buffer
// entry, and bulk-load the winner into the output run.
package merge

import (
	"fmt"
	"log"

	"github.com/intellect4all/smerge/catalog"
	"github.com/intellect4all/smerge/common"
	"github.com/intellect4all/smerge/manifest"
)

// Engine owns no state of its own beyond the catalog collaborator; every
// call takes the manifest it should mutate, matching the original's
// (heapRel, metadata) calling convention for sm_flush.
type Engine struct {
	cat  catalog.Catalog
	spec catalog.RunSpec
}

// New returns a merge engine that creates output runs through cat, using
// spec for every run it creates (same attrs/uniqueness as the index).
func New(cat catalog.Catalog, spec catalog.RunSpec) *Engine {
	return &Engine{cat: cat, spec: spec}
}

// MaybeFlush re-establishes the per-level run-count invariant: any level
// holding K runs is merged down into the next one, in a single pass from
// level 0 to N-2, then the deepest level is merged into root if it too
// reached K. It returns the ids of runs that are now superseded; the
// caller must persist the mutated manifest before calling DropRun on
// them (Open Question 1: deletion is synchronous, but always strictly
// after the manifest commit that drops the last reference).
func (e *Engine) MaybeFlush(m *manifest.Manifest) ([]common.RunID, error) {
	var superseded []common.RunID

	for i := 0; i < m.N-1; i++ {
		if !m.LevelFull(i) {
			continue
		}
		dropped, err := e.mergeLevel(m, i)
		if err != nil {
			return superseded, fmt.Errorf("%w: level %d: %v", common.ErrMergeAborted, i, err)
		}
		superseded = append(superseded, dropped...)
	}

	deepest := m.N - 1
	if m.Levels[deepest] == m.K {
		dropped, err := e.mergeRoot(m, deepest)
		if err != nil {
			return superseded, fmt.Errorf("%w: root pass: %v", common.ErrMergeAborted, err)
		}
		superseded = append(superseded, dropped...)
	}

	return superseded, nil
}

// mergeLevel merges the K runs at level i into one new run installed at
// level i+1.
func (e *Engine) mergeLevel(m *manifest.Manifest, i int) ([]common.RunID, error) {
	inputs := make([]common.RunID, m.Levels[i])
	copy(inputs, m.Tree[i][:m.Levels[i]])

	outID, count, err := e.merge(inputs)
	if err != nil {
		return nil, err
	}

	m.ClearLevel(i)
	if err := m.AppendRun(i+1, outID, count); err != nil {
		return nil, err
	}
	log.Printf("merge: level %d's %d runs -> run %s (%d entries) at level %d", i, len(inputs), outID, count, i+1)
	return inputs, nil
}

// mergeRoot merges the deepest level's K runs, plus the existing root
// when one exists, into a new root run (Open Question 3, resolved: the
// root pass always includes a live root as a K+1st input rather than
// mixing K and K+1 arbitrarily).
func (e *Engine) mergeRoot(m *manifest.Manifest, deepest int) ([]common.RunID, error) {
	inputs := make([]common.RunID, m.Levels[deepest])
	copy(inputs, m.Tree[deepest][:m.Levels[deepest]])

	hadRoot := m.Root != manifest.NilRun
	if hadRoot {
		inputs = append(inputs, m.Root)
	}

	outID, count, err := e.merge(inputs)
	if err != nil {
		return nil, err
	}

	m.ClearLevel(deepest)
	m.SetRoot(outID, count)
	log.Printf("merge: deepest level's %d runs (root present=%v) -> new root %s (%d entries)", len(inputs)-boolToInt(hadRoot), hadRoot, outID, count)
	return inputs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// merge opens every input run, drains them via the k-way merge loop into
// a freshly created output run, and returns the output run's id and
// live-entry count.
func (e *Engine) merge(inputs []common.RunID) (common.RunID, int64, error) {
	runs := make([]catalog.Run, 0, len(inputs))
	cursors := make([]catalog.Cursor, 0, len(inputs))
	for _, id := range inputs {
		r, err := e.cat.OpenRun(id)
		if err != nil {
			return 0, 0, fmt.Errorf("open input run %s: %w", id, err)
		}
		runs = append(runs, r)
		cur, err := r.NewCursor()
		if err != nil {
			return 0, 0, fmt.Errorf("open cursor on run %s: %w", id, err)
		}
		cursors = append(cursors, cur)
	}
	defer func() {
		for _, c := range cursors {
			c.Close()
		}
	}()

	out, err := e.cat.CreateRun(e.spec)
	if err != nil {
		return 0, 0, err
	}

	bl, err := out.BulkLoad()
	if err != nil {
		return 0, 0, err
	}

	count, err := mergeCursors(cursors, bl.Add)
	if err != nil {
		return 0, 0, err
	}
	if err := bl.Finish(); err != nil {
		return 0, 0, err
	}
	if err := out.Sync(); err != nil {
		return 0, 0, err
	}

	return out.ID(), count, nil
}
