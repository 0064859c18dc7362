package merge

import (
	"testing"

	"github.com/intellect4all/smerge/catalog"
	"github.com/intellect4all/smerge/common"
	"github.com/intellect4all/smerge/common/testutil"
	"github.com/intellect4all/smerge/manifest"
)

func setupTestEngine(t *testing.T) (*catalog.DirCatalog, *Engine) {
	dir := testutil.TempDir(t)
	cat, err := catalog.NewDirCatalog(dir, 100)
	if err != nil {
		t.Fatalf("NewDirCatalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return cat, New(cat, catalog.RunSpec{})
}

func insertInto(t *testing.T, cat *catalog.DirCatalog, id common.RunID, keys ...string) {
	t.Helper()
	run, err := cat.OpenRun(id)
	if err != nil {
		t.Fatalf("OpenRun(%s): %v", id, err)
	}
	for i, k := range keys {
		if err := run.Insert([]byte(k), common.TID{Block: uint32(i), Slot: 1}); err != nil {
			t.Fatalf("insert %s: %v", k, err)
		}
	}
	if err := run.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
}

func allKeys(t *testing.T, cat *catalog.DirCatalog, id common.RunID) []string {
	t.Helper()
	run, err := cat.OpenRun(id)
	if err != nil {
		t.Fatalf("OpenRun(%s): %v", id, err)
	}
	cur, err := run.NewCursor()
	if err != nil {
		t.Fatalf("NewCursor: %v", err)
	}
	defer cur.Close()
	var out []string
	for cur.Next() {
		out = append(out, string(cur.Key()))
	}
	if err := cur.Err(); err != nil {
		t.Fatalf("cursor error: %v", err)
	}
	return out
}

func TestMaybeFlushPromotesFullLevelAndMergesAllEntries(t *testing.T) {
	cat, eng := setupTestEngine(t)

	m := manifest.New(2, 2, []int{1}, false, common.RunID(0))
	runA, _ := cat.CreateRun(catalog.RunSpec{})
	runB, _ := cat.CreateRun(catalog.RunSpec{})
	insertInto(t, cat, runA.ID(), "a1", "a2")
	insertInto(t, cat, runB.ID(), "b1")

	m.AppendRun(0, runA.ID(), 2)
	m.AppendRun(0, runB.ID(), 1)

	dropped, err := eng.MaybeFlush(m)
	if err != nil {
		t.Fatalf("MaybeFlush: %v", err)
	}

	if m.Levels[0] != 0 {
		t.Fatalf("expected level 0 cleared, got %d runs", m.Levels[0])
	}
	if m.Levels[1] != 1 {
		t.Fatalf("expected level 1 to hold the merged run, got %d", m.Levels[1])
	}
	if len(dropped) != 2 {
		t.Fatalf("expected 2 superseded runs, got %d", len(dropped))
	}

	merged := m.Tree[1][0]
	keys := allKeys(t, cat, merged)
	if len(keys) != 3 {
		t.Fatalf("expected 3 merged entries, got %d: %v", len(keys), keys)
	}
}

func TestMaybeFlushDoesNothingWhenNoLevelIsFull(t *testing.T) {
	cat, eng := setupTestEngine(t)
	m := manifest.New(3, 3, []int{1}, false, common.RunID(0))
	runA, _ := cat.CreateRun(catalog.RunSpec{})
	m.AppendRun(0, runA.ID(), 1)

	dropped, err := eng.MaybeFlush(m)
	if err != nil {
		t.Fatalf("MaybeFlush: %v", err)
	}
	if len(dropped) != 0 {
		t.Fatalf("expected no merges, got %d dropped runs", len(dropped))
	}
	if m.Levels[0] != 1 {
		t.Fatalf("level 0 should be untouched")
	}
}

func TestMaybeFlushRootPassIncludesExistingRoot(t *testing.T) {
	cat, eng := setupTestEngine(t)
	m := manifest.New(2, 2, []int{1}, false, common.RunID(0))

	oldRoot, _ := cat.CreateRun(catalog.RunSpec{})
	insertInto(t, cat, oldRoot.ID(), "r1")
	m.SetRoot(oldRoot.ID(), 1)

	deepest := m.N - 1
	runA, _ := cat.CreateRun(catalog.RunSpec{})
	runB, _ := cat.CreateRun(catalog.RunSpec{})
	insertInto(t, cat, runA.ID(), "d1")
	insertInto(t, cat, runB.ID(), "d2")
	m.AppendRun(deepest, runA.ID(), 1)
	m.AppendRun(deepest, runB.ID(), 1)

	dropped, err := eng.MaybeFlush(m)
	if err != nil {
		t.Fatalf("MaybeFlush: %v", err)
	}
	if len(dropped) != 3 {
		t.Fatalf("expected 3 superseded runs (2 deepest + old root), got %d", len(dropped))
	}
	if m.Root == manifest.NilRun {
		t.Fatalf("expected a new root to be installed")
	}
	keys := allKeys(t, cat, m.Root)
	if len(keys) != 3 {
		t.Fatalf("expected new root to hold 3 entries (old root + 2 deepest runs), got %d: %v", len(keys), keys)
	}
}
