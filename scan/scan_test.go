package scan

import (
	"testing"

	"github.com/intellect4all/smerge/catalog"
	"github.com/intellect4all/smerge/common"
	"github.com/intellect4all/smerge/common/testutil"
)

func setupTestScanCatalog(t *testing.T) *catalog.DirCatalog {
	dir := testutil.TempDir(t)
	cat, err := catalog.NewDirCatalog(dir, 100)
	if err != nil {
		t.Fatalf("NewDirCatalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return cat
}

func mustInsert(t *testing.T, run catalog.Run, keys ...string) {
	t.Helper()
	for i, k := range keys {
		if err := run.Insert([]byte(k), common.TID{Block: uint32(i + 1)}); err != nil {
			t.Fatalf("insert %s: %v", k, err)
		}
	}
}

func TestScanVisitsRunsInOrderWithoutCrossRunMerging(t *testing.T) {
	cat := setupTestScanCatalog(t)

	runA, _ := cat.CreateRun(catalog.RunSpec{})
	runB, _ := cat.CreateRun(catalog.RunSpec{})
	// runB's keys sort before runA's, but the scan must NOT interleave
	// them: it drains runA fully (as given in runIDs order) before
	// moving to runB, per the unordered-concatenation contract.
	mustInsert(t, runA, "m", "z")
	mustInsert(t, runB, "a", "b")

	sc := New(cat, []common.RunID{runA.ID(), runB.ID()}, nil)
	defer sc.Close()

	var got []string
	for {
		k, _, ok, err := sc.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, string(k))
	}

	want := []string{"m", "z", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %s want %s (full %v)", i, got[i], want[i], got)
		}
	}
}

func TestScanFiltersByKey(t *testing.T) {
	cat := setupTestScanCatalog(t)
	run, _ := cat.CreateRun(catalog.RunSpec{})
	mustInsert(t, run, "x", "y", "x")

	sc := New(cat, []common.RunID{run.ID()}, []byte("x"))
	defer sc.Close()

	var n int
	for {
		k, _, ok, err := sc.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		if string(k) != "x" {
			t.Fatalf("unexpected key %s in filtered scan", k)
		}
		n++
	}
	if n != 2 {
		t.Fatalf("expected 2 matches for key x, got %d", n)
	}
}

func TestScanSkipsRunItCannotOpen(t *testing.T) {
	cat := setupTestScanCatalog(t)
	runA, _ := cat.CreateRun(catalog.RunSpec{})
	mustInsert(t, runA, "only")

	missing := common.RunID(999999)
	sc := New(cat, []common.RunID{missing, runA.ID()}, nil)
	defer sc.Close()

	k, _, ok, err := sc.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok || string(k) != "only" {
		t.Fatalf("expected to skip the missing run and find 'only', got %q ok=%v", k, ok)
	}
}

func TestRescanResetsToFirstRunWithNewKey(t *testing.T) {
	cat := setupTestScanCatalog(t)
	run, _ := cat.CreateRun(catalog.RunSpec{})
	mustInsert(t, run, "p", "q")

	sc := New(cat, []common.RunID{run.ID()}, []byte("p"))
	defer sc.Close()

	k, _, ok, err := sc.Next()
	if err != nil || !ok || string(k) != "p" {
		t.Fatalf("first scan failed: k=%q ok=%v err=%v", k, ok, err)
	}

	if err := sc.Rescan([]byte("q")); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	k, _, ok, err = sc.Next()
	if err != nil || !ok || string(k) != "q" {
		t.Fatalf("rescan failed: k=%q ok=%v err=%v", k, ok, err)
	}
}

func TestScanEmptyRunListYieldsNothing(t *testing.T) {
	cat := setupTestScanCatalog(t)
	sc := New(cat, nil, nil)
	defer sc.Close()

	_, _, ok, err := sc.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ok {
		t.Fatalf("expected no results from an empty run list")
	}
}
