package catalog

import (
	"testing"

	"github.com/intellect4all/smerge/common"
	"github.com/intellect4all/smerge/common/testutil"
)

func setupTestCatalog(t *testing.T) *DirCatalog {
	dir := testutil.TempDir(t)
	cat, err := NewDirCatalog(dir, 100)
	if err != nil {
		t.Fatalf("NewDirCatalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return cat
}

func TestCreateInsertAndCursor(t *testing.T) {
	cat := setupTestCatalog(t)

	run, err := cat.CreateRun(RunSpec{Attrs: []int{1}})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	want := map[string]common.TID{
		"alpha": {Block: 1, Slot: 1},
		"beta":  {Block: 1, Slot: 2},
		"gamma": {Block: 2, Slot: 1},
	}
	for k, tid := range want {
		if err := run.Insert([]byte(k), tid); err != nil {
			t.Fatalf("Insert(%s): %v", k, err)
		}
	}

	got := make(map[string]common.TID)
	cur, err := run.NewCursor()
	if err != nil {
		t.Fatalf("NewCursor: %v", err)
	}
	defer cur.Close()
	for cur.Next() {
		got[string(cur.Key())] = cur.TID()
	}
	if err := cur.Err(); err != nil {
		t.Fatalf("cursor error: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for k, tid := range want {
		if got[k] != tid {
			t.Fatalf("entry %s: got %+v want %+v", k, got[k], tid)
		}
	}
}

func TestDuplicateKeyDistinctTIDsBothSurvive(t *testing.T) {
	cat := setupTestCatalog(t)
	run, err := cat.CreateRun(RunSpec{})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	key := []byte("shared")
	if err := run.Insert(key, common.TID{Block: 1, Slot: 1}); err != nil {
		t.Fatalf("insert 1: %v", err)
	}
	if err := run.Insert(key, common.TID{Block: 1, Slot: 2}); err != nil {
		t.Fatalf("insert 2: %v", err)
	}

	if run.EntryCount() != 2 {
		t.Fatalf("expected 2 entries, got %d", run.EntryCount())
	}

	found, err := run.ContainsKey(key)
	if err != nil {
		t.Fatalf("ContainsKey: %v", err)
	}
	if !found {
		t.Fatalf("expected ContainsKey to find shared key")
	}

	found, err = run.ContainsKey([]byte("absent"))
	if err != nil {
		t.Fatalf("ContainsKey(absent): %v", err)
	}
	if found {
		t.Fatalf("did not expect to find absent key")
	}
}

func TestOpenRunRebuildsBloomAndCount(t *testing.T) {
	cat := setupTestCatalog(t)
	run, err := cat.CreateRun(RunSpec{})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	id := run.ID()
	for i := 0; i < 5; i++ {
		if err := run.Insert([]byte{byte('a' + i)}, common.TID{Block: uint32(i)}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if err := run.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := run.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	cat2, err := NewDirCatalog(cat.dir, 100)
	if err != nil {
		t.Fatalf("reopen catalog: %v", err)
	}
	defer cat2.Close()

	reopened, err := cat2.OpenRun(id)
	if err != nil {
		t.Fatalf("OpenRun: %v", err)
	}
	if reopened.EntryCount() != 5 {
		t.Fatalf("expected rebuilt count 5, got %d", reopened.EntryCount())
	}
	if !reopened.MayContain([]byte{'a'}) {
		t.Fatalf("expected rebuilt bloom to contain 'a'")
	}
}

func TestBulkLoadBuildsRunWithoutPerEntryInsert(t *testing.T) {
	cat := setupTestCatalog(t)
	run, err := cat.CreateRun(RunSpec{})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	bl, err := run.BulkLoad()
	if err != nil {
		t.Fatalf("BulkLoad: %v", err)
	}

	want := map[string]common.TID{
		"alpha": {Block: 1, Slot: 1},
		"beta":  {Block: 1, Slot: 2},
		"gamma": {Block: 2, Slot: 1},
	}
	keys := []string{"alpha", "beta", "gamma"}
	for _, k := range keys {
		if err := bl.Add([]byte(k), want[k]); err != nil {
			t.Fatalf("bulk Add(%s): %v", k, err)
		}
	}
	if err := bl.Finish(); err != nil {
		t.Fatalf("bulk Finish: %v", err)
	}

	if run.EntryCount() != int64(len(want)) {
		t.Fatalf("expected EntryCount=%d, got %d", len(want), run.EntryCount())
	}

	got := make(map[string]common.TID)
	cur, err := run.NewCursor()
	if err != nil {
		t.Fatalf("NewCursor: %v", err)
	}
	defer cur.Close()
	for cur.Next() {
		got[string(cur.Key())] = cur.TID()
	}
	if err := cur.Err(); err != nil {
		t.Fatalf("cursor error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for k, tid := range want {
		if got[k] != tid {
			t.Fatalf("entry %s: got %+v want %+v", k, got[k], tid)
		}
	}

	for _, k := range keys {
		if !run.MayContain([]byte(k)) {
			t.Fatalf("expected bloom filter to contain %s after bulk load", k)
		}
	}
}

func TestDropRunRemovesFiles(t *testing.T) {
	cat := setupTestCatalog(t)
	run, err := cat.CreateRun(RunSpec{})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	id := run.ID()

	if err := cat.DropRun(id); err != nil {
		t.Fatalf("DropRun: %v", err)
	}

	ids, err := cat.ListRunIDs()
	if err != nil {
		t.Fatalf("ListRunIDs: %v", err)
	}
	for _, got := range ids {
		if got == id {
			t.Fatalf("dropped run %s still listed", id)
		}
	}
}
