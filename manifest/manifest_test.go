package manifest

import (
	"testing"

	"github.com/intellect4all/smerge/common"
	"github.com/intellect4all/smerge/common/testutil"
)

func TestRoundTrip(t *testing.T) {
	dir := testutil.TempDir(t)

	m := New(3, 3, []int{1, 2}, true, common.RunID(1))
	if err := m.AppendRun(0, common.RunID(2), 10); err != nil {
		t.Fatalf("AppendRun: %v", err)
	}
	m.SetRoot(common.RunID(9), 100)
	m.CurrTuples = 7

	st := Open(dir)
	if err := st.Store(m); err != nil {
		t.Fatalf("Store: %v", err)
	}

	loaded, err := st.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.K != m.K || loaded.N != m.N || loaded.Unique != m.Unique {
		t.Fatalf("shape mismatch: got K=%d N=%d Unique=%v", loaded.K, loaded.N, loaded.Unique)
	}
	if loaded.Curr != m.Curr || loaded.Root != m.Root {
		t.Fatalf("curr/root mismatch: got curr=%v root=%v", loaded.Curr, loaded.Root)
	}
	if loaded.CurrTuples != m.CurrTuples {
		t.Fatalf("CurrTuples mismatch: got %d want %d", loaded.CurrTuples, m.CurrTuples)
	}
	if loaded.Levels[0] != 1 || loaded.Tree[0][0] != common.RunID(2) {
		t.Fatalf("level 0 mismatch: %+v", loaded.Levels)
	}
	if len(loaded.Attrs) != 2 || loaded.Attrs[0] != 1 || loaded.Attrs[1] != 2 {
		t.Fatalf("attrs mismatch: %v", loaded.Attrs)
	}
}

func TestLevelFullAndAppendRejectsOverflow(t *testing.T) {
	m := New(2, 2, []int{1}, false, common.RunID(1))
	if err := m.AppendRun(0, common.RunID(2), 1); err != nil {
		t.Fatalf("AppendRun 1: %v", err)
	}
	if m.LevelFull(0) {
		t.Fatalf("level should not be full yet")
	}
	if err := m.AppendRun(0, common.RunID(3), 1); err != nil {
		t.Fatalf("AppendRun 2: %v", err)
	}
	if !m.LevelFull(0) {
		t.Fatalf("level should be full")
	}
	if err := m.AppendRun(0, common.RunID(4), 1); err != common.ErrTooManyRuns {
		t.Fatalf("expected ErrTooManyRuns, got %v", err)
	}
}

func TestEstimatedLiveTuples(t *testing.T) {
	m := New(3, 3, []int{1}, false, common.RunID(1))
	m.CurrTuples = 5
	m.AppendRun(0, common.RunID(2), 20)
	m.SetRoot(common.RunID(9), 100)

	if got := m.EstimatedLiveTuples(); got != 125 {
		t.Fatalf("expected 125, got %d", got)
	}
}

func TestCorruptPageRejected(t *testing.T) {
	dir := testutil.TempDir(t)
	st := Open(dir)
	m := New(99, 1, nil, false, common.RunID(1))
	_ = st // K out of range must be rejected at decode, not encode
	if err := encodeDecodeRoundTrip(m); err == nil {
		t.Fatalf("expected ErrCorruptMetadata for K=99")
	}
}

func encodeDecodeRoundTrip(m *Manifest) error {
	_, err := Decode(Encode(m))
	return err
}
