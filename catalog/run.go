package catalog

import (
	"fmt"
	"sync/atomic"

	"github.com/intellect4all/smerge/btree"
	"github.com/intellect4all/smerge/common"
)

// btreeRun is the concrete Run: one btree.BTree file per run, keyed by
// the (key, TID) composite so repeated logical keys are simply distinct
// entries, plus a Bloom filter maintained alongside every insert.
type btreeRun struct {
	id    common.RunID
	tree  *btree.BTree
	bloom *btree.Bloom
	dir   string
	count atomic.Int64
}

func (r *btreeRun) ID() common.RunID { return r.id }

// Insert writes through the tree's ConcurrentPut, so it may be called
// from several goroutines against the same run: writers serialize on the
// root page's write latch, and the run needs no mutex of its own. An
// entry too large to fit three to a page is rejected with
// common.ErrOversizeTuple.
func (r *btreeRun) Insert(key []byte, tid common.TID) error {
	composite := compositeKey(key, tid)
	value := tid.Encode()
	if 3*(len(composite)+len(value)+btree.LeafCellHeaderSizeV1+btree.CellDirEntrySize) > btree.PageSize-btree.HeaderSize {
		return fmt.Errorf("catalog: insert into %s: %w", r.id, common.ErrOversizeTuple)
	}
	if err := r.tree.ConcurrentPut(composite, value); err != nil {
		return fmt.Errorf("catalog: insert into %s: %w", r.id, err)
	}
	r.bloom.Add(key)
	r.count.Add(1)
	return nil
}

func (r *btreeRun) ContainsKey(key []byte) (bool, error) {
	if !r.bloom.MayContain(key) {
		return false, nil
	}
	it, err := r.tree.Scan(keyPrefix(key), upperBound(key))
	if err != nil {
		return false, err
	}
	defer it.Close()
	found := it.Next()
	if err := it.Error(); err != nil {
		return false, err
	}
	return found, nil
}

func (r *btreeRun) MayContain(key []byte) bool {
	return r.bloom.MayContain(key)
}

func (r *btreeRun) EntryCount() int64 { return r.count.Load() }

// btreeBulkInserter wraps a btree.BulkLoader with the same composite-key
// encoding and Bloom/count bookkeeping btreeRun.Insert applies per entry.
type btreeBulkInserter struct {
	run *btreeRun
	bl  *btree.BulkLoader
}

func (bi *btreeBulkInserter) Add(key []byte, tid common.TID) error {
	composite := compositeKey(key, tid)
	if err := bi.bl.Add(composite, tid.Encode()); err != nil {
		return fmt.Errorf("catalog: bulk add into %s: %w", bi.run.id, err)
	}
	bi.run.bloom.Add(key)
	bi.run.count.Add(1)
	return nil
}

func (bi *btreeBulkInserter) Finish() error {
	if err := bi.bl.Finish(); err != nil {
		return fmt.Errorf("catalog: bulk finish %s: %w", bi.run.id, err)
	}
	return nil
}

// BulkLoad returns a sequential-build writer for this run, grounded on
// the same bottom-up page packing CREATE INDEX uses: a merge's output
// run is built this way instead of through Insert's per-entry path.
func (r *btreeRun) BulkLoad() (BulkInserter, error) {
	return &btreeBulkInserter{run: r, bl: r.tree.NewBulkLoader()}, nil
}

func (r *btreeRun) Stats() common.RunStats { return r.tree.Stats() }

func (r *btreeRun) Sync() error { return r.tree.Sync() }

func (r *btreeRun) Close() error { return r.tree.Close() }

// runCursor walks a run's entries via the underlying btree.Iterator,
// splitting each composite key back into (logical key, TID).
type runCursor struct {
	it        common.Iterator
	key       []byte
	tid       common.TID
	err       error
	exhausted bool
}

func (r *btreeRun) NewCursor() (Cursor, error) {
	it, err := r.tree.Scan(nil, nil)
	if err != nil {
		return nil, err
	}
	return &runCursor{it: it}, nil
}

func (c *runCursor) Next() bool {
	if c.exhausted || c.err != nil {
		return false
	}
	if !c.it.Next() {
		c.exhausted = true
		c.err = c.it.Error()
		return false
	}
	key, tid, err := splitComposite(c.it.Key())
	if err != nil {
		c.err = err
		c.exhausted = true
		return false
	}
	c.key, c.tid = key, tid
	return true
}

func (c *runCursor) Key() []byte     { return c.key }
func (c *runCursor) TID() common.TID { return c.tid }
func (c *runCursor) Err() error      { return c.err }
func (c *runCursor) Close() error    { return c.it.Close() }
