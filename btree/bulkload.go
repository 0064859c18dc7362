package btree

import "errors"

// BulkLoader builds a tree directly from an already-sorted stream of
// entries, the same two-phase approach the original's _bt_buildadd /
// _bt_uppershutdown use for CREATE INDEX and for writing a merge's
// output run: pack leaf pages back-to-back with no split-and-rebalance
// cost per key, then build each internal level from the layer below it,
// bottom-up, until a single page remains and becomes the root.
//
// Add must be called with keys in ascending order; Finish installs the
// built tree as the root and must be called exactly once, after the
// last Add.
type BulkLoader struct {
	bt         *BTree
	leaf       *Page
	leafFirst  []byte
	prevLeafID uint32
	leaves     []childRef
	count      int64
	err        error
}

// childRef names one finished page and the key that routes to it from
// its parent. The key on the first childRef at a level is never read:
// that child is always reached through the parent's RightPtr rather
// than a cell.
type childRef struct {
	key    []byte
	pageID uint32
}

// NewBulkLoader starts a bulk build against bt. bt should be freshly
// created (a single empty leaf root) - BulkLoader never reads the
// existing tree, it only replaces the root once Finish runs.
func (b *BTree) NewBulkLoader() *BulkLoader {
	return &BulkLoader{bt: b}
}

// Add appends one entry to the current leaf page, rolling over to a
// freshly allocated leaf (linked via RightPtr for range scans) whenever
// the current one fills.
func (bl *BulkLoader) Add(key, value []byte) error {
	if bl.err != nil {
		return bl.err
	}

	if bl.leaf == nil {
		if err := bl.startLeaf(key); err != nil {
			bl.err = err
			return err
		}
	}

	cell := &Cell{Key: key, Value: value}
	if err := bl.leaf.InsertCell(cell); err != nil {
		if !errors.Is(err, ErrPageFull) {
			bl.err = err
			return err
		}
		bl.finishLeaf()
		if err := bl.startLeaf(key); err != nil {
			bl.err = err
			return err
		}
		if err := bl.leaf.InsertCell(cell); err != nil {
			bl.err = err
			return err
		}
	}

	bl.count++
	bl.bt.stats.userBytesWritten.Add(int64(len(key) + len(value)))
	return nil
}

func (bl *BulkLoader) startLeaf(firstKey []byte) error {
	page, err := bl.bt.pager.NewPage(PageTypeLeaf)
	if err != nil {
		return err
	}
	if bl.prevLeafID != 0 {
		prev, err := bl.bt.pager.GetPage(bl.prevLeafID)
		if err != nil {
			return err
		}
		prev.SetRightPtr(page.ID())
		bl.bt.pager.MarkDirty(prev.ID())
	}
	bl.leaf = page
	bl.leafFirst = firstKey
	return nil
}

func (bl *BulkLoader) finishLeaf() {
	bl.bt.pager.MarkDirty(bl.leaf.ID())
	bl.leaves = append(bl.leaves, childRef{key: bl.leafFirst, pageID: bl.leaf.ID()})
	bl.prevLeafID = bl.leaf.ID()
	bl.leaf = nil
}

// Finish closes out the last leaf, builds every internal level above it,
// and repoints the tree's root at the result. An empty stream (no Add
// calls) leaves the tree's original empty root untouched.
func (bl *BulkLoader) Finish() error {
	if bl.err != nil {
		return bl.err
	}
	if bl.leaf != nil {
		bl.finishLeaf()
	}
	if len(bl.leaves) == 0 {
		return nil
	}

	level := bl.leaves
	for len(level) > 1 {
		next, err := bl.bt.buildInternalLevel(level)
		if err != nil {
			return err
		}
		level = next
	}

	if err := bl.bt.pager.SetRootPageID(level[0].pageID); err != nil {
		return err
	}

	bl.bt.stats.numKeys += bl.count
	bl.bt.stats.writeCount.Add(bl.count)
	return nil
}

// buildInternalLevel packs children into as few parent pages as fit,
// the same left-to-right packing Add uses for leaves, and returns one
// childRef per parent page for the caller to feed back in as the next
// level up.
func (b *BTree) buildInternalLevel(children []childRef) ([]childRef, error) {
	var level []childRef
	i := 0
	for i < len(children) {
		page, err := b.pager.NewPage(PageTypeInternal)
		if err != nil {
			return nil, err
		}
		page.SetRightPtr(children[i].pageID)
		firstKey := children[i].key
		i++

		for i < len(children) {
			cell := &Cell{Key: children[i].key, Child: children[i].pageID}
			if err := page.InsertCell(cell); err != nil {
				if errors.Is(err, ErrPageFull) {
					break
				}
				return nil, err
			}
			i++
		}

		b.pager.MarkDirty(page.ID())
		level = append(level, childRef{key: firstKey, pageID: page.ID()})
	}
	return level, nil
}
