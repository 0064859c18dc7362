package merge

import (
	"container/heap"

	"github.com/intellect4all/smerge/catalog"
	"github.com/intellect4all/smerge/common"
)

// sourceEntry is one run's current front-buffer candidate, the Go
// counterpart to smsort.c's per-spool itup[k] slot.
type sourceEntry struct {
	key    []byte
	tid    common.TID
	sortKy []byte
	src    int
}

// frontHeap implements the "scan the front buffer, take the min, break
// ties by earliest input index" selection _sm_merge_k performs with a
// plain linear scan. A heap gives the same answer in O(log k) instead of
// O(k) per step; the tie-break rule is identical.
type frontHeap []sourceEntry

func (h frontHeap) Len() int { return len(h) }
func (h frontHeap) Less(i, j int) bool {
	c := compareBytes(h[i].sortKy, h[j].sortKy)
	if c != 0 {
		return c < 0
	}
	return h[i].src < h[j].src
}
func (h frontHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *frontHeap) Push(x interface{}) { *h = append(*h, x.(sourceEntry)) }
func (h *frontHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// mergeCursors drains every cursor in ascending composite-key order,
// calling emit for each entry, and returns the number emitted. This is
// the literal k-way (or k+1-way, for the root pass) merge loop.
func mergeCursors(cursors []catalog.Cursor, emit func(key []byte, tid common.TID) error) (int64, error) {
	h := &frontHeap{}
	heap.Init(h)

	for i, c := range cursors {
		if c.Next() {
			heap.Push(h, sourceEntry{key: c.Key(), tid: c.TID(), sortKy: catalog.SortKey(c.Key(), c.TID()), src: i})
		} else if err := c.Err(); err != nil {
			return 0, err
		}
	}

	var n int64
	for h.Len() > 0 {
		min := heap.Pop(h).(sourceEntry)
		if err := emit(min.key, min.tid); err != nil {
			return n, err
		}
		n++

		c := cursors[min.src]
		if c.Next() {
			heap.Push(h, sourceEntry{key: c.Key(), tid: c.TID(), sortKy: catalog.SortKey(c.Key(), c.TID()), src: min.src})
		} else if err := c.Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}
