package manifest

import (
	"encoding/binary"
	"fmt"

	"github.com/intellect4all/smerge/common"
	"github.com/intellect4all/smerge/pageio"
)

// PageKind identifies the manifest page among other page kinds a future
// component C consumer might define.
const PageKind = 1

// Encode serializes m into a pageio.Page body. The layout is fixed-width
// throughout so Decode never needs to guess a length.
func Encode(m *Manifest) *pageio.Page {
	p := &pageio.Page{Kind: PageKind}
	b := p.Body[:]

	off := 0
	putInt32 := func(v int32) {
		binary.LittleEndian.PutUint32(b[off:], uint32(v))
		off += 4
	}
	putInt64 := func(v int64) {
		binary.LittleEndian.PutUint64(b[off:], uint64(v))
		off += 8
	}
	putUint64 := func(v uint64) {
		binary.LittleEndian.PutUint64(b[off:], v)
		off += 8
	}
	putBool := func(v bool) {
		if v {
			b[off] = 1
		} else {
			b[off] = 0
		}
		off++
	}

	putInt32(int32(m.K))
	putInt32(int32(m.N))
	putBool(m.Unique)

	putInt32(int32(len(m.Attrs)))
	for i := 0; i < MaxAttrs; i++ {
		v := 0
		if i < len(m.Attrs) {
			v = m.Attrs[i]
		}
		putInt32(int32(v))
	}

	putInt64(m.CurrTuples)
	putUint64(uint64(m.Curr))
	putUint64(uint64(m.Root))

	for i := 0; i < MaxN; i++ {
		putInt32(int32(m.Levels[i]))
	}
	for i := 0; i < MaxN; i++ {
		for j := 0; j < MaxK; j++ {
			putUint64(uint64(m.Tree[i][j]))
		}
	}
	for i := 0; i <= MaxN; i++ {
		for j := 0; j < MaxK; j++ {
			putInt64(m.RunStats[i][j])
		}
	}

	return p
}

// Decode reverses Encode.
func Decode(p *pageio.Page) (*Manifest, error) {
	if p.Kind != PageKind {
		return nil, fmt.Errorf("%w: unexpected page kind %d", common.ErrCorruptMetadata, p.Kind)
	}
	b := p.Body[:]
	off := 0
	getInt32 := func() int32 {
		v := int32(binary.LittleEndian.Uint32(b[off:]))
		off += 4
		return v
	}
	getInt64 := func() int64 {
		v := int64(binary.LittleEndian.Uint64(b[off:]))
		off += 8
		return v
	}
	getUint64 := func() uint64 {
		v := binary.LittleEndian.Uint64(b[off:])
		off += 8
		return v
	}
	getBool := func() bool {
		v := b[off] != 0
		off++
		return v
	}

	m := &Manifest{}
	m.K = int(getInt32())
	m.N = int(getInt32())
	m.Unique = getBool()

	attrCount := int(getInt32())
	attrs := make([]int, MaxAttrs)
	for i := 0; i < MaxAttrs; i++ {
		attrs[i] = int(getInt32())
	}
	if attrCount < 0 || attrCount > MaxAttrs {
		return nil, fmt.Errorf("%w: attribute count %d out of range", common.ErrCorruptMetadata, attrCount)
	}
	m.Attrs = attrs[:attrCount]

	m.CurrTuples = getInt64()
	m.Curr = common.RunID(getUint64())
	m.Root = common.RunID(getUint64())

	for i := 0; i < MaxN; i++ {
		m.Levels[i] = int(getInt32())
	}
	for i := 0; i < MaxN; i++ {
		for j := 0; j < MaxK; j++ {
			m.Tree[i][j] = common.RunID(getUint64())
		}
	}
	for i := 0; i <= MaxN; i++ {
		for j := 0; j < MaxK; j++ {
			m.RunStats[i][j] = getInt64()
		}
	}

	if m.K <= 0 || m.K > MaxK || m.N <= 0 || m.N > MaxN {
		return nil, fmt.Errorf("%w: K=%d N=%d out of range", common.ErrCorruptMetadata, m.K, m.N)
	}
	for i := 0; i < m.N; i++ {
		if m.Levels[i] < 0 || m.Levels[i] > m.K {
			return nil, fmt.Errorf("%w: level %d holds %d runs", common.ErrCorruptMetadata, i, m.Levels[i])
		}
	}

	return m, nil
}
