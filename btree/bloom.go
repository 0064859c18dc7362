package btree

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

// Bloom is a probabilistic membership filter attached to a Run, used to
// short-circuit cross-run uniqueness probes without a full point scan.
type Bloom struct {
	bits      []byte
	numBits   uint64
	numHashes uint32
}

// NewBloom creates a filter sized for expectedKeys entries at the given
// false-positive rate.
func NewBloom(expectedKeys int, falsePositiveRate float64) *Bloom {
	if expectedKeys < 1 {
		expectedKeys = 1
	}
	numBits := uint64(math.Ceil(-float64(expectedKeys) * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)))
	if numBits < 8 {
		numBits = 8
	}
	numHashes := uint32(math.Ceil(float64(numBits) / float64(expectedKeys) * math.Ln2))
	if numHashes == 0 {
		numHashes = 1
	}
	numBytes := (numBits + 7) / 8
	return &Bloom{
		bits:      make([]byte, numBytes),
		numBits:   numBits,
		numHashes: numHashes,
	}
}

func (bf *Bloom) hash1(key []byte) uint64 {
	h := fnv.New64a()
	h.Write(key)
	return h.Sum64()
}

func (bf *Bloom) hash2(key []byte) uint64 {
	h := fnv.New64()
	h.Write(key)
	return h.Sum64()
}

func (bf *Bloom) hashes(key []byte) []uint64 {
	h1 := bf.hash1(key)
	h2 := bf.hash2(key)
	out := make([]uint64, bf.numHashes)
	for i := uint32(0); i < bf.numHashes; i++ {
		out[i] = (h1 + uint64(i)*h2) % bf.numBits
	}
	return out
}

// Add records key as present.
func (bf *Bloom) Add(key []byte) {
	for _, h := range bf.hashes(key) {
		bf.bits[h/8] |= 1 << (h % 8)
	}
}

// MayContain returns false only when key is definitely absent.
func (bf *Bloom) MayContain(key []byte) bool {
	for _, h := range bf.hashes(key) {
		if bf.bits[h/8]&(1<<(h%8)) == 0 {
			return false
		}
	}
	return true
}

// Encode serializes the filter as [numBits(8)][numHashes(4)][bits...].
func (bf *Bloom) Encode() []byte {
	buf := make([]byte, 12+len(bf.bits))
	binary.LittleEndian.PutUint64(buf[0:], bf.numBits)
	binary.LittleEndian.PutUint32(buf[8:], bf.numHashes)
	copy(buf[12:], bf.bits)
	return buf
}

// DecodeBloom deserializes a filter previously produced by Encode.
func DecodeBloom(data []byte) *Bloom {
	if len(data) < 12 {
		return nil
	}
	numBits := binary.LittleEndian.Uint64(data[0:])
	numHashes := binary.LittleEndian.Uint32(data[8:])
	bits := make([]byte, len(data)-12)
	copy(bits, data[12:])
	return &Bloom{bits: bits, numBits: numBits, numHashes: numHashes}
}
