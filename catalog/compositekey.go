package catalog

import "github.com/intellect4all/smerge/common"

// Every run stores composite keys so that distinct (key, TID) pairs never
// collide, the same way a real B-tree secondary index appends the heap
// TID as a tie-breaker instead of forbidding duplicate keys outright.
// Layout: [keyLen(2)][key][tid(6)].

// SortKey exposes the exact byte ordering a run physically stores
// entries in, so the merge engine can compare cursors from different
// runs consistently with how each run's own B-tree already orders them.
func SortKey(key []byte, tid common.TID) []byte {
	return compositeKey(key, tid)
}

func compositeKey(key []byte, tid common.TID) []byte {
	out := make([]byte, 2+len(key)+6)
	out[0] = byte(len(key) >> 8)
	out[1] = byte(len(key))
	copy(out[2:], key)
	copy(out[2+len(key):], tid.Encode())
	return out
}

// keyPrefix returns the length-prefixed key portion shared by every
// composite entry for key, regardless of TID.
func keyPrefix(key []byte) []byte {
	out := make([]byte, 2+len(key))
	out[0] = byte(len(key) >> 8)
	out[1] = byte(len(key))
	copy(out[2:], key)
	return out
}

func splitComposite(composite []byte) (key []byte, tid common.TID, err error) {
	if len(composite) < 8 {
		return nil, common.TID{}, errShortComposite
	}
	klen := int(composite[0])<<8 | int(composite[1])
	if len(composite) != 2+klen+6 {
		return nil, common.TID{}, errShortComposite
	}
	key = composite[2 : 2+klen]
	tid, err = common.DecodeTID(composite[2+klen:])
	return key, tid, err
}

// upperBound returns the smallest composite key strictly greater than
// every composite key built from key, used as an exclusive scan bound
// when probing for any entry under key.
func upperBound(key []byte) []byte {
	p := keyPrefix(key)
	out := append(append([]byte(nil), p...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00)
	return out
}

var errShortComposite = &compositeErr{"catalog: malformed composite key"}

type compositeErr struct{ msg string }

func (e *compositeErr) Error() string { return e.msg }
