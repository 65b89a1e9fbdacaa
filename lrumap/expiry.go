package lrumap

// expiryIndex is a sorted multimap from expiration deadline to arena slot
// index. Deadlines are kept in ascending order in a flat array; duplicates
// are allowed. Deletion tombstones the slot (ref = tombstone) and a compact
// pass reclaims tombstones before the backing arrays would otherwise grow,
// bounding the amortized cost of the lazy sweep.
type expiryIndex struct {
	keys    []int64
	refs    []int32
	size    int
	garbage bool
}

// tombstone marks a logically deleted slot pending compaction. Arena indices
// are never negative, so the value cannot collide with a live ref.
const tombstone int32 = -1

const expiryInitialCap = 10

func newExpiryIndex() *expiryIndex {
	return &expiryIndex{
		keys: make([]int64, expiryInitialCap),
		refs: make([]int32, expiryInitialCap),
	}
}

// insert records that ref expires at ts. If the insertion point holds a
// tombstone it is reused in place; the neighbouring keys still bracket ts,
// so order is preserved without shifting.
func (x *expiryIndex) insert(ts int64, ref int32) {
	idx := x.search(ts)
	if idx < 0 {
		idx = ^idx
	}

	if idx < x.size && x.refs[idx] == tombstone {
		x.keys[idx] = ts
		x.refs[idx] = ref
		return
	}

	if x.garbage && x.size >= len(x.keys) {
		x.compact()
		// Indices may have shifted.
		idx = x.search(ts)
		if idx < 0 {
			idx = ^idx
		}
	}

	x.insertAt(idx, ts, ref)
}

// remove tombstones the entry for (ts, ref). Matching is by ref identity:
// equal deadlines form a run, and the run is scanned forward then backward
// from the binary-search hit until the exact ref is found. Removing a pair
// that was never inserted is a no-op.
func (x *expiryIndex) remove(ts int64, ref int32) {
	idx := x.search(ts)
	if idx < 0 {
		return
	}
	for i := idx; i < x.size && x.keys[i] == ts; i++ {
		if x.refs[i] == ref {
			x.refs[i] = tombstone
			x.garbage = true
			return
		}
	}
	for i := idx - 1; i >= 0 && x.keys[i] == ts; i-- {
		if x.refs[i] == ref {
			x.refs[i] = tombstone
			x.garbage = true
			return
		}
	}
}

// popExpired removes and returns the refs of every entry with deadline
// <= now, in deadline order. Compacts first so the returned prefix contains
// no tombstones.
func (x *expiryIndex) popExpired(now int64) []int32 {
	if x.garbage {
		x.compact()
	}
	if x.size == 0 {
		return nil
	}

	idx := x.search(now)
	if idx < 0 {
		idx = ^idx
		if idx <= 0 {
			return nil
		}
	} else {
		// Include the whole run of entries expiring exactly at now.
		for idx++; idx < x.size && x.keys[idx] == now; idx++ {
		}
	}

	out := make([]int32, idx)
	copy(out, x.refs[:idx])

	copy(x.keys, x.keys[idx:x.size])
	copy(x.refs, x.refs[idx:x.size])
	x.size -= idx
	return out
}

// compact squeezes out tombstoned slots, preserving order.
func (x *expiryIndex) compact() {
	o := 0
	for i := 0; i < x.size; i++ {
		if x.refs[i] == tombstone {
			continue
		}
		if i != o {
			x.keys[o] = x.keys[i]
			x.refs[o] = x.refs[i]
		}
		o++
	}
	x.size = o
	x.garbage = false
}

func (x *expiryIndex) insertAt(idx int, ts int64, ref int32) {
	if x.size == len(x.keys) {
		nk := make([]int64, 2*len(x.keys))
		nr := make([]int32, 2*len(x.refs))
		copy(nk, x.keys)
		copy(nr, x.refs)
		x.keys = nk
		x.refs = nr
	}
	copy(x.keys[idx+1:x.size+1], x.keys[idx:x.size])
	copy(x.refs[idx+1:x.size+1], x.refs[idx:x.size])
	x.keys[idx] = ts
	x.refs[idx] = ref
	x.size++
}

// search binary-searches the live prefix for ts. Returns an index holding ts
// when found (any one of a duplicate run), otherwise the bitwise complement
// of the insertion point.
func (x *expiryIndex) search(ts int64) int {
	lo, hi := 0, x.size-1
	for lo <= hi {
		mid := int(uint(lo+hi) >> 1)
		switch {
		case x.keys[mid] < ts:
			lo = mid + 1
		case x.keys[mid] > ts:
			hi = mid - 1
		default:
			return mid
		}
	}
	return ^lo
}
