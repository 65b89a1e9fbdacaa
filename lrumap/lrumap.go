// Package lrumap provides the recency-ordered container underneath the
// memory cache tier: a hash map combined with an intrusive doubly linked
// list, giving O(1) get/put/remove/remove-tail with move-to-front promotion.
//
// Entries live in an arena: a slot array addressed by int32 indices with a
// free list threaded through unused slots. The map stores slot indices, not
// pointers, so there is no cyclic ownership between the map and the list.
//
// When a positive timeout is configured, entries carry an absolute deadline
// and an expiry index sweeps them out lazily: every mutating operation first
// drops the expired prefix. There are no per-entry timers; an expired entry
// that is never touched again may linger until the next access to any key.
//
// The container is not synchronized. Callers serialize access themselves
// (the cache package wraps it with a structural mutex).
package lrumap

import (
	"reflect"
	"time"
)

// Ref identifies a live entry inside the container's arena. Refs are only
// meaningful while the entry is resident; they are recycled after removal.
type Ref int32

// NoRef is the zero point of the arena address space.
const NoRef Ref = -1

const nilIdx int32 = -1

// PutOutcome reports what Put did with the key.
type PutOutcome int

const (
	// PutInserted — the key was absent and a new entry was created.
	PutInserted PutOutcome = iota
	// PutReplaced — the key was present and its value was swapped out.
	PutReplaced
	// PutPromoted — the key was present with the identical value; the entry
	// was only moved to the head. No replacement happened.
	PutPromoted
)

// slot is one arena cell. prev/next are slot indices (head=MRU, tail=LRU).
// A free slot threads the free list through next and has live == false.
type slot[K comparable, V any] struct {
	key      K
	val      V
	prev     int32
	next     int32
	expireAt int64 // absolute UnixNano deadline; 0 = none
	live     bool
}

// Container is the map + intrusive list pair. Invariant: len(index) equals
// the list length after every operation; head and tail are nil indices iff
// the container is empty.
type Container[K comparable, V any] struct {
	slots []slot[K, V]
	free  int32 // head of the free list, nilIdx when exhausted
	index map[K]int32
	head  int32
	tail  int32

	timeout int64 // nanoseconds; <= 0 disables expiration
	expiry  *expiryIndex
	now     func() int64

	onExpire func(key K, value V)
}

// New constructs a container. A non-positive timeout disables expiration.
// now overrides the time source (nil => time.Now); it is only consulted when
// a timeout is set.
func New[K comparable, V any](timeout time.Duration, now func() int64) *Container[K, V] {
	c := &Container[K, V]{
		free:  nilIdx,
		index: make(map[K]int32),
		head:  nilIdx,
		tail:  nilIdx,
		now:   now,
	}
	if timeout > 0 {
		c.timeout = int64(timeout)
		c.expiry = newExpiryIndex()
		if c.now == nil {
			c.now = func() int64 { return time.Now().UnixNano() }
		}
	}
	return c
}

// Get returns the value for key and promotes the entry to the head.
// A miss does not mutate the container beyond the expiry sweep.
func (c *Container[K, V]) Get(key K) (V, bool) {
	c.sweep()

	i, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(i)
	return c.slots[i].val, true
}

// Put stores value under key at the head of the list and returns the value
// it displaced, if any. Storing the identical value again (pointer identity,
// see sameValue) only promotes the entry and reports PutPromoted with the
// resident value as prev.
func (c *Container[K, V]) Put(key K, value V) (prev V, outcome PutOutcome) {
	c.sweep()

	if i, ok := c.index[key]; ok {
		s := &c.slots[i]
		if sameValue(s.val, value) {
			c.moveToFront(i)
			return s.val, PutPromoted
		}
		prev = s.val
		if c.expiry != nil {
			c.expiry.remove(s.expireAt, i)
		}
		s.val = value
		c.moveToFront(i)
		c.stamp(i)
		return prev, PutReplaced
	}

	i := c.alloc()
	s := &c.slots[i]
	s.key = key
	s.val = value
	s.live = true
	c.index[key] = i
	c.pushFront(i)
	c.stamp(i)
	var zero V
	return zero, PutInserted
}

// Remove deletes key and returns the removed value. The slot's key and value
// are cleared immediately so references are released promptly.
func (c *Container[K, V]) Remove(key K) (V, bool) {
	c.sweep()

	i, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	val := c.slots[i].val
	c.dropSlot(key, i)
	return val, true
}

// RemoveTail pops the least-recently-used entry. The returned Ref identifies
// the popped slot; it is stable for the caller to compare against HeadRef
// results as long as nothing else is inserted in between.
func (c *Container[K, V]) RemoveTail() (key K, value V, ref Ref, ok bool) {
	c.sweep()

	if c.tail == nilIdx {
		return key, value, NoRef, false
	}
	i := c.tail
	key = c.slots[i].key
	value = c.slots[i].val
	c.dropSlot(key, i)
	return key, value, Ref(i), true
}

// HeadRef returns the Ref of the most-recently-used entry, NoRef when empty.
func (c *Container[K, V]) HeadRef() Ref {
	if c.head == nilIdx {
		return NoRef
	}
	return Ref(c.head)
}

// Len returns the number of resident entries.
func (c *Container[K, V]) Len() int { return len(c.index) }

// MapLen and ListLen exist for invariant checks in tests. ListLen walks the
// list; never call it on a hot path.
func (c *Container[K, V]) MapLen() int { return len(c.index) }

func (c *Container[K, V]) ListLen() int {
	n := 0
	for i := c.head; i != nilIdx; i = c.slots[i].next {
		n++
	}
	return n
}

// ---- internals ----

// dropSlot unlinks i, removes it from the map and the expiry index, clears
// the slot and pushes it onto the free list.
func (c *Container[K, V]) dropSlot(key K, i int32) {
	if c.expiry != nil {
		c.expiry.remove(c.slots[i].expireAt, i)
	}
	c.unlink(i)
	delete(c.index, key)
	c.freeSlot(i)
}

// SetOnExpire registers a callback invoked for every entry dropped by the
// lazy expiry sweep. It runs while the container is mid-operation and must
// not call back into the container.
func (c *Container[K, V]) SetOnExpire(fn func(key K, value V)) { c.onExpire = fn }

// sweep removes every entry whose deadline has passed. Runs at the start of
// each mutating operation; cheap when nothing expired.
func (c *Container[K, V]) sweep() {
	if c.expiry == nil {
		return
	}
	expired := c.expiry.popExpired(c.now())
	for _, i := range expired {
		key := c.slots[i].key
		val := c.slots[i].val
		c.unlink(i)
		delete(c.index, key)
		c.freeSlot(i)
		if c.onExpire != nil {
			c.onExpire(key, val)
		}
	}
}

func (c *Container[K, V]) stamp(i int32) {
	if c.expiry == nil {
		return
	}
	at := c.now() + c.timeout
	c.slots[i].expireAt = at
	c.expiry.insert(at, i)
}

func (c *Container[K, V]) alloc() int32 {
	if c.free != nilIdx {
		i := c.free
		c.free = c.slots[i].next
		return i
	}
	c.slots = append(c.slots, slot[K, V]{})
	return int32(len(c.slots) - 1)
}

func (c *Container[K, V]) freeSlot(i int32) {
	var zero slot[K, V]
	c.slots[i] = zero
	c.slots[i].next = c.free
	c.free = i
}

// pushFront links i in as the new head in O(1).
func (c *Container[K, V]) pushFront(i int32) {
	s := &c.slots[i]
	s.prev = nilIdx
	s.next = c.head
	if c.head != nilIdx {
		c.slots[c.head].prev = i
	}
	c.head = i
	if c.tail == nilIdx {
		c.tail = i
	}
}

// moveToFront promotes i to the head in O(1).
func (c *Container[K, V]) moveToFront(i int32) {
	if i == c.head {
		return
	}
	c.unlink(i)
	c.pushFront(i)
}

// unlink detaches i from the list, fixing head/tail.
func (c *Container[K, V]) unlink(i int32) {
	s := &c.slots[i]
	if s.prev != nilIdx {
		c.slots[s.prev].next = s.next
	}
	if s.next != nilIdx {
		c.slots[s.next].prev = s.prev
	}
	if c.head == i {
		c.head = s.next
	}
	if c.tail == i {
		c.tail = s.prev
	}
	s.prev, s.next = nilIdx, nilIdx
}

// sameValue reports whether a and b are the same object, not merely equal.
// Only reference kinds have a usable notion of identity; for everything else
// (ints, strings, structs) this returns false and Put treats the call as a
// replacement.
func sameValue[V any](a, b V) bool {
	ra := reflect.ValueOf(a)
	rb := reflect.ValueOf(b)
	if ra.Kind() != rb.Kind() {
		return false
	}
	switch ra.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return ra.Pointer() == rb.Pointer()
	case reflect.Slice:
		return ra.Pointer() == rb.Pointer() && ra.Len() == rb.Len()
	}
	return false
}
