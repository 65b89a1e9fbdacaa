package cache

import (
	"fmt"

	"github.com/IvanBrykalov/twotier/lrumap"
)

// Unsync is the caller-serialized variant of Cache: identical semantics,
// no locking. Use it when access is already confined to one goroutine or
// serialized externally; mixing concurrent callers is a data race.
type Unsync[K comparable, V any] struct {
	lm   *lrumap.Container[K, V]
	size int64
	max  int64

	helper  Helper[K, V]
	metrics Metrics
}

// NewUnsync constructs an externally-synchronized cache with the provided
// Options. It panics if MaxSize is not positive.
func NewUnsync[K comparable, V any](opt Options[K, V]) *Unsync[K, V] {
	opt.withDefaults()
	c := &Unsync[K, V]{
		lm:      lrumap.New[K, V](opt.Timeout, opt.nowFunc()),
		max:     opt.MaxSize,
		helper:  opt.Helper,
		metrics: opt.Metrics,
	}
	c.lm.SetOnExpire(func(k K, v V) {
		c.size -= c.safeSizeOf(k, v)
		c.metrics.Evict(EvictTTL)
	})
	return c
}

// Get returns the value for key, promoting the entry on a hit.
func (c *Unsync[K, V]) Get(key K) (V, bool) {
	v, ok := c.lm.Get(key)
	if ok {
		c.metrics.Hit()
	} else {
		c.metrics.Miss()
	}
	return v, ok
}

// Put stores value under key; see Cache.Put for the callback contract.
func (c *Unsync[K, V]) Put(key K, value V) (V, bool) {
	w := c.safeSizeOf(key, value)

	c.size += w
	prev, outcome := c.lm.Put(key, value)
	if outcome != lrumap.PutInserted {
		c.size -= c.safeSizeOf(key, prev)
	}
	keep := c.lm.HeadRef()

	switch outcome {
	case lrumap.PutReplaced:
		c.helper.EntryRemoved(false, key, prev, &value)
	case lrumap.PutPromoted:
		var zero V
		prev = zero
	}
	if outcome != lrumap.PutPromoted {
		c.helper.EntryAdded(key, value)
	}

	c.trim(c.max, keep, true)
	return prev, outcome == lrumap.PutReplaced
}

// Remove deletes key and returns the removed value.
func (c *Unsync[K, V]) Remove(key K) (V, bool) {
	prev, ok := c.lm.Remove(key)
	if ok {
		c.size -= c.safeSizeOf(key, prev)
		c.helper.EntryRemoved(false, key, prev, nil)
	}
	c.metrics.Size(c.lm.Len(), c.size)
	return prev, ok
}

// TrimToSize evicts LRU entries until size <= limit; see Cache.TrimToSize.
func (c *Unsync[K, V]) TrimToSize(limit int64) { c.trim(limit, lrumap.NoRef, false) }

// EvictAll removes every removable entry.
func (c *Unsync[K, V]) EvictAll() { c.TrimToSize(-1) }

// Resize sets a new maximum size and trims to it.
func (c *Unsync[K, V]) Resize(maxSize int64) {
	if maxSize <= 0 {
		panic("twotier/cache: maxSize must be > 0")
	}
	c.max = maxSize
	c.TrimToSize(maxSize)
}

// Size returns the sum of the weights of resident entries.
func (c *Unsync[K, V]) Size() int64 { return c.size }

// MaxSize returns the current capacity.
func (c *Unsync[K, V]) MaxSize() int64 { return c.max }

// Len returns the number of resident entries.
func (c *Unsync[K, V]) Len() int { return c.lm.Len() }

func (c *Unsync[K, V]) trim(limit int64, keep lrumap.Ref, haveKeep bool) {
	count := c.lm.Len()
	skips := 0
	for {
		if c.size < 0 || (c.lm.Len() == 0 && c.size != 0) {
			panic(fmt.Sprintf("twotier/cache: SizeOf reported inconsistent results (size=%d, entries=%d)", c.size, c.lm.Len()))
		}
		if c.size <= limit || skips == count {
			break
		}
		key, value, ref, ok := c.lm.RemoveTail()
		if !ok {
			break
		}
		if (haveKeep && ref == keep) || !c.helper.CanBeRemoved(key, value) {
			c.lm.Put(key, value)
			if haveKeep && ref == keep {
				keep = c.lm.HeadRef()
			}
			skips++
			continue
		}
		c.size -= c.safeSizeOf(key, value)
		c.metrics.Evict(EvictCapacity)
		c.helper.EntryRemoved(true, key, value, nil)
	}
	c.metrics.Size(c.lm.Len(), c.size)
}

func (c *Unsync[K, V]) safeSizeOf(key K, value V) int64 {
	w := c.helper.SizeOf(key, value)
	if w < 0 {
		panic(fmt.Sprintf("twotier/cache: negative size for %v", key))
	}
	return w
}
