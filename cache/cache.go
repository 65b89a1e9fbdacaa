package cache

import (
	"fmt"
	"sync"

	"github.com/IvanBrykalov/twotier/internal/util"
	"github.com/IvanBrykalov/twotier/lrumap"
)

// Cache is a size-bounded LRU cache, safe for concurrent use by multiple
// goroutines. The structural mutex covers the container and the running size
// and is held only for the duration of a structural mutation — never across
// the Helper's EntryAdded/EntryRemoved callbacks, which may therefore
// re-enter the cache.
type Cache[K comparable, V any] struct {
	mu   sync.Mutex
	lm   *lrumap.Container[K, V]
	size int64
	max  int64

	helper  Helper[K, V]
	metrics Metrics

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_         util.CacheLinePad
	hits      util.PaddedAtomicInt64
	misses    util.PaddedAtomicInt64
	evictions util.PaddedAtomicUint64
}

// Stats is a point-in-time snapshot of the hot counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions uint64
}

// New constructs a concurrent cache with the provided Options.
// It panics if MaxSize is not positive.
func New[K comparable, V any](opt Options[K, V]) *Cache[K, V] {
	opt.withDefaults()
	c := &Cache[K, V]{
		lm:      lrumap.New[K, V](opt.Timeout, opt.nowFunc()),
		max:     opt.MaxSize,
		helper:  opt.Helper,
		metrics: opt.Metrics,
	}
	// Expired entries are swept inside the structural lock, so only the
	// size accounting happens here; no user callback fires for expiry.
	c.lm.SetOnExpire(func(k K, v V) {
		c.size -= c.safeSizeOf(k, v)
		c.metrics.Evict(EvictTTL)
	})
	return c
}

// Get returns the value for key and a presence flag. A hit promotes the
// entry to most-recently-used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	v, ok := c.lm.Get(key)
	c.mu.Unlock()

	if ok {
		c.hits.Add(1)
		c.metrics.Hit()
	} else {
		c.misses.Add(1)
		c.metrics.Miss()
	}
	return v, ok
}

// Put stores value under key and returns the value it displaced, if any.
// The replacement's EntryRemoved and the new entry's EntryAdded fire before
// the trim, outside the structural lock. Re-putting the identical value only
// promotes the entry: no callbacks, no replacement reported.
func (c *Cache[K, V]) Put(key K, value V) (V, bool) {
	w := c.safeSizeOf(key, value)

	c.mu.Lock()
	c.size += w
	prev, outcome := c.lm.Put(key, value)
	if outcome != lrumap.PutInserted {
		c.size -= c.safeSizeOf(key, prev)
	}
	keep := c.lm.HeadRef()
	c.mu.Unlock()

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

	c.trim(c.maxSize(), keep, true)
	return prev, outcome == lrumap.PutReplaced
}

// Remove deletes key and returns the removed value. EntryRemoved fires with
// evicted=false and no new value.
func (c *Cache[K, V]) Remove(key K) (V, bool) {
	c.mu.Lock()
	prev, ok := c.lm.Remove(key)
	if ok {
		c.size -= c.safeSizeOf(key, prev)
	}
	c.publishSizeLocked()
	c.mu.Unlock()

	if ok {
		c.helper.EntryRemoved(false, key, prev, nil)
	}
	return prev, ok
}

// TrimToSize evicts least-recently-used entries until the running size is at
// or below limit. Pinned entries are put back and skipped; a bounded number
// of skips (the entry count when the trim started) is attempted, so a cache
// whose every entry is pinned can legitimately stay over capacity.
// limit = -1 evicts even zero-weight entries.
func (c *Cache[K, V]) TrimToSize(limit int64) {
	c.trim(limit, lrumap.NoRef, false)
}

// EvictAll removes every removable entry, invoking EntryRemoved for each.
func (c *Cache[K, V]) EvictAll() { c.TrimToSize(-1) }

// Resize sets a new maximum size and trims to it.
// It panics if maxSize is not positive.
func (c *Cache[K, V]) Resize(maxSize int64) {
	if maxSize <= 0 {
		panic("twotier/cache: maxSize must be > 0")
	}
	c.mu.Lock()
	c.max = maxSize
	c.mu.Unlock()
	c.TrimToSize(maxSize)
}

// Size returns the sum of the weights of resident entries.
func (c *Cache[K, V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// MaxSize returns the current capacity.
func (c *Cache[K, V]) MaxSize() int64 { return c.maxSize() }

// Len returns the number of resident entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lm.Len()
}

// Stats returns a snapshot of the hit/miss/eviction counters.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// trim is the eviction loop shared by Put, TrimToSize and Resize. When
// haveKeep is set, the entry identified by keep (the value just inserted by
// Put) is protected from the trim it triggered — matched by entry identity,
// not key. Candidates that are protected or pinned go back to the head.
func (c *Cache[K, V]) trim(limit int64, keep lrumap.Ref, haveKeep bool) {
	c.mu.Lock()
	count := c.lm.Len()
	c.mu.Unlock()

	skips := 0
	for {
		c.mu.Lock()
		if c.size < 0 || (c.lm.Len() == 0 && c.size != 0) {
			c.mu.Unlock()
			panic(fmt.Sprintf("twotier/cache: SizeOf reported inconsistent results (size=%d, entries=%d)", c.size, c.lm.Len()))
		}
		if c.size <= limit || skips == count {
			c.publishSizeLocked()
			c.mu.Unlock()
			return
		}
		key, value, ref, ok := c.lm.RemoveTail()
		if !ok {
			c.publishSizeLocked()
			c.mu.Unlock()
			return
		}
		if (haveKeep && ref == keep) || !c.helper.CanBeRemoved(key, value) {
			// Put it back at the head and move on. The re-put reuses the
			// slot just freed, so keep stays valid.
			c.lm.Put(key, value)
			if haveKeep && ref == keep {
				keep = c.lm.HeadRef()
			}
			skips++
			c.mu.Unlock()
			continue
		}
		c.size -= c.safeSizeOf(key, value)
		c.mu.Unlock()

		c.evictions.Add(1)
		c.metrics.Evict(EvictCapacity)
		c.helper.EntryRemoved(true, key, value, nil)
	}
}

func (c *Cache[K, V]) maxSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.max
}

func (c *Cache[K, V]) publishSizeLocked() {
	c.metrics.Size(c.lm.Len(), c.size)
}

func (c *Cache[K, V]) safeSizeOf(key K, value V) int64 {
	w := c.helper.SizeOf(key, value)
	if w < 0 {
		panic(fmt.Sprintf("twotier/cache: negative size for %v", key))
	}
	return w
}
