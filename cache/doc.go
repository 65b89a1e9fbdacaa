// Package cache implements the size-bounded memory tier: an LRU cache with
// weight-based capacity accounting, optional lazy expiration, entry pinning
// and lifecycle callbacks.
//
// # Design
//
//   - Storage: a lrumap.Container holds the entries — a hash map over an
//     arena-backed intrusive list. All operations are O(1) expected.
//
//   - Capacity: Helper.SizeOf assigns each entry a non-negative weight and
//     the cache keeps the running sum at or below MaxSize by evicting from
//     the tail. A negative weight, a negative running size or a nonzero size
//     on an empty cache are caller bugs and panic.
//
//   - Pinning: Helper.CanBeRemoved lets callers veto the eviction of an
//     entry. A vetoed candidate goes back to the head and the trim loop
//     tries the next tail, giving up after as many skips as there were
//     entries when the trim started. A fully pinned cache can therefore sit
//     over capacity; that is accepted, not corrected.
//
//   - Callbacks: EntryAdded and EntryRemoved always fire outside the
//     structural lock, so hooks may re-enter the cache. EntryRemoved
//     distinguishes explicit removal, replacement by Put and capacity
//     eviction.
//
//   - Expiration: with a positive Timeout, entries expire that long after
//     their last Put. Expiry is swept lazily on the next access to any key;
//     no timers run and no EntryRemoved fires for expired entries.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size signals;
//     NoopMetrics is the default and the metrics/prom package exports them
//     to Prometheus.
//
// Two interchangeable strategies implement the same contract: Cache guards
// each structural mutation with a single mutex and is safe for concurrent
// use; Unsync leaves synchronization to the caller.
//
// # Basic usage
//
//	c := cache.New[string, []byte](cache.Options[string, []byte]{MaxSize: 1 << 20})
//	c.Put("a", data)
//	if v, ok := c.Get("a"); ok {
//	    _ = v
//	}
//
// With byte weights and an eviction hook:
//
//	type helper struct{ cache.Base[string, []byte] }
//
//	func (helper) SizeOf(_ string, v []byte) int64 { return int64(len(v)) }
//	func (helper) EntryRemoved(evicted bool, k string, old []byte, _ *[]byte) {
//	    // release resources tied to old
//	}
//
//	c := cache.New[string, []byte](cache.Options[string, []byte]{
//	    MaxSize: 64 << 20,
//	    Helper:  helper{},
//	})
package cache
