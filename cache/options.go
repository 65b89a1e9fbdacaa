package cache

import "time"

// EvictReason explains why an entry left the cache without an explicit
// Remove or replacement.
type EvictReason int

const (
	// EvictCapacity — removed by a trim to satisfy the size limit.
	EvictCapacity EvictReason = iota
	// EvictTTL — expired by timeout (swept lazily on access).
	EvictTTL
)

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int, size int64)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Helper supplies the per-entry capabilities of a cache: weighing, pinning
// and lifecycle callbacks. Supply one at construction; embed Base to pick up
// the defaults and override only what you need.
type Helper[K comparable, V any] interface {
	// SizeOf returns the weight of an entry in user-defined units. It must
	// be non-negative and must not change while the entry is resident.
	// A negative result is a caller bug and panics; it is never clamped.
	SizeOf(key K, value V) int64

	// CanBeRemoved reports whether the entry may be evicted right now.
	// Returning false pins the entry: a trim puts it back and moves on.
	CanBeRemoved(key K, value V) bool

	// EntryAdded fires after an insertion, outside the structural lock.
	EntryAdded(key K, value V)

	// EntryRemoved fires for every removal, outside the structural lock so
	// it may re-enter the cache:
	//   - explicit Remove:       evicted=false, newValue=nil
	//   - replacement via Put:   evicted=false, newValue=&new
	//   - capacity eviction:     evicted=true,  newValue=nil
	EntryRemoved(evicted bool, key K, oldValue V, newValue *V)
}

// Base implements Helper with defaults: every entry weighs 1, everything is
// removable, callbacks do nothing. Embed it and override selectively.
type Base[K comparable, V any] struct{}

func (Base[K, V]) SizeOf(K, V) int64           { return 1 }
func (Base[K, V]) CanBeRemoved(K, V) bool      { return true }
func (Base[K, V]) EntryAdded(K, V)             {}
func (Base[K, V]) EntryRemoved(bool, K, V, *V) {}

var _ Helper[string, int] = Base[string, int]{}

// Options configures a cache. MaxSize must be positive; everything else has
// a safe zero value:
//   - nil Helper  => Base (entry-count semantics)
//   - nil Metrics => NoopMetrics
//   - Timeout <= 0 disables expiration
//   - nil Clock   => time.Now
type Options[K comparable, V any] struct {
	// MaxSize is the capacity in the units reported by Helper.SizeOf.
	MaxSize int64

	// Timeout expires entries this long after their last Put. Expiration is
	// realized lazily on the next access to any key; there are no timers.
	Timeout time.Duration

	Helper  Helper[K, V]
	Metrics Metrics

	// Clock overrides the time source (tests). Nil => time.Now().
	Clock Clock
}

func (o *Options[K, V]) withDefaults() {
	if o.MaxSize <= 0 {
		panic("twotier/cache: MaxSize must be > 0")
	}
	if o.Helper == nil {
		o.Helper = Base[K, V]{}
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
}

func (o *Options[K, V]) nowFunc() func() int64 {
	if o.Clock == nil {
		return nil
	}
	clk := o.Clock
	return clk.NowUnixNano
}
