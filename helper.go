package twotier

import (
	"io"
	"time"

	"github.com/IvanBrykalov/twotier/cache"
	"github.com/IvanBrykalov/twotier/disk"
)

// Helper adapts user values to the two tiers: weighing for the memory tier
// and (de)serialization for the disk tier. Embed Base to pick up defaults
// and implement Read and Write when a disk tier is configured.
type Helper[V any] interface {
	// SizeOf returns the weight of a value in the memory tier's units.
	// Must be non-negative; see cache.Helper.SizeOf.
	SizeOf(key string, value V) int64

	// Read deserializes a value from an obtained read pipe. It must call
	// p.Open (and may Close) but never Release; the cache owns the pipe's
	// lifecycle around the call.
	Read(p *disk.ReadPipe) (V, error)

	// Write serializes value to w, the open stream of a write pipe. A
	// returned error cancels the write; nothing partial becomes visible.
	Write(w io.Writer, value V) error

	// EntryRemoved relays the memory tier's removal callback; see
	// cache.Helper.EntryRemoved. Disk entries are unaffected.
	EntryRemoved(evicted bool, key string, oldValue V, newValue *V)
}

// Base provides Helper defaults: every value weighs 1, removal is ignored,
// and the disk-tier hooks fail until overridden. Embed it and implement
// Read and Write when using a disk tier.
type Base[V any] struct{}

func (Base[V]) SizeOf(string, V) int64 { return 1 }

func (Base[V]) Read(*disk.ReadPipe) (V, error) {
	panic("twotier: Helper.Read not implemented; override it to use a disk tier")
}

func (Base[V]) Write(io.Writer, V) error {
	panic("twotier: Helper.Write not implemented; override it to use a disk tier")
}

func (Base[V]) EntryRemoved(bool, string, V, *V) {}

// Options configures a two-tier cache. At least one tier is required:
// MemoryCapacity > 0 enables the memory tier, a nonempty DiskDir enables
// the disk tier (then DiskCapacity must be positive too).
type Options[V any] struct {
	// MemoryCapacity bounds the memory tier in Helper.SizeOf units.
	// Zero disables the tier.
	MemoryCapacity int64

	// MemoryTimeout expires memory entries this long after their last Put.
	// Zero disables expiration. Disk entries never expire.
	MemoryTimeout time.Duration

	// DiskDir roots the disk tier's store. Empty disables the tier.
	DiskDir string

	// DiskCapacity bounds the disk tier in bytes.
	DiskCapacity int64

	// Helper is required.
	Helper Helper[V]

	Metrics cache.Metrics
	Clock   cache.Clock

	// StoreOpener overrides the disk tier's backing store.
	// Nil => filestore.Open.
	StoreOpener disk.Opener
}

// memHelper bridges Helper to the memory tier's cache.Helper.
type memHelper[V any] struct {
	cache.Base[string, V]
	h Helper[V]
}

func (m memHelper[V]) SizeOf(key string, value V) int64 { return m.h.SizeOf(key, value) }

func (m memHelper[V]) EntryRemoved(evicted bool, key string, oldValue V, newValue *V) {
	m.h.EntryRemoved(evicted, key, oldValue, newValue)
}
