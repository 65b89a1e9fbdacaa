package twotier

import (
	"io"

	"github.com/IvanBrykalov/twotier/cache"
	"github.com/IvanBrykalov/twotier/disk"
	"github.com/IvanBrykalov/twotier/filestore"
	"github.com/IvanBrykalov/twotier/internal/singleflight"
)

// Cache is the two-tier facade: a fast memory tier in front of a persistent
// disk tier, either of which may be absent. Get reads through (memory, then
// disk, promoting disk hits); Put writes through to both. Safe for
// concurrent use.
type Cache[V any] struct {
	mem    *cache.Cache[string, V] // nil when the tier is absent
	dsk    *disk.DiskCache         // nil when the tier is absent
	helper Helper[V]
	flight singleflight.Group[string, V]
}

// New constructs a cache from Options. Configuration errors panic: no tier
// enabled, nil Helper, or a disk dir without a positive capacity.
func New[V any](opt Options[V]) *Cache[V] {
	if opt.Helper == nil {
		panic("twotier: Options.Helper must be set")
	}
	if opt.MemoryCapacity <= 0 && opt.DiskDir == "" {
		panic("twotier: at least one tier must be enabled")
	}

	c := &Cache[V]{helper: opt.Helper}
	if opt.MemoryCapacity > 0 {
		c.mem = cache.New[string, V](cache.Options[string, V]{
			MaxSize: opt.MemoryCapacity,
			Timeout: opt.MemoryTimeout,
			Helper:  memHelper[V]{h: opt.Helper},
			Metrics: opt.Metrics,
			Clock:   opt.Clock,
		})
	}
	if opt.DiskDir != "" {
		opener := opt.StoreOpener
		if opener == nil {
			opener = func(dir string, capacity int64) (disk.Store, error) {
				return filestore.Open(dir, capacity)
			}
		}
		c.dsk = disk.New(opt.DiskDir, opt.DiskCapacity, disk.Options{Opener: opener})
	}
	return c
}

// Get returns the value for key from the first tier that has it. A disk hit
// is deserialized once per concurrent burst (coalesced per key) and promoted
// to the memory tier.
func (c *Cache[V]) Get(key string) (V, bool) {
	if v, ok := c.GetFromMemory(key); ok {
		return v, true
	}
	if c.dsk == nil {
		var zero V
		return zero, false
	}
	return c.flight.Do(key, func() (V, bool) {
		v, ok := c.readFromDisk(key)
		if ok && c.mem != nil {
			c.mem.Put(key, v)
		}
		return v, ok
	})
}

// GetFromMemory returns key's value from the memory tier only.
func (c *Cache[V]) GetFromMemory(key string) (V, bool) {
	if c.mem == nil {
		var zero V
		return zero, false
	}
	return c.mem.Get(key)
}

// GetFromDisk returns key's value from the disk tier only, without
// promoting it to memory.
func (c *Cache[V]) GetFromDisk(key string) (V, bool) {
	if c.dsk == nil {
		var zero V
		return zero, false
	}
	return c.readFromDisk(key)
}

func (c *Cache[V]) readFromDisk(key string) (V, bool) {
	var zero V
	p := c.dsk.ReadPipe(key)
	if p == nil {
		return zero, false
	}
	p.Obtain()
	defer func() {
		p.Close()
		p.Release()
	}()

	v, err := c.helper.Read(p)
	if err != nil {
		return zero, false
	}
	return v, true
}

// Put stores value in every configured tier.
func (c *Cache[V]) Put(key string, value V) {
	c.PutToMemory(key, value)
	c.PutToDisk(key, value)
}

// PutToMemory stores value in the memory tier. False when the tier is
// absent.
func (c *Cache[V]) PutToMemory(key string, value V) bool {
	if c.mem == nil {
		return false
	}
	c.mem.Put(key, value)
	return true
}

// PutToDisk serializes value through Helper.Write into the disk tier. False
// when the tier is absent, the store is down, an edit is in flight or the
// serialization fails; a failed write leaves no partial value.
func (c *Cache[V]) PutToDisk(key string, value V) bool {
	if c.dsk == nil {
		return false
	}
	p := c.dsk.WritePipe(key)
	p.Obtain()
	defer p.Release()

	w, err := p.Open()
	if err != nil {
		return false
	}
	if err := c.helper.Write(w, value); err != nil {
		p.Cancel()
		return false
	}
	return p.Close() == nil
}

// PutRawToDisk streams r into the disk tier as key's value, bypassing
// Helper.Write. The memory tier is left untouched.
func (c *Cache[V]) PutRawToDisk(key string, r io.Reader) bool {
	if c.dsk == nil {
		return false
	}
	return c.dsk.Put(key, r)
}

// PullRawFromDisk streams key's disk value into w, bypassing Helper.Read.
// The memory tier is not consulted and no promotion happens. False when the
// tier is absent, the key is missing or the copy fails.
func (c *Cache[V]) PullRawFromDisk(key string, w io.Writer) bool {
	if c.dsk == nil {
		return false
	}
	return c.dsk.Get(key, w)
}

// Remove deletes key from every configured tier.
func (c *Cache[V]) Remove(key string) {
	c.RemoveFromMemory(key)
	c.RemoveFromDisk(key)
}

// RemoveFromMemory deletes key from the memory tier only.
func (c *Cache[V]) RemoveFromMemory(key string) bool {
	if c.mem == nil {
		return false
	}
	_, ok := c.mem.Remove(key)
	return ok
}

// RemoveFromDisk deletes key from the disk tier only.
func (c *Cache[V]) RemoveFromDisk(key string) bool {
	if c.dsk == nil {
		return false
	}
	return c.dsk.Remove(key)
}

// ReadPipe returns a raw read pipe over key's disk value, bypassing
// Helper.Read. Nil when the disk tier is absent or the key has no value.
// The caller drives the full pipe lifecycle.
func (c *Cache[V]) ReadPipe(key string) *disk.ReadPipe {
	if c.dsk == nil {
		return nil
	}
	return c.dsk.ReadPipe(key)
}

// WritePipe returns a raw write pipe for key's disk value, bypassing
// Helper.Write. Nil when the disk tier is absent. The caller drives the
// full pipe lifecycle.
func (c *Cache[V]) WritePipe(key string) *disk.WritePipe {
	if c.dsk == nil {
		return nil
	}
	return c.dsk.WritePipe(key)
}

// ClearMemory evicts every removable entry from the memory tier.
func (c *Cache[V]) ClearMemory() {
	if c.mem != nil {
		c.mem.EvictAll()
	}
}

// ClearDisk deletes the disk tier's store and reopens it; this is also the
// recovery path for an invalid disk tier. False when the tier is absent or
// the reopen failed.
func (c *Cache[V]) ClearDisk() bool {
	if c.dsk == nil {
		return false
	}
	return c.dsk.Clear()
}

// Clear empties every configured tier.
func (c *Cache[V]) Clear() {
	c.ClearMemory()
	c.ClearDisk()
}

// Flush forces the disk tier to stable storage.
func (c *Cache[V]) Flush() bool {
	if c.dsk == nil {
		return false
	}
	return c.dsk.Flush()
}

// ResizeMemory changes the memory tier's capacity and trims to it. No-op
// when the tier is absent; panics on a non-positive size.
func (c *Cache[V]) ResizeMemory(maxSize int64) {
	if c.mem != nil {
		c.mem.Resize(maxSize)
	}
}

// MemorySize returns the memory tier's current size, or -1 when absent.
func (c *Cache[V]) MemorySize() int64 {
	if c.mem == nil {
		return -1
	}
	return c.mem.Size()
}

// DiskSize returns the disk tier's committed bytes, -1 when the tier is
// absent or its store is invalid.
func (c *Cache[V]) DiskSize() int64 {
	if c.dsk == nil {
		return -1
	}
	return c.dsk.Size()
}

// MemoryMaxSize returns the memory tier's capacity, or -1 when absent.
func (c *Cache[V]) MemoryMaxSize() int64 {
	if c.mem == nil {
		return -1
	}
	return c.mem.MaxSize()
}

// DiskMaxSize returns the disk tier's byte capacity, or -1 when absent.
func (c *Cache[V]) DiskMaxSize() int64 {
	if c.dsk == nil {
		return -1
	}
	return c.dsk.MaxSize()
}

// HasMemoryCache reports whether the memory tier is configured.
func (c *Cache[V]) HasMemoryCache() bool { return c.mem != nil }

// HasDiskCache reports whether the disk tier is configured.
func (c *Cache[V]) HasDiskCache() bool { return c.dsk != nil }

// Memory exposes the memory tier, nil when absent. Useful for Stats.
func (c *Cache[V]) Memory() *cache.Cache[string, V] { return c.mem }

// Close closes the disk tier's store. Memory entries stay usable.
func (c *Cache[V]) Close() error {
	if c.dsk == nil {
		return nil
	}
	return c.dsk.Close()
}
