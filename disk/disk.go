package disk

import (
	"io"
	"sync"
)

// Options configures a DiskCache beyond directory and capacity.
type Options struct {
	// Opener opens the backing store. Required; the twotier facade passes
	// filestore.Open by default.
	Opener Opener
}

// DiskCache is the persistent tier: a byte-capacity-bounded store of named
// streams with per-key reader/writer pipes and whole-store maintenance
// operations. Safe for concurrent use.
//
// Store failures degrade softly. A cache whose store failed to open (or was
// torn down by a failed Clear) is invalid: reads miss, writes are dropped,
// and only the next Clear retries the open.
type DiskCache struct {
	dir      string
	capacity int64
	opener   Opener
	gate     *gate

	mu sync.Mutex
	st Store // nil while invalid
}

// New opens the disk tier rooted at dir. The directory and capacity are
// configuration, so a bad value panics; an I/O failure opening the store
// does not, it just leaves the cache invalid.
func New(dir string, capacity int64, opt Options) *DiskCache {
	if dir == "" {
		panic("twotier/disk: dir must not be empty")
	}
	if capacity <= 0 {
		panic("twotier/disk: capacity must be > 0")
	}
	if opt.Opener == nil {
		panic("twotier/disk: Options.Opener must be set")
	}
	c := &DiskCache{
		dir:      dir,
		capacity: capacity,
		opener:   opt.Opener,
		gate:     newGate(),
	}
	if st, err := opt.Opener(dir, capacity); err == nil {
		c.st = st
	}
	return c
}

func (c *DiskCache) store() Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

func (c *DiskCache) setStore(st Store) {
	c.mu.Lock()
	c.st = st
	c.mu.Unlock()
}

// IsValid reports whether the backing store is open.
func (c *DiskCache) IsValid() bool { return c.store() != nil }

// ReadPipe returns a pipe over key's committed value, or nil when the key is
// absent or the store is invalid. The presence check and the later Open are
// separate steps; a concurrent Remove in between surfaces as ErrMissing.
func (c *DiskCache) ReadPipe(key string) *ReadPipe {
	if !c.Contain(key) {
		return nil
	}
	return c.newReadPipe(key)
}

// WritePipe returns a pipe for writing key's value.
func (c *DiskCache) WritePipe(key string) *WritePipe {
	return &WritePipe{c: c, key: key, name: diskName(key)}
}

func (c *DiskCache) newReadPipe(key string) *ReadPipe {
	return &ReadPipe{c: c, key: key, name: diskName(key)}
}

// Contain reports whether a committed value exists for key.
func (c *DiskCache) Contain(key string) bool {
	p := c.newReadPipe(key)
	p.Obtain()
	defer p.Release()
	if _, err := p.Open(); err != nil {
		return false
	}
	p.Close()
	return true
}

// Put copies r into key's value through a write pipe, committing on success
// and aborting on any error. It reports whether the value was committed;
// an in-flight edit or an invalid store yields false.
func (c *DiskCache) Put(key string, r io.Reader) bool {
	p := c.WritePipe(key)
	p.Obtain()
	defer p.Release()

	w, err := p.Open()
	if err != nil {
		return false
	}
	if _, err := io.Copy(w, r); err != nil {
		p.Cancel()
		return false
	}
	return p.Close() == nil
}

// Get copies key's committed value into w through a read pipe, mirroring
// Put. It reports whether a complete value was copied; a missing key, an
// invalid store or a copy error yields false. Bytes already copied before
// an error stay in w.
func (c *DiskCache) Get(key string, w io.Writer) bool {
	p := c.newReadPipe(key)
	p.Obtain()
	defer p.Release()

	r, err := p.Open()
	if err != nil {
		return false
	}
	defer p.Close()

	_, err = io.Copy(w, r)
	return err == nil
}

// Remove deletes key's committed value. It reports whether the store call
// succeeded; removing an absent key succeeds.
func (c *DiskCache) Remove(key string) bool {
	lk := c.gate.acquire(key)
	lk.Lock()
	defer func() {
		lk.Unlock()
		c.gate.release(key)
	}()

	st := c.store()
	if st == nil {
		return false
	}
	return st.Remove(diskName(key)) == nil
}

// MaxSize returns the configured byte capacity of the backing store.
func (c *DiskCache) MaxSize() int64 { return c.capacity }

// Size returns the total committed bytes, or -1 when the store is invalid.
func (c *DiskCache) Size() int64 {
	st := c.store()
	if st == nil {
		return -1
	}
	return st.Size()
}

// Flush drains all key traffic and forces the store to stable storage.
func (c *DiskCache) Flush() bool {
	c.gate.beginExclusive()
	defer c.gate.endExclusive()

	st := c.store()
	if st == nil {
		return false
	}
	return st.Flush() == nil
}

// Clear drains all key traffic, deletes the store from disk and reopens it.
// Clear is also the recovery path: it runs even when the cache is invalid
// and a successful reopen makes it valid again. A failed reopen leaves it
// invalid and returns false.
func (c *DiskCache) Clear() bool {
	c.gate.beginExclusive()
	defer c.gate.endExclusive()

	if st := c.store(); st != nil {
		_ = st.Delete()
	}
	st, err := c.opener(c.dir, c.capacity)
	if err != nil {
		c.setStore(nil)
		return false
	}
	c.setStore(st)
	return true
}

// Close drains all key traffic and closes the store. The cache is invalid
// afterwards; Clear would reopen it.
func (c *DiskCache) Close() error {
	c.gate.beginExclusive()
	defer c.gate.endExclusive()

	c.mu.Lock()
	st := c.st
	c.st = nil
	c.mu.Unlock()

	if st == nil {
		return nil
	}
	return st.Close()
}
