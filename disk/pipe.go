package disk

import "io"

// Pipe lifecycle, shared by ReadPipe and WritePipe:
//
//	p.Obtain()        // register with the gate, take the key lock
//	defer p.Release() // give both back
//	r, err := p.Open()
//	...
//	p.Close()
//
// Obtain is idempotent. Open after a Close is allowed (a fresh snapshot or
// editor); Open while the previous result is still open panics, as does
// Release with an open stream. Close without a prior Open is a no-op.
// A pipe is owned by one goroutine and is not safe for concurrent use.

// ReadPipe streams one committed value off the disk tier. While obtained it
// holds the key's lock in read mode, so concurrent readers of the same key
// proceed in parallel and writers wait.
type ReadPipe struct {
	c    *DiskCache
	key  string
	name string

	lk       *keyLock
	obtained bool
	snap     Snapshot
}

// Obtain takes the gate and the key's read lock. Idempotent.
func (p *ReadPipe) Obtain() {
	if p.obtained {
		return
	}
	p.lk = p.c.gate.acquire(p.key)
	p.lk.RLock()
	p.obtained = true
}

// Open returns a reader over the committed value. ErrMissing when there is
// none, ErrStoreUnavailable when the store is down.
func (p *ReadPipe) Open() (io.Reader, error) {
	if !p.obtained {
		panic("twotier/disk: pipe Open before Obtain")
	}
	if p.snap != nil {
		panic("twotier/disk: pipe Open with the previous stream still open")
	}
	st := p.c.store()
	if st == nil {
		return nil, ErrStoreUnavailable
	}
	snap, err := st.Get(p.name)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrMissing
	}
	p.snap = snap
	return snap, nil
}

// Close releases the snapshot returned by Open. No-op without one.
func (p *ReadPipe) Close() {
	if p.snap == nil {
		return
	}
	_ = p.snap.Close()
	p.snap = nil
}

// Release returns the key lock and leaves the gate. Idempotent; panics if
// the stream from Open is still open.
func (p *ReadPipe) Release() {
	if !p.obtained {
		return
	}
	if p.snap != nil {
		panic("twotier/disk: pipe released with an open stream")
	}
	p.lk.RUnlock()
	p.lk = nil
	p.obtained = false
	p.c.gate.release(p.key)
}

// WritePipe streams one value onto the disk tier. While obtained it holds
// the key's lock in write mode, excluding all other pipes on the key.
type WritePipe struct {
	c    *DiskCache
	key  string
	name string

	lk       *keyLock
	obtained bool
	ed       Editor
}

// Obtain takes the gate and the key's write lock. Idempotent.
func (p *WritePipe) Obtain() {
	if p.obtained {
		return
	}
	p.lk = p.c.gate.acquire(p.key)
	p.lk.Lock()
	p.obtained = true
}

// Open starts an edit and returns the writer. ErrEditInFlight when another
// editor holds the key, ErrStoreUnavailable when the store is down. Nothing
// becomes visible to readers until Close.
func (p *WritePipe) Open() (io.Writer, error) {
	if !p.obtained {
		panic("twotier/disk: pipe Open before Obtain")
	}
	if p.ed != nil {
		panic("twotier/disk: pipe Open with the previous stream still open")
	}
	st := p.c.store()
	if st == nil {
		return nil, ErrStoreUnavailable
	}
	ed, err := st.Edit(p.name)
	if err != nil {
		return nil, err
	}
	if ed == nil {
		return nil, ErrEditInFlight
	}
	p.ed = ed
	return ed, nil
}

// Close commits the edit, making the written value visible atomically.
// No-op without an open edit.
func (p *WritePipe) Close() error {
	if p.ed == nil {
		return nil
	}
	err := p.ed.Commit()
	p.ed = nil
	return err
}

// Cancel aborts the edit; no partial write becomes visible. No-op without
// an open edit.
func (p *WritePipe) Cancel() {
	if p.ed == nil {
		return
	}
	p.ed.Abort()
	p.ed = nil
}

// Release returns the key lock and leaves the gate. Idempotent; panics if
// the edit from Open was neither closed nor canceled.
func (p *WritePipe) Release() {
	if !p.obtained {
		return
	}
	if p.ed != nil {
		panic("twotier/disk: pipe released with an open stream")
	}
	p.lk.Unlock()
	p.lk = nil
	p.obtained = false
	p.c.gate.release(p.key)
}
