package disk

import "sync"

// The gate arbitrates between per-key pipe traffic and whole-store exclusive
// operations (Flush, Clear, Close). Key traffic shares the gate; an exclusive
// operation waits for all keys to drain and, while queued, blocks newcomers
// so a steady stream of pipes cannot starve it.
//
// Lock waits are uninterruptible; there is no context plumbing at this layer.

type gateState int

const (
	gateIdle gateState = iota
	gateInUse
	gateExclusive
)

// keyLock serializes pipes on one key: readers share, writers exclude.
// refs counts pipes that obtained it and have not released yet.
type keyLock struct {
	sync.RWMutex
	refs int
}

// lockPoolCap bounds how many spare key locks are kept for reuse.
const lockPoolCap = 5

type gate struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state gateState

	// pending counts exclusive operations waiting for the store to drain.
	// acquire blocks while it is nonzero so queued exclusives make progress.
	pending int

	locks map[string]*keyLock
	pool  []*keyLock
}

func newGate() *gate {
	g := &gate{locks: make(map[string]*keyLock)}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// acquire registers key traffic and returns the key's lock. The caller must
// take the lock in read or write mode itself and call release when done.
func (g *gate) acquire(key string) *keyLock {
	g.mu.Lock()
	defer g.mu.Unlock()

	for g.state == gateExclusive || g.pending > 0 {
		g.cond.Wait()
	}
	g.state = gateInUse

	l := g.locks[key]
	if l == nil {
		if n := len(g.pool); n > 0 {
			l = g.pool[n-1]
			g.pool[n-1] = nil
			g.pool = g.pool[:n-1]
		} else {
			l = new(keyLock)
		}
		g.locks[key] = l
	}
	l.refs++
	return l
}

// release drops one reference on key. The last reference retires the lock to
// the pool; the last key returns the gate to idle and wakes waiters.
func (g *gate) release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	l := g.locks[key]
	if l == nil {
		panic("twotier/disk: release without matching acquire for key " + key)
	}
	l.refs--
	if l.refs > 0 {
		return
	}

	delete(g.locks, key)
	if len(g.pool) < lockPoolCap {
		g.pool = append(g.pool, l)
	}
	if len(g.locks) == 0 {
		g.state = gateIdle
		g.cond.Broadcast()
	}
}

// beginExclusive waits for all key traffic to drain and takes the store for
// a whole-store operation. Store I/O happens after it returns, outside g.mu.
func (g *gate) beginExclusive() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending++
	for g.state != gateIdle {
		g.cond.Wait()
	}
	g.pending--
	g.state = gateExclusive
}

func (g *gate) endExclusive() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != gateExclusive {
		panic("twotier/disk: endExclusive without beginExclusive")
	}
	g.state = gateIdle
	g.cond.Broadcast()
}
