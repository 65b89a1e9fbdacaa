// Package singleflight coalesces concurrent lookups for the same key so the
// supplied function runs at most once; every concurrent caller shares its
// result. The two-tier facade uses it so that a burst of misses on one key
// triggers a single disk read and deserialization.
//
// There is no cancellation here: lock waits at this layer are uninterruptible
// by design, and followers simply block until the leader publishes.
package singleflight

import "sync"

// Group coalesces calls per key. The zero value is ready to use.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done chan struct{} // closed when val/ok are published
	val  V
	ok   bool
}

// Do runs fn once for key. Concurrent callers with the same key block until
// the leader finishes and then share its result. Publishing happens-before
// close(done), so followers observe the final values.
func (g *Group[K, V]) Do(key K, fn func() (V, bool)) (V, bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		g.mu.Unlock()
		<-c.done
		return c.val, c.ok
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	c.val, c.ok = fn()
	close(c.done)

	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()

	return c.val, c.ok
}
