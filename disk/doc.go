// Package disk implements the persistent tier: named byte streams in a
// capacity-bounded Store, accessed through transactional pipes.
//
// # Concurrency model
//
// Two layers of locking protect the store:
//
//   - A per-key reader/writer lock serializes pipes on one key: readers
//     share it, writers exclude everything. Locks are created on demand,
//     refcounted, and recycled through a small pool.
//
//   - A whole-store gate arbitrates between key traffic and maintenance.
//     Flush, Clear and Close wait for every key to drain; while one is
//     queued, new pipes block, so maintenance cannot be starved.
//
// # Pipes
//
// A pipe moves through Obtain, Open, Close, Release. Obtain takes the locks;
// Open produces the stream (a snapshot for reads, an editor for writes);
// Close ends the stream (committing, for writes); Release gives the locks
// back. A WritePipe's Cancel aborts instead of committing, leaving no
// partial value visible. Misordered calls are caller bugs and panic; see the
// lifecycle comment in pipe.go.
//
// # Failure model
//
// The store is a collaborator behind the Store interface and may fail to
// open or die at runtime. The cache then degrades instead of erroring:
// reads miss, writes drop, Size reports -1. Clear retries the open and is
// the only recovery path.
package disk
