package disk

import "io"

// Store is the persistence backend of the disk tier. Implementations must be
// safe for concurrent use; the cache serializes per-key access above this
// interface but whole-store calls (Size, Flush) may overlap entry I/O.
//
// The filestore package provides the default implementation.
type Store interface {
	// Get returns a read snapshot of the committed value for name, or
	// (nil, nil) when no committed value exists.
	Get(name string) (Snapshot, error)

	// Edit starts a write for name and returns (nil, nil) when another edit
	// for the same name is still in flight.
	Edit(name string) (Editor, error)

	// Remove deletes the committed value for name, if any.
	Remove(name string) error

	// Delete removes the entire store from disk and closes it.
	Delete() error

	// Flush forces buffered state to stable storage.
	Flush() error

	// Size returns the total size of committed values in bytes.
	Size() int64

	Close() error
	IsClosed() bool
}

// Snapshot is a read handle over one committed value. Reading continues to
// see the value as of Get even if it is replaced or removed concurrently.
type Snapshot interface {
	io.ReadCloser
}

// Editor is a write handle for one value. Nothing is visible to readers
// until Commit; Abort discards everything written.
type Editor interface {
	io.Writer
	Commit() error
	Abort()
}

// Opener opens (or creates) a Store rooted at dir with the given byte
// capacity. DiskCache calls it at construction and again on Clear.
type Opener func(dir string, capacity int64) (Store, error)
