package disk

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// fakeStore is an in-memory Store for exercising the cache and pipes without
// touching the filesystem. Knobs simulate collaborator failures.
type fakeStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	editing map[string]bool
	closed  bool
	deleted bool
	flushes int

	failGet  bool
	failEdit bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data:    make(map[string][]byte),
		editing: make(map[string]bool),
	}
}

var errFakeIO = errors.New("fake store I/O failure")

func (s *fakeStore) Get(name string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet {
		return nil, errFakeIO
	}
	b, ok := s.data[name]
	if !ok {
		return nil, nil
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), b...))), nil
}

func (s *fakeStore) Edit(name string) (Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failEdit {
		return nil, errFakeIO
	}
	if s.editing[name] {
		return nil, nil
	}
	s.editing[name] = true
	return &fakeEditor{s: s, name: name}, nil
}

func (s *fakeStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}

func (s *fakeStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]byte)
	s.deleted = true
	s.closed = true
	return nil
}

func (s *fakeStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *fakeStore) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, b := range s.data {
		n += int64(len(b))
	}
	return n
}

func (s *fakeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStore) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeStore) get(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[name]
	return b, ok
}

type fakeEditor struct {
	s    *fakeStore
	name string
	buf  bytes.Buffer
	done bool
}

func (e *fakeEditor) Write(p []byte) (int, error) { return e.buf.Write(p) }

func (e *fakeEditor) Commit() error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if !e.done {
		e.s.data[e.name] = append([]byte(nil), e.buf.Bytes()...)
		delete(e.s.editing, e.name)
		e.done = true
	}
	return nil
}

func (e *fakeEditor) Abort() {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if !e.done {
		delete(e.s.editing, e.name)
		e.done = true
	}
}

// newFakeCache wires a DiskCache to a fresh fakeStore.
func newFakeCache() (*DiskCache, *fakeStore) {
	fs := newFakeStore()
	c := New("/fake", 1<<20, Options{
		Opener: func(string, int64) (Store, error) { return fs, nil },
	})
	return c, fs
}
