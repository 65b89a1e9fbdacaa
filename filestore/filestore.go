// Package filestore is the default backing store of the disk tier: one file
// per entry under a single directory, bounded by total bytes.
//
// An entry named n lives in n.dat. Edits write n.tmp and rename it over
// n.dat on commit, so readers only ever see complete values; a snapshot
// taken before a commit keeps reading the old bytes through its open file.
// After each commit the store drops oldest-modified entries until the total
// is back under capacity.
package filestore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/IvanBrykalov/twotier/disk"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("twotier/filestore: store is closed")

const (
	dataSuffix = ".dat"
	tmpSuffix  = ".tmp"
)

// Store implements disk.Store over a directory of files.
type Store struct {
	dir      string
	capacity int64

	mu      sync.Mutex
	size    int64
	editing map[string]bool
	closed  bool
}

var _ disk.Store = (*Store)(nil)

// Open creates or reopens a store rooted at dir. Leftover .tmp files from a
// crashed edit are discarded; committed entries are kept and counted.
func Open(dir string, capacity int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{
		dir:      dir,
		capacity: capacity,
		editing:  make(map[string]bool),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch {
		case strings.HasSuffix(e.Name(), tmpSuffix):
			_ = os.Remove(filepath.Join(dir, e.Name()))
		case strings.HasSuffix(e.Name(), dataSuffix):
			if info, err := e.Info(); err == nil {
				s.size += info.Size()
			}
		}
	}
	s.trimLocked()
	return s, nil
}

// Get returns a snapshot of the committed value for name, or (nil, nil)
// when absent. The snapshot stays readable even if the entry is replaced
// or removed while open.
func (s *Store) Get(name string) (disk.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	f, err := os.Open(s.dataPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Edit starts a write for name, or returns (nil, nil) while another edit
// for the same name is in flight.
func (s *Store) Edit(name string) (disk.Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if s.editing[name] {
		return nil, nil
	}

	f, err := os.Create(s.tmpPath(name))
	if err != nil {
		return nil, err
	}
	s.editing[name] = true
	return &editor{s: s, name: name, f: f}, nil
}

// Remove deletes the committed value for name; absent names are fine.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.removeLocked(name)
}

func (s *Store) removeLocked(name string) error {
	info, err := os.Stat(s.dataPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(s.dataPath(name)); err != nil {
		return err
	}
	s.size -= info.Size()
	return nil
}

// Delete removes the store's directory entirely and closes the store.
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.size = 0
	return os.RemoveAll(s.dir)
}

// Flush is a no-op: commits rename synchronously, so there is no buffered
// state beyond what the OS already persists.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Size returns the total bytes of committed entries.
func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Close marks the store closed. Files on disk are left as they are.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// IsClosed reports whether Close or Delete was called.
func (s *Store) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) dataPath(name string) string { return filepath.Join(s.dir, name+dataSuffix) }
func (s *Store) tmpPath(name string) string  { return filepath.Join(s.dir, name+tmpSuffix) }

// trimLocked drops oldest-modified entries until size <= capacity.
func (s *Store) trimLocked() {
	if s.size <= s.capacity {
		return
	}

	type entry struct {
		name string
		mod  int64
	}
	var victims []entry
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, e := range dirEntries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), dataSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		victims = append(victims, entry{
			name: strings.TrimSuffix(e.Name(), dataSuffix),
			mod:  info.ModTime().UnixNano(),
		})
	}
	sort.Slice(victims, func(i, j int) bool { return victims[i].mod < victims[j].mod })

	for _, v := range victims {
		if s.size <= s.capacity {
			return
		}
		_ = s.removeLocked(v.name)
	}
}

type editor struct {
	s    *Store
	name string
	f    *os.File
	done bool
}

func (e *editor) Write(p []byte) (int, error) { return e.f.Write(p) }

// Commit closes the temp file, renames it over the entry and trims the
// store back under capacity.
func (e *editor) Commit() error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if e.done {
		return nil
	}
	e.finishLocked()

	if err := e.f.Close(); err != nil {
		_ = os.Remove(e.s.tmpPath(e.name))
		return err
	}
	info, err := os.Stat(e.s.tmpPath(e.name))
	if err != nil {
		return err
	}

	var prev int64
	if old, err := os.Stat(e.s.dataPath(e.name)); err == nil {
		prev = old.Size()
	}
	if err := os.Rename(e.s.tmpPath(e.name), e.s.dataPath(e.name)); err != nil {
		_ = os.Remove(e.s.tmpPath(e.name))
		return err
	}
	e.s.size += info.Size() - prev
	e.s.trimLocked()
	return nil
}

// Abort discards everything written.
func (e *editor) Abort() {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	if e.done {
		return
	}
	e.finishLocked()
	_ = e.f.Close()
	_ = os.Remove(e.s.tmpPath(e.name))
}

func (e *editor) finishLocked() {
	e.done = true
	delete(e.s.editing, e.name)
}
