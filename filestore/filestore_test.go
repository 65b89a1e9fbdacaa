package filestore

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func put(t *testing.T, s *Store, name, value string) {
	t.Helper()
	ed, err := s.Edit(name)
	require.NoError(t, err)
	require.NotNil(t, ed)
	_, err = io.WriteString(ed, value)
	require.NoError(t, err)
	require.NoError(t, ed.Commit())
}

func get(t *testing.T, s *Store, name string) (string, bool) {
	t.Helper()
	snap, err := s.Get(name)
	require.NoError(t, err)
	if snap == nil {
		return "", false
	}
	defer snap.Close()
	b, err := io.ReadAll(snap)
	require.NoError(t, err)
	return string(b), true
}

func TestStore_RoundTrip(t *testing.T) {
	s, err := Open(t.TempDir(), 1<<20)
	require.NoError(t, err)

	_, ok := get(t, s, "a")
	require.False(t, ok)

	put(t, s, "a", "hello")
	v, ok := get(t, s, "a")
	require.True(t, ok)
	require.Equal(t, "hello", v)
	require.Equal(t, int64(5), s.Size())

	put(t, s, "a", "bye")
	v, _ = get(t, s, "a")
	require.Equal(t, "bye", v)
	require.Equal(t, int64(3), s.Size())

	require.NoError(t, s.Remove("a"))
	_, ok = get(t, s, "a")
	require.False(t, ok)
	require.Equal(t, int64(0), s.Size())
}

func TestStore_EditConflict(t *testing.T) {
	s, err := Open(t.TempDir(), 1<<20)
	require.NoError(t, err)

	ed1, err := s.Edit("a")
	require.NoError(t, err)
	require.NotNil(t, ed1)

	ed2, err := s.Edit("a")
	require.NoError(t, err)
	require.Nil(t, ed2, "second edit on the same name must be refused")

	ed1.Abort()
	ed3, err := s.Edit("a")
	require.NoError(t, err)
	require.NotNil(t, ed3, "abort must free the name for editing")
	ed3.Abort()
}

func TestStore_AbortLeavesNoTrace(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 1<<20)
	require.NoError(t, err)
	put(t, s, "a", "keep")

	ed, err := s.Edit("a")
	require.NoError(t, err)
	_, _ = io.WriteString(ed, "discard")
	ed.Abort()

	v, _ := get(t, s, "a")
	require.Equal(t, "keep", v)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1, "tmp file must be gone after abort")
}

// A snapshot opened before a replacement keeps reading the old bytes.
func TestStore_SnapshotIsolation(t *testing.T) {
	s, err := Open(t.TempDir(), 1<<20)
	require.NoError(t, err)
	put(t, s, "a", "old")

	snap, err := s.Get("a")
	require.NoError(t, err)
	require.NotNil(t, snap)
	defer snap.Close()

	put(t, s, "a", "new")

	b, err := io.ReadAll(snap)
	require.NoError(t, err)
	require.Equal(t, "old", string(b))
}

func TestStore_TrimsOldestOverCapacity(t *testing.T) {
	s, err := Open(t.TempDir(), 10)
	require.NoError(t, err)

	put(t, s, "old", "12345")
	// Make the modtime order unambiguous on coarse-grained filesystems.
	past := time.Now().Add(-time.Minute)
	require.NoError(t, os.Chtimes(s.dataPath("old"), past, past))

	put(t, s, "mid", "12345")
	require.Equal(t, int64(10), s.Size())

	put(t, s, "new", "123")
	_, ok := get(t, s, "old")
	require.False(t, ok, "oldest entry must be trimmed first")
	_, ok = get(t, s, "new")
	require.True(t, ok)
	require.LessOrEqual(t, s.Size(), int64(10))
}

func TestStore_ReopenRecoversState(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 1<<20)
	require.NoError(t, err)
	put(t, s, "a", "hello")
	put(t, s, "b", "hi")

	// Leave a stale tmp behind, as a crash mid-edit would.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.tmp"), []byte("partial"), 0o644))
	require.NoError(t, s.Close())

	s2, err := Open(dir, 1<<20)
	require.NoError(t, err)
	require.Equal(t, int64(7), s2.Size())
	v, ok := get(t, s2, "a")
	require.True(t, ok)
	require.Equal(t, "hello", v)
	_, ok = get(t, s2, "c")
	require.False(t, ok)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 2, "stale tmp must be discarded on reopen")
}

func TestStore_Delete(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, 1<<20)
	require.NoError(t, err)
	put(t, s, "a", "v")

	require.NoError(t, s.Delete())
	require.True(t, s.IsClosed())
	require.Equal(t, int64(0), s.Size())
	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}

func TestStore_ClosedOperationsFail(t *testing.T) {
	s, err := Open(t.TempDir(), 1<<20)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Get("a")
	require.ErrorIs(t, err, ErrClosed)
	_, err = s.Edit("a")
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, s.Remove("a"), ErrClosed)
	require.ErrorIs(t, s.Flush(), ErrClosed)
}
