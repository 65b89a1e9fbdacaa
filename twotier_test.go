package twotier

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/twotier/disk"
)

// stringHelper round-trips string values through the disk tier and counts
// deserializations.
type stringHelper struct {
	Base[string]
	reads atomic.Int64

	// blockReads, when set, makes Read wait until the channel is closed.
	blockReads chan struct{}

	failWrites bool
}

func (h *stringHelper) Read(p *disk.ReadPipe) (string, error) {
	h.reads.Add(1)
	if h.blockReads != nil {
		<-h.blockReads
	}
	r, err := p.Open()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(r)
	return string(b), err
}

func (h *stringHelper) Write(w io.Writer, v string) error {
	if h.failWrites {
		return errors.New("serialization failed")
	}
	_, err := io.WriteString(w, v)
	return err
}

func newTwoTier(t *testing.T, h Helper[string]) *Cache[string] {
	t.Helper()
	if h == nil {
		h = &stringHelper{}
	}
	return New[string](Options[string]{
		MemoryCapacity: 16,
		DiskDir:        t.TempDir(),
		DiskCapacity:   1 << 20,
		Helper:         h,
	})
}

func TestNew_ConfigurationPanics(t *testing.T) {
	h := &stringHelper{}

	require.Panics(t, func() { New[string](Options[string]{MemoryCapacity: 1}) }, "nil helper")
	require.Panics(t, func() { New[string](Options[string]{Helper: h}) }, "no tiers")
	require.Panics(t, func() {
		New[string](Options[string]{Helper: h, DiskDir: t.TempDir()})
	}, "disk tier without capacity")
}

func TestMemoryOnly(t *testing.T) {
	c := New[string](Options[string]{MemoryCapacity: 2, Helper: &stringHelper{}})
	require.True(t, c.HasMemoryCache())
	require.False(t, c.HasDiskCache())

	c.Put("a", "1")
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "1", v)

	require.Equal(t, int64(-1), c.DiskSize())
	require.Equal(t, int64(2), c.MemoryMaxSize())
	require.Equal(t, int64(-1), c.DiskMaxSize())
	require.False(t, c.PutToDisk("a", "1"))
	require.False(t, c.PutRawToDisk("a", strings.NewReader("1")))
	require.False(t, c.PullRawFromDisk("a", io.Discard))
	require.Nil(t, c.ReadPipe("a"))
	require.Nil(t, c.WritePipe("a"))
	require.False(t, c.Flush())
	require.NoError(t, c.Close())
}

func TestDiskOnly(t *testing.T) {
	c := New[string](Options[string]{
		DiskDir:      t.TempDir(),
		DiskCapacity: 1 << 20,
		Helper:       &stringHelper{},
	})
	require.False(t, c.HasMemoryCache())
	require.True(t, c.HasDiskCache())
	require.Equal(t, int64(-1), c.MemorySize())
	require.Equal(t, int64(-1), c.MemoryMaxSize())
	require.Equal(t, int64(1<<20), c.DiskMaxSize())

	c.Put("a", "persisted")
	_, ok := c.GetFromMemory("a")
	require.False(t, ok)

	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "persisted", v)
	require.Greater(t, c.DiskSize(), int64(0))
}

func TestGet_ReadsThroughAndPromotes(t *testing.T) {
	h := &stringHelper{}
	c := newTwoTier(t, h)

	c.Put("k", "value")
	c.ClearMemory()
	_, ok := c.GetFromMemory("k")
	require.False(t, ok)

	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "value", v)
	require.Equal(t, int64(1), h.reads.Load())

	// Promoted: the next Get is a memory hit, no disk read.
	v, ok = c.GetFromMemory("k")
	require.True(t, ok)
	require.Equal(t, "value", v)
	c.Get("k")
	require.Equal(t, int64(1), h.reads.Load())
}

func TestGetFromDisk_DoesNotPromote(t *testing.T) {
	c := newTwoTier(t, nil)
	c.Put("k", "v")
	c.ClearMemory()

	_, ok := c.GetFromDisk("k")
	require.True(t, ok)
	_, ok = c.GetFromMemory("k")
	require.False(t, ok)
}

// A burst of concurrent misses on one key deserializes once and everyone
// shares the result.
func TestGet_CoalescesConcurrentDiskReads(t *testing.T) {
	h := &stringHelper{blockReads: make(chan struct{})}
	c := newTwoTier(t, h)

	c.Put("k", "shared")
	c.ClearMemory()

	leaderIn := make(chan struct{})
	go func() {
		close(leaderIn)
		c.Get("k")
	}()
	<-leaderIn
	require.Eventually(t, func() bool { return h.reads.Load() == 1 },
		time.Second, time.Millisecond, "leader must reach Read")

	const followers = 8
	var wg sync.WaitGroup
	results := make([]string, followers)
	for i := 0; i < followers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, ok := c.Get("k")
			require.True(t, ok)
			results[i] = v
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(h.blockReads)
	wg.Wait()

	require.Equal(t, int64(1), h.reads.Load(), "followers must share the leader's read")
	for _, v := range results {
		require.Equal(t, "shared", v)
	}
}

func TestPutRawToDisk(t *testing.T) {
	c := newTwoTier(t, nil)

	require.True(t, c.PutRawToDisk("k", strings.NewReader("raw bytes")))
	_, ok := c.GetFromMemory("k")
	require.False(t, ok, "raw put must not touch the memory tier")

	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "raw bytes", v)
}

// PutRawToDisk and PullRawFromDisk round-trip bytes without the helper's
// (de)serialization, and without touching the memory tier.
func TestPullRawFromDisk(t *testing.T) {
	h := &stringHelper{}
	c := newTwoTier(t, h)

	require.True(t, c.PutRawToDisk("k", strings.NewReader("raw round trip")))

	var buf bytes.Buffer
	require.True(t, c.PullRawFromDisk("k", &buf))
	require.Equal(t, "raw round trip", buf.String())
	require.Zero(t, h.reads.Load(), "raw pull must bypass Helper.Read")
	_, ok := c.GetFromMemory("k")
	require.False(t, ok, "raw pull must not promote")

	buf.Reset()
	require.False(t, c.PullRawFromDisk("absent", &buf))
	require.Zero(t, buf.Len())
}

func TestPutToDisk_WriteErrorLeavesNothing(t *testing.T) {
	h := &stringHelper{failWrites: true}
	c := newTwoTier(t, h)

	require.False(t, c.PutToDisk("k", "doomed"))
	_, ok := c.GetFromDisk("k")
	require.False(t, ok)
	require.Equal(t, int64(0), c.DiskSize())
}

func TestRemove_CoversBothTiers(t *testing.T) {
	c := newTwoTier(t, nil)
	c.Put("k", "v")

	c.Remove("k")
	_, ok := c.GetFromMemory("k")
	require.False(t, ok)
	_, ok = c.GetFromDisk("k")
	require.False(t, ok)
	_, ok = c.Get("k")
	require.False(t, ok)
}

func TestClear_CoversBothTiers(t *testing.T) {
	c := newTwoTier(t, nil)
	c.Put("a", "1")
	c.Put("b", "2")

	c.Clear()
	require.Equal(t, int64(0), c.MemorySize())
	require.Equal(t, int64(0), c.DiskSize())
	_, ok := c.Get("a")
	require.False(t, ok)
}

func TestRawPipes_RoundTrip(t *testing.T) {
	c := newTwoTier(t, nil)

	wp := c.WritePipe("k")
	wp.Obtain()
	w, err := wp.Open()
	require.NoError(t, err)
	_, err = io.WriteString(w, "via pipes")
	require.NoError(t, err)
	require.NoError(t, wp.Close())
	wp.Release()

	rp := c.ReadPipe("k")
	require.NotNil(t, rp)
	rp.Obtain()
	r, err := rp.Open()
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "via pipes", string(b))
	rp.Close()
	rp.Release()
}

func TestResizeMemory(t *testing.T) {
	h := &stringHelper{}
	c := New[string](Options[string]{MemoryCapacity: 4, Helper: h})
	for _, k := range []string{"a", "b", "c", "d"} {
		c.Put(k, k)
	}
	c.ResizeMemory(2)
	require.Equal(t, int64(2), c.MemorySize())
}

func TestMemoryTimeout(t *testing.T) {
	clk := &fakeClock{}
	c := New[string](Options[string]{
		MemoryCapacity: 16,
		MemoryTimeout:  time.Second,
		Helper:         &stringHelper{},
		Clock:          clk,
	})

	c.Put("k", "v")
	clk.t += int64(2 * time.Second)
	_, ok := c.Get("k")
	require.False(t, ok)
}

type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64 { return f.t }
