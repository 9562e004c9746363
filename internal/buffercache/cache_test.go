package buffercache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/goanalyzer/internal/parsegw"
)

func TestEvictsOldestOverCapacity(t *testing.T) {
	c := New(2, 0)
	c.Put("a", &Entry{BufferID: "a", Result: &parsegw.ParseResult{}})
	c.Put("b", &Entry{BufferID: "b", Result: &parsegw.ParseResult{}})
	c.Put("c", &Entry{BufferID: "c", Result: &parsegw.ParseResult{}})

	require.Equal(t, 2, c.Size())
	_, ok := c.Get("a")
	require.False(t, ok, "oldest entry should have been evicted")
}

func TestTTLExpiry(t *testing.T) {
	c := New(10, time.Millisecond)
	c.Put("a", &Entry{BufferID: "a", Result: &parsegw.ParseResult{}})
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("a")
	require.False(t, ok, "entry should have expired")
}

func TestGetMovesToFront(t *testing.T) {
	c := New(2, 0)
	c.Put("a", &Entry{BufferID: "a", Result: &parsegw.ParseResult{}})
	c.Put("b", &Entry{BufferID: "b", Result: &parsegw.ParseResult{}})
	c.Get("a")
	c.Put("c", &Entry{BufferID: "c", Result: &parsegw.ParseResult{}})

	_, ok := c.Get("b")
	require.False(t, ok, "b should have been evicted, not a")
	_, ok = c.Get("a")
	require.True(t, ok)
}
