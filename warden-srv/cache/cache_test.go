package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMiss(t *testing.T) {
	c := New(MaxTotalBytes, MaxEntryBytes, 0)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestPutThenGet(t *testing.T) {
	c := New(MaxTotalBytes, MaxEntryBytes, 0)
	c.Put("http://origin/x", []byte("hello"))

	v, ok := c.Get("http://origin/x")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), v)
}

func TestPutReplacesValueAndSize(t *testing.T) {
	c := New(MaxTotalBytes, MaxEntryBytes, 0)
	c.Put("k", []byte("short"))
	c.Put("k", []byte("a much longer value"))

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("a much longer value"), v)
	assert.Equal(t, int64(len("a much longer value")), c.Size())
	assert.Equal(t, 1, c.Len())
}

// TestOversizeDrop verifies testable property #3: a put beyond the
// per-entry bound is a silent no-op and bookkeeping is unchanged.
func TestOversizeDrop(t *testing.T) {
	c := New(MaxTotalBytes, 10, 0)
	before := c.Size()

	c.Put("huge", make([]byte, 11))

	_, ok := c.Get("huge")
	assert.False(t, ok)
	assert.Equal(t, before, c.Size())
}

// TestLRUOrder verifies testable property #2: put(k1), put(k2), get(k1),
// put(k3) where k3 forces one eviction evicts k2, not k1.
func TestLRUOrder(t *testing.T) {
	entrySize := int64(100)
	// total budget holds exactly two entries
	c := New(entrySize*2, entrySize, 0)

	c.Put("k1", make([]byte, entrySize))
	c.Put("k2", make([]byte, entrySize))
	_, ok := c.Get("k1") // promotes k1 to most-recent, k2 is now least-recent
	require.True(t, ok)

	c.Put("k3", make([]byte, entrySize)) // forces exactly one eviction

	_, k1ok := c.Get("k1")
	_, k2ok := c.Get("k2")
	_, k3ok := c.Get("k3")

	assert.True(t, k1ok, "k1 was promoted and should survive")
	assert.False(t, k2ok, "k2 was least-recent and should be evicted")
	assert.True(t, k3ok, "k3 was just inserted and should survive")
}

// TestByteBound verifies testable property #1: current size never exceeds
// the total byte budget after any put returns.
func TestByteBound(t *testing.T) {
	const maxTotal = 1000
	c := New(maxTotal, 200, 0)

	for i := 0; i < 50; i++ {
		c.Put(string(rune('a'+i%26)), make([]byte, 100))
		assert.LessOrEqual(t, c.Size(), int64(maxTotal))
	}
}

func TestCapacityBound(t *testing.T) {
	c := New(MaxTotalBytes, MaxEntryBytes, 2)

	c.Put("k1", []byte("a"))
	c.Put("k2", []byte("b"))
	c.Put("k3", []byte("c"))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("k1")
	assert.False(t, ok, "k1 should have been evicted once capacity was exceeded")
}

func TestConcurrentAccess(t *testing.T) {
	c := New(MaxTotalBytes, MaxEntryBytes, 0)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			c.Put(string(rune(i)), []byte{byte(i)})
		}(i)
		go func(i int) {
			defer wg.Done()
			c.Get(string(rune(i)))
		}(i)
	}

	wg.Wait()
}
