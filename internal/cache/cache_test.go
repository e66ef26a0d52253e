package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New(5*time.Minute, 100)
	require.NotNil(t, c)
	assert.Equal(t, 0, c.Len())
}

func TestStoreAndLookup(t *testing.T) {
	c := New(5*time.Minute, 100)

	c.Store("key-a", "/tmp/proj", "aggregated context")

	v, ok := c.Lookup("key-a")
	assert.True(t, ok)
	assert.Equal(t, "aggregated context", v)
}

func TestLookup_Miss(t *testing.T) {
	c := New(5*time.Minute, 100)

	_, ok := c.Lookup("absent")
	assert.False(t, ok)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Misses)
}

func TestLookup_ExpiredEntry(t *testing.T) {
	c := New(time.Minute, 100)

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Store("key-a", "", "value")

	// Advance past TTL.
	c.now = func() time.Time { return now.Add(2 * time.Minute) }

	_, ok := c.Lookup("key-a")
	assert.False(t, ok, "entry past TTL must miss")
	assert.Equal(t, 0, c.Len(), "expired entry deleted on lookup")
}

func TestStore_SweepsExpiredEntries(t *testing.T) {
	c := New(time.Minute, 100)

	now := time.Now()
	c.now = func() time.Time { return now }
	for i := 0; i < 5; i++ {
		c.Store(fmt.Sprintf("old-%d", i), "", "v")
	}

	// All five are expired by the time a new entry arrives.
	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	c.Store("fresh", "", "v")

	assert.Equal(t, 1, c.Len(), "store sweeps every expired entry")
	_, ok := c.Lookup("fresh")
	assert.True(t, ok)
}

func TestStore_ReplacesWholesale(t *testing.T) {
	c := New(5*time.Minute, 100)

	c.Store("key-a", "/tmp/one", "first")
	c.Store("key-a", "/tmp/two", "second")

	v, ok := c.Lookup("key-a")
	require.True(t, ok)
	assert.Equal(t, "second", v)
	assert.Equal(t, 1, c.Len())

	// The old workspace association is gone with the old entry.
	assert.Equal(t, 0, c.PurgeWorkspace("/tmp/one"))
	assert.Equal(t, 1, c.PurgeWorkspace("/tmp/two"))
}

func TestSoftCap_EvictsOldestFirst(t *testing.T) {
	c := New(time.Hour, 3)

	base := time.Now()
	for i := 0; i < 3; i++ {
		i := i
		c.now = func() time.Time { return base.Add(time.Duration(i) * time.Second) }
		c.Store(fmt.Sprintf("key-%d", i), "", "v")
	}

	c.now = func() time.Time { return base.Add(10 * time.Second) }
	c.Store("key-new", "", "v")

	_, ok := c.Lookup("key-0")
	assert.False(t, ok, "oldest entry evicted")
	for _, k := range []string{"key-1", "key-2", "key-new"} {
		_, ok := c.Lookup(k)
		assert.True(t, ok, "%s should survive", k)
	}
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestNoCap(t *testing.T) {
	c := New(time.Hour, 0)
	for i := 0; i < 500; i++ {
		c.Store(fmt.Sprintf("key-%d", i), "", "v")
	}
	assert.Equal(t, 500, c.Len())
}

func TestPurgeWorkspace(t *testing.T) {
	c := New(time.Hour, 100)

	c.Store("a1", "/work/a", "v")
	c.Store("a2", "/work/a", "v")
	c.Store("b1", "/work/b", "v")

	n := c.PurgeWorkspace("/work/a")
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Lookup("b1")
	assert.True(t, ok, "other workspace untouched")
}

func TestPurgeAll(t *testing.T) {
	c := New(time.Hour, 100)
	c.Store("a", "/w", "v")
	c.Store("b", "", "v")

	c.PurgeAll()
	assert.Equal(t, 0, c.Len())
}

func TestStats(t *testing.T) {
	c := New(time.Hour, 100)

	c.Store("a", "", "v")
	c.Lookup("a")
	c.Lookup("a")
	c.Lookup("missing")

	s := c.Stats()
	assert.Equal(t, 1, s.Entries)
	assert.Equal(t, int64(2), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute, 50)

	var wg sync.WaitGroup
	const goroutines = 40
	const ops = 100

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				key := fmt.Sprintf("key-%d", (id+j)%20)
				c.Store(key, "/w", "value")
				c.Lookup(key)
				if j%25 == 0 {
					c.PurgeWorkspace("/w")
				}
			}
		}(i)
	}
	wg.Wait()
	// Completing without deadlock or race is the assertion.
}
