package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetThenGetRoundTrips(t *testing.T) {
	c := New(Config{Capacity: 16})
	c.Set("greeting", []byte("hello"), 0)

	v, ok := c.Get("greeting")
	assert.True(t, ok)
	assert.Equal(t, "hello", string(v))
}

func TestGetMissIncrementsMisses(t *testing.T) {
	c := New(Config{Capacity: 16})
	_, ok := c.Get("absent")
	assert.False(t, ok)

	stats, _ := c.Stats()
	assert.EqualValues(t, 1, stats.Misses)
}

func TestSetReplacesExistingValue(t *testing.T) {
	c := New(Config{Capacity: 16})
	c.Set("key", []byte("v1"), 0)
	c.Set("key", []byte("v2-longer"), 0)

	v, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "v2-longer", string(v))
}

func TestExpiredEntryReportsAsMiss(t *testing.T) {
	c := New(Config{Capacity: 16})
	c.Set("short", []byte("v"), time.Millisecond)

	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
	assert.False(t, c.Exists("short"))
}

func TestNegativeTTLMeansNoExpiry(t *testing.T) {
	c := New(Config{Capacity: 16, DefaultTTL: time.Nanosecond})
	c.Set("perm", []byte("v"), -1)

	time.Sleep(2 * time.Millisecond)
	_, ok := c.Get("perm")
	assert.True(t, ok)
}

func TestDeleteRemovesEntry(t *testing.T) {
	c := New(Config{Capacity: 16})
	c.Set("k", []byte("v"), 0)
	assert.True(t, c.Delete("k"))
	assert.False(t, c.Delete("k"))

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestClearRemovesEverything(t *testing.T) {
	c := New(Config{Capacity: 16})
	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("k%d", i), []byte("v"), 0)
	}
	c.Clear()

	for i := 0; i < 10; i++ {
		_, ok := c.Get(fmt.Sprintf("k%d", i))
		assert.False(t, ok)
	}
	_, mem := c.Stats()
	assert.EqualValues(t, 0, mem)
}

func TestCapacityEvictsLRUTail(t *testing.T) {
	c := New(Config{Capacity: 2})
	c.Set("a", []byte("1"), 0)
	c.Set("b", []byte("2"), 0)
	c.Set("c", []byte("3"), 0) // evicts "a" (least recently used)

	_, ok := c.Get("a")
	assert.False(t, ok)

	_, ok = c.Get("b")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	stats, _ := c.Stats()
	assert.EqualValues(t, 1, stats.Evictions)
}

func TestAccessPromotesEntryToKeepItAliveUnderPressure(t *testing.T) {
	c := New(Config{Capacity: 2})
	c.Set("a", []byte("1"), 0)
	c.Set("b", []byte("2"), 0)

	c.Get("a") // promote "a" so "b" becomes the LRU tail

	c.Set("c", []byte("3"), 0) // should evict "b", not "a"

	_, ok := c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestHitRatioComputedFromStats(t *testing.T) {
	c := New(Config{Capacity: 16})
	c.Set("k", []byte("v"), 0)

	c.Get("k")
	c.Get("k")
	c.Get("missing")

	stats, _ := c.Stats()
	assert.InDelta(t, 2.0/3.0, stats.HitRatio(), 0.0001)
}

func TestExpireEntriesSweepsStaleKeys(t *testing.T) {
	c := New(Config{Capacity: 16})
	c.Set("stale", []byte("v"), time.Millisecond)
	c.Set("fresh", []byte("v"), 0)

	time.Sleep(5 * time.Millisecond)

	n := c.ExpireEntries()
	assert.Equal(t, 1, n)

	assert.True(t, c.Exists("fresh"))
}

func TestResizeShrinksAndEvicts(t *testing.T) {
	c := New(Config{Capacity: 10})
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), []byte("v"), 0)
	}

	c.Resize(2)

	count := 0
	for i := 0; i < 5; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); ok {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestGenerateKeyIncludesMethodPathQuery(t *testing.T) {
	k1 := GenerateKey(nil, "GET", "/users", "id=1", 42)
	k2 := GenerateKey(nil, "GET", "/users", "id=2", 42)
	assert.NotEqual(t, k1, k2)
}

func TestNoEntryAppearsTwiceInBucketAfterManySets(t *testing.T) {
	c := New(Config{Capacity: 64})
	for i := 0; i < 200; i++ {
		c.Set(fmt.Sprintf("key-%d", i%50), []byte("v"), 0)
	}

	seen := map[string]int{}
	for _, head := range c.buckets {
		for e := head; e != nil; e = e.bucketNext {
			seen[e.key]++
		}
	}
	for k, n := range seen {
		assert.Equal(t, 1, n, "key %s appeared %d times in bucket chains", k, n)
	}
}
