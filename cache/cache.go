// Package cache implements Catzilla's smart cache engine: a bucket-array
// hash table with intrusive LRU ordering, TTL expiry, and process-wide
// atomic stats, per spec.md §4.7.
//
// Grounded on air/coffer.go's fastcache-backed asset cache (off-heap value
// bytes behind a lookup index), generalized from "one sync.Map of static
// assets" into the full bucket-chain+LRU+TTL model spec.md §4.7 describes;
// the intrusive doubly-linked LRU list follows the hash-map-plus-list
// shape of the pack's engine.Pool model cache
// (other_examples/e99566f0 Tutu-Engine, map+*list.Element, O(1) promote/
// evict), and the atomic hit/miss/eviction counters follow the
// atomic.Int64-per-field Metrics struct in the pack's cache-manager-service
// (other_examples/a6626e46).
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/cespare/xxhash/v2"
)

// Stats holds process-wide (well, per-Cache — one Cache is typically
// process-global, but nothing here enforces that) atomic counters, per
// spec.md §4.7's "stats()" operation.
type Stats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Deletes   int64
	Evictions int64
}

type statCounters struct {
	hits, misses, sets, deletes, evictions int64
}

func (s *statCounters) snapshot() Stats {
	return Stats{
		Hits:      atomic.LoadInt64(&s.hits),
		Misses:    atomic.LoadInt64(&s.misses),
		Sets:      atomic.LoadInt64(&s.sets),
		Deletes:   atomic.LoadInt64(&s.deletes),
		Evictions: atomic.LoadInt64(&s.evictions),
	}
}

// HitRatio returns hits/(hits+misses), or 0 if there have been no
// requests yet.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// entry is one cache slot, threaded into both its bucket's collision chain
// and the cache-wide LRU list.
type entry struct {
	key       string
	valueHash uint64 // fastcache lookup key; the byte value itself lives off-heap
	size      int    // key_len + value_len, for memory_usage accounting
	expiresAt int64  // unix nanos; 0 means no expiry

	bucketNext *entry // next entry in this bucket's collision chain
	lruPrev    *entry
	lruNext    *entry
}

// Config is the cache's tunable surface, per spec.md's configuration
// surface `cache: {capacity, default_ttl, max_value_size, compression?}`.
type Config struct {
	Capacity     int
	DefaultTTL   time.Duration
	MaxValueSize int
}

// Cache is a fixed-bucket-count hash table with intrusive LRU ordering and
// TTL expiry, backed by fastcache for the actual value bytes so the Go
// heap and GC never see the cached payloads.
type Cache struct {
	mu sync.RWMutex

	buckets  []*entry
	capacity int
	size     int // current entry count

	lruHead, lruTail *entry

	defaultTTL   time.Duration
	maxValueSize int

	values *fastcache.Cache
	stats  statCounters

	memoryUsage int64 // atomic; approximate Σ(key_len+value_len+overhead)
}

const entryOverhead = 48 // approximate per-entry bookkeeping cost in bytes

// New returns a Cache configured per cfg. Capacity must be > 0.
func New(cfg Config) *Cache {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1024
	}
	return &Cache{
		buckets:      make([]*entry, bucketCount(cfg.Capacity)),
		capacity:     cfg.Capacity,
		defaultTTL:   cfg.DefaultTTL,
		maxValueSize: cfg.MaxValueSize,
		values:       fastcache.New(maxFastcacheBytes(cfg.Capacity, cfg.MaxValueSize)),
	}
}

func bucketCount(capacity int) int {
	n := 16
	for n < capacity {
		n <<= 1
	}
	return n
}

func maxFastcacheBytes(capacity, maxValueSize int) int {
	if maxValueSize <= 0 {
		maxValueSize = 4096
	}
	// fastcache.New needs a sane minimum to size its internal buckets;
	// 32MiB matches air's own CofferMaxMemoryBytes default.
	n := capacity * maxValueSize
	if n < 32*1024*1024 {
		n = 32 * 1024 * 1024
	}
	return n
}

// fnv1a hashes key with the spec-mandated FNV-1a constants. Implemented
// directly (not via stdlib hash/fnv) so bucket indexing gets the raw
// uint32 without an io.Writer round-trip — spec.md §4.7 pins FNV-1a as the
// key-hashing algorithm.
func fnv1a(key []byte) uint32 {
	const (
		offsetBasis uint32 = 2166136261
		prime       uint32 = 16777619
	)
	h := offsetBasis
	for _, b := range key {
		h ^= uint32(b)
		h *= prime
	}
	return h
}

// valueKey folds key through xxhash ahead of the fastcache lookup, so the
// off-heap store's own key is a fixed-size, well-distributed digest rather
// than the (potentially large) original cache key string.
func valueKey(key string) []byte {
	h := xxhash.Sum64String(key)
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(h >> (8 * i))
	}
	return b
}

func (c *Cache) bucketIndex(key string) int {
	return int(fnv1a([]byte(key))) & (len(c.buckets) - 1)
}

// GenerateKey builds a cache key from a request's method, path, query, and
// a pre-hashed summary of relevant headers, appending onto buf and
// returning the extended slice — spec.md §4.7's
// `generate_key(method, path, query, headers_hash, buf)`.
func GenerateKey(buf []byte, method, path, query string, headersHash uint64) []byte {
	buf = append(buf, method...)
	buf = append(buf, ' ')
	buf = append(buf, path...)
	if query != "" {
		buf = append(buf, '?')
		buf = append(buf, query...)
	}
	buf = append(buf, '#')
	for i := 0; i < 8; i++ {
		buf = append(buf, byte(headersHash>>(8*i)))
	}
	return buf
}

// Get returns the value for key, promoting it to the LRU head on a live
// hit and removing it (reporting a miss) if it has expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e := c.find(key)
	if e == nil {
		c.mu.RUnlock()
		atomic.AddInt64(&c.stats.misses, 1)
		return nil, false
	}
	if c.expired(e) {
		c.mu.RUnlock()
		c.mu.Lock()
		// Re-find under the write lock: another goroutine may have
		// already evicted or replaced it between the unlock/lock.
		if e2 := c.find(key); e2 != nil && c.expired(e2) {
			c.removeLocked(e2)
		}
		c.mu.Unlock()
		atomic.AddInt64(&c.stats.misses, 1)
		return nil, false
	}

	val, ok := c.values.HasGet(nil, valueKey(key))
	c.mu.RUnlock()
	if !ok {
		atomic.AddInt64(&c.stats.misses, 1)
		return nil, false
	}

	c.mu.Lock()
	if e := c.find(key); e != nil {
		c.promote(e)
	}
	c.mu.Unlock()

	atomic.AddInt64(&c.stats.hits, 1)
	return val, true
}

// Exists reports whether key is present and not expired, without affecting
// LRU order or stats.
func (c *Cache) Exists(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := c.find(key)
	return e != nil && !c.expired(e)
}

// Set inserts or replaces key's value. A ttl of 0 uses the Cache's
// DefaultTTL; a negative ttl, or a 0 ttl with no DefaultTTL set, means no
// expiry.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	vk := valueKey(key)

	if e := c.find(key); e != nil {
		atomic.AddInt64(&c.memoryUsage, int64(len(value)-e.size+len(key)))
		e.size = len(key) + len(value)
		e.expiresAt = expiryFor(ttl)
		c.values.Set(vk, value)
		c.promote(e)
		atomic.AddInt64(&c.stats.sets, 1)
		return
	}

	for c.size >= c.capacity && c.lruTail != nil {
		c.evictLocked()
	}

	e := &entry{
		key:       key,
		valueHash: xxhash.Sum64String(key),
		size:      len(key) + len(value),
		expiresAt: expiryFor(ttl),
	}
	c.values.Set(vk, value)

	idx := c.bucketIndex(key)
	e.bucketNext = c.buckets[idx]
	c.buckets[idx] = e
	c.size++
	atomic.AddInt64(&c.memoryUsage, int64(e.size+entryOverhead))

	c.pushFront(e)
	atomic.AddInt64(&c.stats.sets, 1)
}

// Delete removes key, if present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.find(key)
	if e == nil {
		return false
	}
	c.removeLocked(e)
	atomic.AddInt64(&c.stats.deletes, 1)
	return true
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.buckets {
		c.buckets[i] = nil
	}
	c.lruHead, c.lruTail = nil, nil
	c.size = 0
	atomic.StoreInt64(&c.memoryUsage, 0)
	c.values.Reset()
}

// ExpireEntries walks every entry and removes those past expiry, returning
// the count removed. Intended to be called periodically by a background
// sweep rather than relying solely on lazy expiry-on-Get.
func (c *Cache) ExpireEntries() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	e := c.lruHead
	for e != nil {
		next := e.lruNext
		if c.expired(e) {
			c.removeLocked(e)
			n++
		}
		e = next
	}
	return n
}

// Stats returns a snapshot of the cache's atomic counters plus its
// approximate memory usage.
func (c *Cache) Stats() (Stats, int64) {
	return c.stats.snapshot(), atomic.LoadInt64(&c.memoryUsage)
}

// Configure updates the default TTL and max value size in place.
// Capacity changes must go through Resize, since they require re-bucketing.
func (c *Cache) Configure(defaultTTL time.Duration, maxValueSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultTTL = defaultTTL
	c.maxValueSize = maxValueSize
}

// Resize rebuilds the bucket array for a new capacity, evicting LRU-tail
// entries first if the cache currently holds more than newCapacity
// entries.
func (c *Cache) Resize(newCapacity int) {
	if newCapacity <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.capacity = newCapacity
	for c.size > newCapacity && c.lruTail != nil {
		c.evictLocked()
	}

	newBuckets := make([]*entry, bucketCount(newCapacity))
	for e := c.lruHead; e != nil; e = e.lruNext {
		idx := int(fnv1a([]byte(e.key))) & (len(newBuckets) - 1)
		e.bucketNext = newBuckets[idx]
		newBuckets[idx] = e
	}
	c.buckets = newBuckets
}

// find looks up key's entry via its bucket chain. Caller must hold at
// least a read lock.
func (c *Cache) find(key string) *entry {
	idx := c.bucketIndex(key)
	for e := c.buckets[idx]; e != nil; e = e.bucketNext {
		if e.key == key {
			return e
		}
	}
	return nil
}

func (c *Cache) expired(e *entry) bool {
	return e.expiresAt != 0 && time.Now().UnixNano() >= e.expiresAt
}

func expiryFor(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return time.Now().Add(ttl).UnixNano()
}

// promote moves e to the LRU head. Caller must hold the write lock.
func (c *Cache) promote(e *entry) {
	if c.lruHead == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *Cache) pushFront(e *entry) {
	e.lruPrev = nil
	e.lruNext = c.lruHead
	if c.lruHead != nil {
		c.lruHead.lruPrev = e
	}
	c.lruHead = e
	if c.lruTail == nil {
		c.lruTail = e
	}
}

func (c *Cache) unlink(e *entry) {
	if e.lruPrev != nil {
		e.lruPrev.lruNext = e.lruNext
	} else {
		c.lruHead = e.lruNext
	}
	if e.lruNext != nil {
		e.lruNext.lruPrev = e.lruPrev
	} else {
		c.lruTail = e.lruPrev
	}
	e.lruPrev, e.lruNext = nil, nil
}

// evictLocked removes the current LRU tail. Caller must hold the write
// lock.
func (c *Cache) evictLocked() {
	if c.lruTail == nil {
		return
	}
	c.removeLocked(c.lruTail)
	atomic.AddInt64(&c.stats.evictions, 1)
}

// removeLocked unlinks e from both its bucket chain and the LRU list, and
// drops its value from the fastcache store. Caller must hold the write
// lock.
func (c *Cache) removeLocked(e *entry) {
	idx := c.bucketIndex(e.key)
	if c.buckets[idx] == e {
		c.buckets[idx] = e.bucketNext
	} else {
		for p := c.buckets[idx]; p != nil; p = p.bucketNext {
			if p.bucketNext == e {
				p.bucketNext = e.bucketNext
				break
			}
		}
	}

	c.unlink(e)
	c.size--
	atomic.AddInt64(&c.memoryUsage, -int64(e.size+entryOverhead))
	c.values.Del(valueKey(e.key))
}
