// Package cache provides the in-memory TTL cache for finished context
// aggregates. A hit lets a repeated query skip the entire collector pipeline.
//
// Entries are immutable once stored; a Store for an existing key replaces the
// entry wholesale. Expiry is lazy: lookups drop entries past their TTL, and
// every store sweeps all expired entries so memory stays bounded without a
// background timer. When the soft entry cap is exceeded the oldest entries
// (by creation time) are evicted first.
package cache

import (
	"sync"
	"time"
)

// Cache is a thread-safe TTL cache keyed by content-derived digests.
type Cache struct {
	mu          sync.RWMutex
	entries     map[string]*entry
	byWorkspace map[string]map[string]struct{}
	ttl         time.Duration
	maxEntries  int
	metrics     *Metrics

	// now is replaceable in tests for deterministic expiry.
	now func() time.Time

	stats Stats
}

// entry is one stored aggregate. Never mutated after creation.
type entry struct {
	value     string
	workspace string
	createdAt time.Time
}

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Expired   int64 `json:"expired"`
	Evictions int64 `json:"evictions"`
}

// New creates a cache with the given TTL and soft entry cap.
// A maxEntries of zero or less disables the cap.
func New(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		entries:     make(map[string]*entry),
		byWorkspace: make(map[string]map[string]struct{}),
		ttl:         ttl,
		maxEntries:  maxEntries,
		now:         time.Now,
	}
}

// SetMetrics attaches Prometheus metrics. Optional.
func (c *Cache) SetMetrics(m *Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// Lookup returns the stored value for key, or ok=false on a miss. An entry
// older than the TTL is deleted and reported as a miss.
func (c *Cache) Lookup(key string) (string, bool) {
	c.mu.RLock()
	e, exists := c.entries[key]
	m := c.metrics
	c.mu.RUnlock()

	if !exists {
		c.recordMiss(m)
		return "", false
	}

	if c.now().Sub(e.createdAt) > c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Store may have
		// replaced the entry with a fresh one.
		if cur, ok := c.entries[key]; ok && cur == e {
			c.removeLocked(key, cur)
			c.stats.Expired++
		}
		c.mu.Unlock()
		c.recordMiss(m)
		return "", false
	}

	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
	if m != nil {
		m.RecordHit()
	}
	return e.value, true
}

// Store inserts value under key, replacing any previous entry. All expired
// entries are swept first, then the soft cap is enforced oldest-first.
// workspace associates the entry with a working directory for targeted
// invalidation; it may be empty.
func (c *Cache) Store(key, workspace, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	// Lazy sweep keeps memory bounded without a background timer.
	for k, e := range c.entries {
		if now.Sub(e.createdAt) > c.ttl {
			c.removeLocked(k, e)
			c.stats.Expired++
		}
	}

	if old, ok := c.entries[key]; ok {
		c.removeLocked(key, old)
	}

	e := &entry{value: value, workspace: workspace, createdAt: now}
	c.entries[key] = e
	if workspace != "" {
		keys, ok := c.byWorkspace[workspace]
		if !ok {
			keys = make(map[string]struct{})
			c.byWorkspace[workspace] = keys
		}
		keys[key] = struct{}{}
	}

	if c.maxEntries > 0 {
		for len(c.entries) > c.maxEntries {
			c.evictOldestLocked()
		}
	}

	if c.metrics != nil {
		c.metrics.SetSize(len(c.entries))
	}
}

// PurgeWorkspace removes every entry associated with the given working
// directory and returns how many were removed. Used when the repository
// state changes under a workspace before the TTL elapses.
func (c *Cache) PurgeWorkspace(workspace string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, ok := c.byWorkspace[workspace]
	if !ok {
		return 0
	}
	n := 0
	for k := range keys {
		if e, ok := c.entries[k]; ok {
			c.removeLocked(k, e)
			n++
		}
	}
	if c.metrics != nil {
		c.metrics.SetSize(len(c.entries))
	}
	return n
}

// PurgeAll removes every entry.
func (c *Cache) PurgeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.byWorkspace = make(map[string]map[string]struct{})
	if c.metrics != nil {
		c.metrics.SetSize(0)
	}
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache activity counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}

// removeLocked deletes an entry and its workspace index. Caller holds the
// write lock.
func (c *Cache) removeLocked(key string, e *entry) {
	delete(c.entries, key)
	if e.workspace != "" {
		if keys, ok := c.byWorkspace[e.workspace]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.byWorkspace, e.workspace)
			}
		}
	}
}

// evictOldestLocked removes the entry with the earliest creation time.
// Caller holds the write lock.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldest *entry
	for k, e := range c.entries {
		if oldest == nil || e.createdAt.Before(oldest.createdAt) {
			oldestKey = k
			oldest = e
		}
	}
	if oldest == nil {
		return
	}
	c.removeLocked(oldestKey, oldest)
	c.stats.Evictions++
	if c.metrics != nil {
		c.metrics.RecordEviction()
	}
}

func (c *Cache) recordMiss(m *Metrics) {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
	if m != nil {
		m.RecordMiss()
	}
}
