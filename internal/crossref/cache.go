package crossref

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/DominicTanzillo/Panacea/internal/metrics"
)

// Entry is the cached CDM list for one catalog ID.
type Entry struct {
	CDMs     []CDM     `json:"cdms"`
	CachedAt time.Time `json:"cached_at"`
}

// Cache stores CDM lookups keyed by catalog ID. Entries older than the
// implementation's TTL are treated as absent.
type Cache interface {
	Get(id int) (Entry, bool)
	Put(id int, cdms []CDM, ts time.Time)
}

// Flusher is implemented by caches that persist their contents.
type Flusher interface {
	Flush() error
}

// DefaultTTL is how long a lookup stays valid.
const DefaultTTL = 7 * 24 * time.Hour

// MemoryCache is an in-process Cache. Safe for concurrent use.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[int]Entry
	ttl     time.Duration
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCache creates an empty cache. A non-positive ttl uses DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		entries: make(map[int]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the entry for id. Expired entries are evicted on read.
func (c *MemoryCache) Get(id int) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()

	if ok && c.expired(e) {
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		ok = false
	}

	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	metrics.RecordCDMCache(ok)
	return e, ok
}

// Put stores cdms for id with timestamp ts.
func (c *MemoryCache) Put(id int, cdms []CDM, ts time.Time) {
	if cdms == nil {
		cdms = []CDM{}
	}
	c.mu.Lock()
	c.entries[id] = Entry{CDMs: cdms, CachedAt: ts.UTC()}
	c.mu.Unlock()
}

// EvictExpired removes every expired entry and returns how many were removed.
func (c *MemoryCache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns lookup counters.
func (c *MemoryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *MemoryCache) expired(e Entry) bool {
	return c.now().Sub(e.CachedAt) > c.ttl
}

// snapshot copies the live entries.
func (c *MemoryCache) snapshot() map[int]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[int]Entry, len(c.entries))
	for id, e := range c.entries {
		if !c.expired(e) {
			out[id] = e
		}
	}
	return out
}
