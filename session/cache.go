package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCacheMiss is returned when a session is not present in the cache.
var ErrCacheMiss = errors.New("session not cached")

// CacheStats tracks cache behavior for diagnostics.
type CacheStats struct {
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Sets      int64         `json:"sets"`
	Deletes   int64         `json:"deletes"`
	Evictions int64         `json:"evictions"`
	Size      int           `json:"size"`
	TTL       time.Duration `json:"ttl"`
}

// Cache is a small in-process read cache over the authoritative store. It is
// the component the refresh protocol must invalidate: a cached entry may
// keep presenting a role that has since changed in the membership store.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*cachedEntry
	ttl     time.Duration
	maxSize int

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64
}

type cachedEntry struct {
	session  *Session
	cachedAt time.Time
}

// NewCache creates a cache with the given entry TTL and size bound.
// Zero values default to 5 minutes and 500 entries.
func NewCache(ttl time.Duration, maxSize int) *Cache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	if maxSize == 0 {
		maxSize = 500
	}
	return &Cache{
		entries: make(map[string]*cachedEntry),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get returns the cached session for sessionID, or [ErrCacheMiss].
func (c *Cache) Get(sessionID string) (*Session, error) {
	c.mu.RLock()
	entry, ok := c.entries[sessionID]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}
	if time.Since(entry.cachedAt) > c.ttl {
		c.misses.Add(1)
		c.Invalidate(sessionID)
		return nil, ErrCacheMiss
	}

	c.hits.Add(1)
	return entry.session, nil
}

// Set stores a session. When full, one arbitrary entry is evicted.
func (c *Cache) Set(sess *Session) {
	if sess == nil || sess.ID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[sess.ID]; !exists && len(c.entries) >= c.maxSize {
		for k := range c.entries {
			delete(c.entries, k)
			c.evictions.Add(1)
			break
		}
	}

	c.entries[sess.ID] = &cachedEntry{session: sess, cachedAt: time.Now()}
	c.sets.Add(1)
}

// Invalidate drops a single entry.
func (c *Cache) Invalidate(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[sessionID]; ok {
		delete(c.entries, sessionID)
		c.deletes.Add(1)
	}
}

// Clear drops every entry. The refresh protocol calls this before asking the
// server for the authoritative session.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cachedEntry)
}

// Len returns the number of cached sessions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a point-in-time view of cache counters.
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Deletes:   c.deletes.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.Len(),
		TTL:       c.ttl,
	}
}
