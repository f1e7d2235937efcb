package analytics

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// cachedStats pairs a computed value with its explicit expiry moment,
// so expiry is a plain timestamp comparison instead of ambient timers.
type cachedStats struct {
	stats     *LiveStats
	expiresAt time.Time
}

// StatsCache memoizes live-stat computation per session for a short
// TTL. It is invalidated by expiry only, never by writes, so a recent
// write may be reflected one refresh late. Safe for concurrent use.
type StatsCache struct {
	mutex   sync.RWMutex
	entries map[uuid.UUID]cachedStats
	ttl     time.Duration
	now     func() time.Time
}

func NewStatsCache(ttl time.Duration, now func() time.Time) *StatsCache {
	if now == nil {
		now = time.Now
	}
	return &StatsCache{
		entries: make(map[uuid.UUID]cachedStats),
		ttl:     ttl,
		now:     now,
	}
}

func (c *StatsCache) Get(sessionID uuid.UUID) (*LiveStats, bool) {
	c.mutex.RLock()
	entry, ok := c.entries[sessionID]
	c.mutex.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mutex.Lock()
		delete(c.entries, sessionID)
		c.mutex.Unlock()
		return nil, false
	}
	return entry.stats, true
}

func (c *StatsCache) Set(sessionID uuid.UUID, stats *LiveStats) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[sessionID] = cachedStats{
		stats:     stats,
		expiresAt: c.now().Add(c.ttl),
	}
}

func (c *StatsCache) Invalidate(sessionID uuid.UUID) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.entries, sessionID)
}
