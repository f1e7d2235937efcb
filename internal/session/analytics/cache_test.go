package analytics_test

import (
	"testing"
	"time"

	"github.com/2beens/fitsession/internal/session/analytics"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestStatsCache(t *testing.T) {
	now := testStart
	cache := analytics.NewStatsCache(3*time.Second, func() time.Time { return now })

	sessionID := uuid.New()
	stats := &analytics.LiveStats{SessionID: sessionID, TotalReps: 30}

	_, ok := cache.Get(sessionID)
	assert.False(t, ok)

	cache.Set(sessionID, stats)
	cached, ok := cache.Get(sessionID)
	assert.True(t, ok)
	assert.Equal(t, stats, cached)

	// still fresh right at the boundary
	now = now.Add(3 * time.Second)
	_, ok = cache.Get(sessionID)
	assert.True(t, ok)

	// expired one tick later
	now = now.Add(time.Millisecond)
	_, ok = cache.Get(sessionID)
	assert.False(t, ok)

	// re-set after expiry works
	cache.Set(sessionID, stats)
	_, ok = cache.Get(sessionID)
	assert.True(t, ok)

	cache.Invalidate(sessionID)
	_, ok = cache.Get(sessionID)
	assert.False(t, ok)
}
