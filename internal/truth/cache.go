package truth

import (
	"sync"

	"github.com/sells-group/fredqa/internal/model"
)

// FrequencyCache memoizes series frequencies for the life of a session.
// The first value stored for a series wins; misses are cached as Unknown.
type FrequencyCache struct {
	mu    sync.RWMutex
	freqs map[string]model.Frequency
}

// NewFrequencyCache returns an empty cache.
func NewFrequencyCache() *FrequencyCache {
	return &FrequencyCache{freqs: make(map[string]model.Frequency)}
}

// Get returns the cached frequency for seriesID.
func (c *FrequencyCache) Get(seriesID string) (model.Frequency, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.freqs[seriesID]
	return f, ok
}

// Store records f for seriesID unless a value is already present, and
// returns the value now held by the cache.
func (c *FrequencyCache) Store(seriesID string, f model.Frequency) model.Frequency {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.freqs[seriesID]; ok {
		return existing
	}
	c.freqs[seriesID] = f
	return f
}

// Len returns the number of cached series.
func (c *FrequencyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.freqs)
}
