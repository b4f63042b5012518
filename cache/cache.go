package cache

import (
	"sync"
	"time"
)

type entry struct {
	value      any
	insertedAt time.Time
}

// ParameterCache is an explicit TTL cache for parameter lookups. Entries
// expire on read; there is no background eviction and no package-level
// state.
type ParameterCache struct {
	ttl     time.Duration
	mutex   sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

func NewParameterCache(ttl time.Duration) *ParameterCache {
	return &ParameterCache{
		ttl:     ttl,
		entries: map[string]entry{},
		now:     time.Now,
	}
}

func (cache *ParameterCache) Get(key string) (any, bool) {
	cache.mutex.RLock()
	cached, ok := cache.entries[key]
	cache.mutex.RUnlock()

	if !ok {
		return nil, false
	}
	if cache.now().Sub(cached.insertedAt) > cache.ttl {
		cache.mutex.Lock()
		delete(cache.entries, key)
		cache.mutex.Unlock()
		return nil, false
	}
	return cached.value, true
}

func (cache *ParameterCache) Put(key string, value any) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	cache.entries[key] = entry{value: value, insertedAt: cache.now()}
}

func (cache *ParameterCache) Len() int {
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()
	return len(cache.entries)
}
