package cache

import (
	"sync"
	"time"
)

type snapshotEntry struct {
	raw      []byte
	deadline time.Time
}

// FallbackCache keeps recent snapshot bytes in process memory for the spans
// when the breaker has Redis marked down. Capacity-bounded; when full, the
// entry closest to its deadline goes first.
type FallbackCache struct {
	mu       sync.Mutex
	entries  map[string]snapshotEntry
	capacity int
}

func NewFallbackCache(capacity int) *FallbackCache {
	fc := &FallbackCache{
		entries:  make(map[string]snapshotEntry),
		capacity: capacity,
	}
	go fc.sweep()
	return fc
}

// Get returns the stored bytes, dropping the entry in place when its deadline
// has passed.
func (fc *FallbackCache) Get(key string) ([]byte, bool) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	entry, ok := fc.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.deadline) {
		delete(fc.entries, key)
		return nil, false
	}

	return entry.raw, true
}

func (fc *FallbackCache) Set(key string, raw []byte, ttl time.Duration) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if _, ok := fc.entries[key]; !ok && len(fc.entries) >= fc.capacity {
		fc.evictSoonest()
	}

	fc.entries[key] = snapshotEntry{raw: raw, deadline: time.Now().Add(ttl)}
}

func (fc *FallbackCache) Delete(key string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	delete(fc.entries, key)
}

// evictSoonest drops the entry nearest its deadline. Caller holds the lock.
func (fc *FallbackCache) evictSoonest() {
	var victim string
	var soonest time.Time
	for key, entry := range fc.entries {
		if victim == "" || entry.deadline.Before(soonest) {
			victim = key
			soonest = entry.deadline
		}
	}
	delete(fc.entries, victim)
}

// sweep clears expired entries in bulk so a quiet cache does not pin stale
// snapshots until their keys are next read.
func (fc *FallbackCache) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		fc.mu.Lock()
		now := time.Now()
		for key, entry := range fc.entries {
			if now.After(entry.deadline) {
				delete(fc.entries, key)
			}
		}
		fc.mu.Unlock()
	}
}
