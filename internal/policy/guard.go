package policy

import (
	"sync"
	"time"
)

// Guard is a keyed advisory lock: TryAcquire fails fast instead of queuing,
// so two overlapping evaluations for the same key never run concurrently
// while unrelated keys proceed independently.
type Guard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{held: make(map[string]struct{})}
}

// TryAcquire marks the key as held. Returns false when the key is already
// held by another evaluation.
func (g *Guard) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; ok {
		return false
	}
	g.held[key] = struct{}{}
	return true
}

func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.held, key)
}

// ReleaseAfter releases the key once the cooldown elapses. Used for the raid
// debounce, where the marker is time-boxed rather than tied to completion.
func (g *Guard) ReleaseAfter(key string, cooldown time.Duration) {
	time.AfterFunc(cooldown, func() { g.Release(key) })
}

// Held reports whether the key is currently held.
func (g *Guard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.held[key]
	return ok
}
