package tracker

import (
	"sync"
	"time"
)

type guildJoins struct {
	timestamps []time.Time
	suspicious []string
	lockdown   bool
	lockedTill *time.Time
}

// RaidTracker keeps per-guild join timestamps, the list of members flagged as
// suspicious at join time, and the guild's lockdown state. All state is
// in-memory.
type RaidTracker struct {
	mu     sync.Mutex
	now    func() time.Time
	guilds map[string]*guildJoins
}

func NewRaidTracker(now func() time.Time) *RaidTracker {
	if now == nil {
		now = time.Now
	}
	return &RaidTracker{
		now:    now,
		guilds: make(map[string]*guildJoins),
	}
}

func (t *RaidTracker) guild(guildID string) *guildJoins {
	g, ok := t.guilds[guildID]
	if !ok {
		g = &guildJoins{}
		t.guilds[guildID] = g
	}
	return g
}

// RecordJoin appends a join timestamp and, when flagged, the member to the
// suspicious list. Returns the unpruned join count.
func (t *RaidTracker) RecordJoin(guildID, userID string, suspicious bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	g := t.guild(guildID)
	g.timestamps = append(g.timestamps, t.now())
	if suspicious {
		g.suspicious = append(g.suspicious, userID)
	}

	return len(g.timestamps)
}

// RecentJoins prunes the guild's window to the trailing interval and returns
// the count of joins that remain.
func (t *RaidTracker) RecentJoins(guildID string, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	g := t.guild(guildID)
	cutoff := t.now().Add(-window)
	kept := g.timestamps[:0]
	for _, ts := range g.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	g.timestamps = kept

	return len(g.timestamps)
}

// SuspiciousMembers returns a copy of the flagged member IDs.
func (t *RaidTracker) SuspiciousMembers(guildID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	g := t.guild(guildID)
	out := make([]string, len(g.suspicious))
	copy(out, g.suspicious)
	return out
}

func (t *RaidTracker) ClearSuspicious(guildID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.guild(guildID).suspicious = nil
}

// IsLockedDown reports whether the guild is locked down, lazily clearing the
// state once the expiry has passed. Correctness never depends on a background
// sweep.
func (t *RaidTracker) IsLockedDown(guildID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	g := t.guild(guildID)
	if !g.lockdown {
		return false
	}

	if g.lockedTill != nil && t.now().After(*g.lockedTill) {
		g.lockdown = false
		g.lockedTill = nil
		return false
	}

	return true
}

// SetLockdown toggles lockdown. A zero duration means indefinite.
func (t *RaidTracker) SetLockdown(guildID string, enabled bool, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g := t.guild(guildID)
	g.lockdown = enabled
	if enabled && duration > 0 {
		till := t.now().Add(duration)
		g.lockedTill = &till
	} else {
		g.lockedTill = nil
	}
}

// LockdownExpiry returns the lockdown end time, or nil when not locked down
// or locked down indefinitely.
func (t *RaidTracker) LockdownExpiry(guildID string) *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	g := t.guild(guildID)
	if g.lockedTill == nil {
		return nil
	}
	till := *g.lockedTill
	return &till
}
