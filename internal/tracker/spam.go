package tracker

import (
	"strings"
	"sync"
	"time"
)

// maxContentLength bounds how much of a message is kept for duplicate
// matching. Matching is exact on the normalized prefix, not fuzzy.
const maxContentLength = 100

type userWindow struct {
	timestamps []time.Time
	contents   map[string]int
}

// SpamTracker keeps a per-guild, per-user sliding window of message
// timestamps plus a tally of normalized message content. All state is
// in-memory and rebuilt empty on restart.
type SpamTracker struct {
	mu    sync.Mutex
	now   func() time.Time
	users map[string]map[string]*userWindow
}

// NewSpamTracker builds a tracker. A nil clock uses time.Now; tests inject
// their own for deterministic windows.
func NewSpamTracker(now func() time.Time) *SpamTracker {
	if now == nil {
		now = time.Now
	}
	return &SpamTracker{
		now:   now,
		users: make(map[string]map[string]*userWindow),
	}
}

func (t *SpamTracker) user(guildID, userID string) *userWindow {
	guild, ok := t.users[guildID]
	if !ok {
		guild = make(map[string]*userWindow)
		t.users[guildID] = guild
	}

	u, ok := guild[userID]
	if !ok {
		u = &userWindow{contents: make(map[string]int)}
		guild[userID] = u
	}

	return u
}

// RecordMessage prunes the user's window to the trailing interval, appends
// the new message, and returns the count inside the window (including this
// message) together with how many times this normalized content has been
// seen since the last tally reset.
func (t *SpamTracker) RecordMessage(guildID, userID, content string, window time.Duration) (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	u := t.user(guildID, userID)

	cutoff := now.Add(-window)
	kept := u.timestamps[:0]
	for _, ts := range u.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	u.timestamps = append(kept, now)

	key := normalizeContent(content)
	u.contents[key]++

	return len(u.timestamps), u.contents[key]
}

// ResetDuplicates clears only the content tally, leaving the timestamp window
// intact. Called after a punitive action so the same burst cannot immediately
// re-trigger.
func (t *SpamTracker) ResetDuplicates(guildID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if guild, ok := t.users[guildID]; ok {
		if u, ok := guild[userID]; ok {
			u.contents = make(map[string]int)
		}
	}
}

// ClearUser drops all tracking state for a user.
func (t *SpamTracker) ClearUser(guildID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if guild, ok := t.users[guildID]; ok {
		delete(guild, userID)
	}
}

func normalizeContent(content string) string {
	s := strings.ToLower(strings.TrimSpace(content))
	runes := []rune(s)
	if len(runes) > maxContentLength {
		return string(runes[:maxContentLength])
	}
	return s
}
