package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentJoinsPrunes(t *testing.T) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := NewRaidTracker(func() time.Time { return clock })

	for i := 0; i < 5; i++ {
		tr.RecordJoin("g", "u", false)
		clock = clock.Add(10 * time.Second)
	}

	assert.Equal(t, 5, tr.RecentJoins("g", time.Minute))

	clock = clock.Add(30 * time.Second)
	assert.Equal(t, 2, tr.RecentJoins("g", time.Minute))

	clock = clock.Add(time.Hour)
	assert.Equal(t, 0, tr.RecentJoins("g", time.Minute))
}

func TestSuspiciousList(t *testing.T) {
	now := time.Now()
	tr := NewRaidTracker(func() time.Time { return now })

	tr.RecordJoin("g", "clean", false)
	tr.RecordJoin("g", "sus1", true)
	tr.RecordJoin("g", "sus2", true)

	assert.Equal(t, []string{"sus1", "sus2"}, tr.SuspiciousMembers("g"))

	// The returned slice is a copy; mutating it does not affect the tracker.
	flagged := tr.SuspiciousMembers("g")
	flagged[0] = "mutated"
	assert.Equal(t, []string{"sus1", "sus2"}, tr.SuspiciousMembers("g"))

	tr.ClearSuspicious("g")
	assert.Empty(t, tr.SuspiciousMembers("g"))
}

func TestLockdownIndefinite(t *testing.T) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := NewRaidTracker(func() time.Time { return clock })

	tr.SetLockdown("g", true, 0)
	assert.True(t, tr.IsLockedDown("g"))
	assert.Nil(t, tr.LockdownExpiry("g"))

	clock = clock.Add(24 * time.Hour)
	assert.True(t, tr.IsLockedDown("g"))

	tr.SetLockdown("g", false, 0)
	assert.False(t, tr.IsLockedDown("g"))
}

func TestLockdownLazyExpiry(t *testing.T) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := NewRaidTracker(func() time.Time { return clock })

	tr.SetLockdown("g", true, 30*time.Minute)
	assert.True(t, tr.IsLockedDown("g"))

	expiry := tr.LockdownExpiry("g")
	require.NotNil(t, expiry)
	assert.Equal(t, clock.Add(30*time.Minute), *expiry)

	clock = clock.Add(29 * time.Minute)
	assert.True(t, tr.IsLockedDown("g"))

	// No sweeper runs; the first check past the deadline clears the state.
	clock = clock.Add(2 * time.Minute)
	assert.False(t, tr.IsLockedDown("g"))
	assert.Nil(t, tr.LockdownExpiry("g"))
	assert.False(t, tr.IsLockedDown("g"))
}

func TestLockdownPerGuild(t *testing.T) {
	now := time.Now()
	tr := NewRaidTracker(func() time.Time { return now })

	tr.SetLockdown("g1", true, 0)
	assert.True(t, tr.IsLockedDown("g1"))
	assert.False(t, tr.IsLockedDown("g2"))
}
