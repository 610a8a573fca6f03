package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/config"
	"github.com/glotchimo/warden/internal/models"
	"github.com/glotchimo/warden/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort records every action call and answers with configurable results.
type fakePort struct {
	mu      sync.Mutex
	calls   []string
	results map[string]ActionResult
}

func newFakePort() *fakePort {
	return &fakePort{results: make(map[string]ActionResult)}
}

func (p *fakePort) record(action string) ActionResult {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, action)
	if res, ok := p.results[action]; ok {
		return res
	}
	return OK()
}

func (p *fakePort) count(action string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, c := range p.calls {
		if c == action {
			n++
		}
	}
	return n
}

func (p *fakePort) DeleteMessage(ctx context.Context, channelID, messageID string) ActionResult {
	return p.record("delete")
}

func (p *fakePort) TimeoutUser(ctx context.Context, guildID, userID string, until time.Time, reason string) ActionResult {
	return p.record("timeout")
}

func (p *fakePort) KickUser(ctx context.Context, guildID, userID, reason string) ActionResult {
	return p.record("kick")
}

func (p *fakePort) BanUser(ctx context.Context, guildID, userID, reason string, purgeDays int) ActionResult {
	return p.record("ban")
}

func (p *fakePort) SetVerificationLevel(ctx context.Context, guildID string, level discordgo.VerificationLevel) ActionResult {
	return p.record("verification")
}

func (p *fakePort) SendLog(ctx context.Context, guildID string, incident *models.Incident) ActionResult {
	return p.record("log")
}

func (p *fakePort) DMOwner(ctx context.Context, guildID string, incident *models.Incident) ActionResult {
	return p.record("dm")
}

// fakeLedger is an in-memory WarningLedger.
type fakeLedger struct {
	counts map[string]int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{counts: make(map[string]int)}
}

func (l *fakeLedger) AddWarning(ctx context.Context, guildID, userID string) int {
	l.counts[guildID+":"+userID]++
	return l.counts[guildID+":"+userID]
}

func (l *fakeLedger) Count(ctx context.Context, guildID, userID string) int {
	return l.counts[guildID+":"+userID]
}

func (l *fakeLedger) RecentCount(ctx context.Context, guildID, userID string, window time.Duration) int {
	return l.counts[guildID+":"+userID]
}

func (l *fakeLedger) Clear(ctx context.Context, guildID, userID string) bool {
	if l.counts[guildID+":"+userID] == 0 {
		return false
	}
	delete(l.counts, guildID+":"+userID)
	return true
}

func autoModConf() config.AutoMod {
	return config.AutoMod{
		Enabled:            true,
		SpamThreshold:      5,
		SpamWindow:         10 * time.Second,
		DuplicateThreshold: 3,
		TimeoutDuration:    5 * time.Minute,
		WarningsForKick:    3,
		WarningsForBan:     5,
		ExemptRoles:        []string{"Admin", "Moderator"},
		LogActions:         true,
	}
}

func testAutoMod(conf config.AutoMod, port ActionPort, ledger WarningLedger, now func() time.Time) *AutoMod {
	return NewAutoMod(conf, slog.Default(), tracker.NewSpamTracker(now), ledger, port, now)
}

func msg(n int) models.MessageEvent {
	return models.MessageEvent{
		GuildID:   "g",
		ChannelID: "c",
		MessageID: fmt.Sprintf("m%d", n),
		UserID:    "u",
		Username:  "spammer",
		Content:   fmt.Sprintf("message %d", n),
	}
}

func TestExempt(t *testing.T) {
	m := testAutoMod(autoModConf(), newFakePort(), newFakeLedger(), nil)

	assert.True(t, m.Exempt(models.AuthorCapabilities{IsBot: true}))
	assert.True(t, m.Exempt(models.AuthorCapabilities{IsOwner: true}))
	assert.True(t, m.Exempt(models.AuthorCapabilities{RoleNames: []string{"Member", "Moderator"}}))
	assert.True(t, m.Exempt(models.AuthorCapabilities{Administrator: true}))
	assert.True(t, m.Exempt(models.AuthorCapabilities{ManageMessages: true}))
	assert.True(t, m.Exempt(models.AuthorCapabilities{KickMembers: true}))
	assert.True(t, m.Exempt(models.AuthorCapabilities{BanMembers: true}))
	assert.False(t, m.Exempt(models.AuthorCapabilities{RoleNames: []string{"Member"}}))
}

func TestExemptAuthorNeverPunished(t *testing.T) {
	port := newFakePort()
	m := testAutoMod(autoModConf(), port, newFakeLedger(), nil)

	for i := 0; i < 20; i++ {
		ev := msg(i)
		ev.Author = models.AuthorCapabilities{Administrator: true}
		assert.Nil(t, m.HandleMessage(context.Background(), ev))
	}

	assert.Empty(t, port.calls)
}

func TestSpamThresholdTimeout(t *testing.T) {
	now := time.Now()
	port := newFakePort()
	ledger := newFakeLedger()
	m := testAutoMod(autoModConf(), port, ledger, func() time.Time { return now })

	var incident *models.Incident
	for i := 0; i < 5; i++ {
		incident = m.HandleMessage(context.Background(), msg(i))
	}

	require.NotNil(t, incident)
	assert.Equal(t, models.IncidentSpam, incident.Kind)
	assert.Equal(t, 1, incident.Warnings)
	assert.Equal(t, 1, port.count("delete"))
	assert.Equal(t, 1, port.count("timeout"))
	assert.Equal(t, 0, port.count("kick"))
	assert.Equal(t, 1, port.count("log"))
	assert.Equal(t, 1, ledger.Count(context.Background(), "g", "u"))
}

func TestDuplicateThreshold(t *testing.T) {
	now := time.Now()
	clock := func() time.Time {
		// Spread messages out so the rate threshold never trips.
		now = now.Add(time.Minute)
		return now
	}
	port := newFakePort()
	m := testAutoMod(autoModConf(), port, newFakeLedger(), clock)

	var incident *models.Incident
	for i := 0; i < 3; i++ {
		ev := msg(0)
		ev.MessageID = fmt.Sprintf("m%d", i)
		ev.Content = "same thing"
		incident = m.HandleMessage(context.Background(), ev)
	}

	require.NotNil(t, incident)
	assert.Equal(t, models.IncidentSpam, incident.Kind)
	assert.Contains(t, incident.Reasons[0], "duplicate")
	assert.Equal(t, 1, port.count("timeout"))
}

func TestPunishmentLadder(t *testing.T) {
	now := time.Now()
	port := newFakePort()
	ledger := newFakeLedger()
	m := testAutoMod(autoModConf(), port, ledger, func() time.Time { return now })

	trip := func() *models.Incident {
		var incident *models.Incident
		for i := 0; incident == nil && i < 10; i++ {
			incident = m.HandleMessage(context.Background(), msg(i))
		}
		// Drain the rate window so the next trip starts fresh.
		m.tracker.ClearUser("g", "u")
		return incident
	}

	// Warnings 1 and 2: timeout.
	for i := 1; i <= 2; i++ {
		incident := trip()
		require.NotNil(t, incident)
		assert.Equal(t, i, incident.Warnings)
		assert.Equal(t, i, port.count("timeout"))
	}

	// Warnings 3 and 4: kick, ledger preserved.
	for i := 3; i <= 4; i++ {
		incident := trip()
		require.NotNil(t, incident)
		assert.Equal(t, i, incident.Warnings)
		assert.Equal(t, i-2, port.count("kick"))
		assert.Equal(t, i, ledger.Count(context.Background(), "g", "u"))
	}

	// Warning 5: ban, ledger cleared.
	incident := trip()
	require.NotNil(t, incident)
	assert.Equal(t, 5, incident.Warnings)
	assert.Equal(t, 1, port.count("ban"))
	assert.Equal(t, 0, ledger.Count(context.Background(), "g", "u"))
}

func TestFailedBanPreservesWarnings(t *testing.T) {
	now := time.Now()
	port := newFakePort()
	port.results["ban"] = ActionResult{Reason: models.FailurePermission, Detail: "missing permission"}
	ledger := newFakeLedger()
	for i := 0; i < 4; i++ {
		ledger.AddWarning(context.Background(), "g", "u")
	}
	m := testAutoMod(autoModConf(), port, ledger, func() time.Time { return now })

	var incident *models.Incident
	for i := 0; incident == nil && i < 10; i++ {
		incident = m.HandleMessage(context.Background(), msg(i))
	}

	require.NotNil(t, incident)
	assert.Equal(t, 5, incident.Warnings)
	assert.Len(t, incident.Failed(), 1)
	assert.Equal(t, models.FailurePermission, incident.Failed()[0].Reason)

	// The ban never landed, so the count survives for the next attempt.
	assert.Equal(t, 5, ledger.Count(context.Background(), "g", "u"))
}

func TestDisabledDoesNothing(t *testing.T) {
	conf := autoModConf()
	conf.Enabled = false
	port := newFakePort()
	m := testAutoMod(conf, port, newFakeLedger(), nil)

	for i := 0; i < 20; i++ {
		assert.Nil(t, m.HandleMessage(context.Background(), msg(i)))
	}
	assert.Empty(t, port.calls)
}

func TestWarnedRejoinAdvisory(t *testing.T) {
	port := newFakePort()
	ledger := newFakeLedger()
	for i := 0; i < 3; i++ {
		ledger.AddWarning(context.Background(), "g", "u")
	}
	m := testAutoMod(autoModConf(), port, ledger, nil)

	incident := m.HandleJoin(context.Background(), models.JoinEvent{GuildID: "g", UserID: "u", Username: "returner"})
	require.NotNil(t, incident)
	assert.Equal(t, models.IncidentWarnedRejoin, incident.Kind)
	assert.Equal(t, 3, incident.Warnings)

	// Advisory only: nothing punitive fires, and the count is untouched.
	assert.Equal(t, 0, port.count("kick"))
	assert.Equal(t, 3, ledger.Count(context.Background(), "g", "u"))

	assert.Nil(t, m.HandleJoin(context.Background(), models.JoinEvent{GuildID: "g", UserID: "clean"}))
	assert.Nil(t, m.HandleJoin(context.Background(), models.JoinEvent{GuildID: "g", UserID: "u", IsBot: true}))
}
