package bot

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/config"
	"github.com/glotchimo/warden/internal/models"
	"github.com/glotchimo/warden/internal/policy"
	"github.com/glotchimo/warden/internal/tracker"
	"github.com/stretchr/testify/assert"
)

// countingPort tallies punitive calls; everything succeeds.
type countingPort struct {
	punitive int
}

func (p *countingPort) DeleteMessage(ctx context.Context, channelID, messageID string) policy.ActionResult {
	p.punitive++
	return policy.OK()
}

func (p *countingPort) TimeoutUser(ctx context.Context, guildID, userID string, until time.Time, reason string) policy.ActionResult {
	p.punitive++
	return policy.OK()
}

func (p *countingPort) KickUser(ctx context.Context, guildID, userID, reason string) policy.ActionResult {
	p.punitive++
	return policy.OK()
}

func (p *countingPort) BanUser(ctx context.Context, guildID, userID, reason string, purgeDays int) policy.ActionResult {
	p.punitive++
	return policy.OK()
}

func (p *countingPort) SetVerificationLevel(ctx context.Context, guildID string, level dg.VerificationLevel) policy.ActionResult {
	return policy.OK()
}

func (p *countingPort) SendLog(ctx context.Context, guildID string, incident *models.Incident) policy.ActionResult {
	return policy.OK()
}

func (p *countingPort) DMOwner(ctx context.Context, guildID string, incident *models.Incident) policy.ActionResult {
	return policy.OK()
}

type countingLedger struct {
	counts map[string]int
}

func (l *countingLedger) AddWarning(ctx context.Context, guildID, userID string) int {
	l.counts[guildID+":"+userID]++
	return l.counts[guildID+":"+userID]
}

func (l *countingLedger) Count(ctx context.Context, guildID, userID string) int {
	return l.counts[guildID+":"+userID]
}

func (l *countingLedger) RecentCount(ctx context.Context, guildID, userID string, window time.Duration) int {
	return l.counts[guildID+":"+userID]
}

func (l *countingLedger) Clear(ctx context.Context, guildID, userID string) bool {
	delete(l.counts, guildID+":"+userID)
	return true
}

func guildMessage(id string, author *dg.User, member *dg.Member) *dg.MessageCreate {
	return &dg.MessageCreate{Message: &dg.Message{
		GuildID:   "g",
		ChannelID: "c",
		ID:        id,
		Content:   "same thing",
		Author:    author,
		Member:    member,
	}}
}

func TestMessageEventBotWithoutMember(t *testing.T) {
	m := guildMessage("m1", &dg.User{ID: "hook", Username: "hook", Bot: true}, nil)

	ev := messageEvent(nil, m)
	assert.True(t, ev.Author.IsBot)
	assert.Equal(t, "hook", ev.UserID)
	assert.Equal(t, "same thing", ev.Content)
}

func TestMessageEventWebhook(t *testing.T) {
	m := guildMessage("m1", &dg.User{ID: "wh", Username: "wh"}, nil)
	m.WebhookID = "123"

	ev := messageEvent(nil, m)
	assert.True(t, ev.Author.IsBot)
}

func TestMessageEventPatchesMemberUser(t *testing.T) {
	state := dg.NewState()
	state.GuildAdd(&dg.Guild{
		ID:      "g",
		OwnerID: "owner",
		Roles:   []*dg.Role{{ID: "r1", Name: "Moderator", Permissions: dg.PermissionManageMessages}},
	})
	session := &dg.Session{State: state}

	// Gateway member payloads omit the user struct.
	m := guildMessage("m1", &dg.User{ID: "u", Username: "human"}, &dg.Member{Roles: []string{"r1"}})

	ev := messageEvent(session, m)
	assert.False(t, ev.Author.IsBot)
	assert.Contains(t, ev.Author.RoleNames, "Moderator")
	assert.True(t, ev.Author.ManageMessages)
}

func TestGuildUpdateReachesEventChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := &Bot{ctx: ctx, events: make(chan GuildEvent, 1)}

	update := &dg.GuildUpdate{Guild: &dg.Guild{ID: "g", Name: "renamed"}}
	b.enqueueGuildUpdate(update)

	e := <-b.events
	assert.Equal(t, EventTypeGuildUpdate, e.Type)
	assert.Equal(t, "renamed", e.GuildUpdate.Name)

	// A cancelled bot drops the update instead of blocking the gateway.
	cancel()
	b.enqueueGuildUpdate(update)
	b.enqueueGuildUpdate(update)
}

func TestMemberlessBotMessagesNeverPunished(t *testing.T) {
	conf := config.AutoMod{
		Enabled:            true,
		SpamThreshold:      5,
		SpamWindow:         10 * time.Second,
		DuplicateThreshold: 3,
		TimeoutDuration:    5 * time.Minute,
		WarningsForKick:    3,
		WarningsForBan:     5,
	}

	port := &countingPort{}
	ledger := &countingLedger{counts: make(map[string]int)}
	automod := policy.NewAutoMod(conf, slog.Default(), tracker.NewSpamTracker(nil), ledger, port, nil)

	// Identical rapid-fire messages from a bot author with no member payload
	// would trip both the duplicate and the rate threshold if the bot flag
	// were dropped in mapping.
	author := &dg.User{ID: "hook", Username: "hook", Bot: true}
	for i := 0; i < 5; i++ {
		m := guildMessage(fmt.Sprintf("m%d", i), author, nil)
		assert.Nil(t, automod.HandleMessage(context.Background(), messageEvent(nil, m)))
	}

	assert.Equal(t, 0, port.punitive)
	assert.Equal(t, 0, ledger.Count(context.Background(), "g", "hook"))
}
