package bot

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	dg "github.com/bwmarrin/discordgo"
	"github.com/glotchimo/warden/internal/actions"
	"github.com/glotchimo/warden/internal/cache"
	"github.com/glotchimo/warden/internal/config"
	"github.com/glotchimo/warden/internal/database"
	"github.com/glotchimo/warden/internal/handlers"
	"github.com/glotchimo/warden/internal/handlers/commands"
	"github.com/glotchimo/warden/internal/models"
	"github.com/glotchimo/warden/internal/policy"
	"github.com/glotchimo/warden/internal/response"
	"github.com/glotchimo/warden/internal/store"
	"github.com/glotchimo/warden/internal/tracker"
	"github.com/glotchimo/warden/internal/utils"
	"github.com/graxinc/errutil"
	"github.com/rs/xid"
)

var lookup map[string]handlers.Handler = map[string]handlers.Handler{
	"ping":           &commands.Ping{},
	"warn":           &commands.Warn{},
	"warnings":       &commands.Warnings{},
	"clearwarnings":  &commands.ClearWarnings{},
	"automod":        &commands.AutoModStatus{},
	"antiraid":       &commands.AntiRaidStatus{},
	"lockdown":       &commands.Lockdown{},
	"raidstatus":     &commands.RaidStatus{},
	"kicksuspicious": &commands.KickSuspicious{},
	"massban":        &commands.MassBan{},
	"setup":          &commands.Setup{},
	"checksetup":     &commands.CheckSetup{},
}

type EventType int

const (
	EventTypeGuildUpdate EventType = iota
	EventTypeInteraction
	EventTypeMessage
	EventTypeMemberJoin
)

type GuildEvent struct {
	Type EventType

	GuildUpdate *dg.GuildUpdate
	Interaction *dg.InteractionCreate
	Message     *dg.MessageCreate
	MemberJoin  *dg.GuildMemberAdd
}

type GuildContext struct {
	Context context.Context
	Cancel  context.CancelFunc
	Events  chan GuildEvent
}

type Bot struct {
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc

	conf config.Conf

	s *dg.Session
	d *database.Database
	l *slog.Logger
	r *response.Responder

	snap     *cache.Snapshots
	store    *store.GuildStore
	warnings *store.WarningLedger
	port     policy.ActionPort
	automod  *policy.AutoMod
	antiraid *policy.AntiRaid

	events   chan GuildEvent
	contexts map[string]*GuildContext
}

func NewBot(conf config.Conf) (*Bot, error) {
	b := Bot{
		conf:     conf,
		events:   make(chan GuildEvent),
		contexts: make(map[string]*GuildContext),
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.ctx = ctx
	b.cancel = cancel

	if conf.Debug {
		b.l = slog.Default()
	} else {
		b.l = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true}))
	}

	db, err := database.NewDatabase(b.l, conf.DatabaseURL)
	if err != nil {
		return nil, errutil.With(err)
	}
	b.d = db

	session, err := dg.New("Bot " + conf.Token)
	if err != nil {
		return nil, errutil.With(err)
	}
	b.s = session

	b.s.Identify.Intents = dg.Intent(conf.Intents)

	b.s.ShardID = conf.ShardID
	b.s.ShardCount = conf.ShardCount
	b.l.Info("sharding enabled", "shard_id", conf.ShardID, "shard_count", conf.ShardCount)

	if conf.CacheURL != "" {
		snap, err := cache.NewSnapshots(conf.CacheURL, b.l)
		if err != nil {
			b.l.Warn("settings snapshot mirror unavailable, continuing without", "error", err)
		} else {
			b.snap = snap
		}
	}

	b.store = store.NewGuildStore(b.l, b.d, b.snap)
	b.warnings = store.NewWarningLedger(b.l, b.d, nil)
	b.port = actions.NewDiscord(b.s, b.l, b.store, conf.Setup.LogChannelName)
	b.automod = policy.NewAutoMod(conf.AutoMod, b.l, tracker.NewSpamTracker(nil), b.warnings, b.port, nil)
	b.antiraid = policy.NewAntiRaid(conf.AntiRaid, b.l, tracker.NewRaidTracker(nil), b.port, nil)
	b.r = response.NewSessionResponder(b.s, b.l)

	b.s.AddHandler(func(s *dg.Session, r *dg.Ready) {
		b.l.Info("bot connected to gateway",
			"bot", fmt.Sprintf("%s#%s", r.User.Username, r.User.Discriminator),
			"guilds", len(s.State.Guilds),
			"shard_id", conf.ShardID,
			"shard_count", conf.ShardCount,
		)
	})

	if err := b.s.Open(); err != nil {
		return nil, errutil.With(err)
	}

	b.s.AddHandler(func(s *dg.Session, g *dg.GuildCreate) { b.register(g.Guild) })
	b.s.AddHandler(func(s *dg.Session, g *dg.GuildDelete) { b.remove(g.Guild) })

	// Renames and other guild-level changes re-register through the shared
	// channel so the stored name stays current.
	b.s.AddHandler(func(s *dg.Session, g *dg.GuildUpdate) { b.enqueueGuildUpdate(g) })

	b.s.AddHandler(func(s *dg.Session, i *dg.InteractionCreate) {
		b.enqueue(i.GuildID, GuildEvent{Type: EventTypeInteraction, Interaction: i})
	})
	b.s.AddHandler(func(s *dg.Session, m *dg.MessageCreate) {
		if m.GuildID == "" || m.Author == nil {
			return
		}
		b.enqueue(m.GuildID, GuildEvent{Type: EventTypeMessage, Message: m})
	})
	b.s.AddHandler(func(s *dg.Session, m *dg.GuildMemberAdd) {
		b.enqueue(m.GuildID, GuildEvent{Type: EventTypeMemberJoin, MemberJoin: m})
	})

	go b.route()
	go b.status()
	go b.announceExpiries()

	return &b, nil
}

func (b *Bot) Close() {
	defer b.s.Close()
	defer b.d.Close()
	if b.snap != nil {
		defer b.snap.Close()
	}

	b.cancel()
	close(b.events)
}

func (b *Bot) enqueueGuildUpdate(g *dg.GuildUpdate) {
	select {
	case b.events <- GuildEvent{Type: EventTypeGuildUpdate, GuildUpdate: g}:
	case <-b.ctx.Done():
	}
}

func (b *Bot) route() {
	for {
		select {
		case <-b.ctx.Done():
			return
		case e := <-b.events:
			if e.Type == EventTypeGuildUpdate {
				b.register(e.GuildUpdate.Guild)
			}
		}
	}
}

func (b *Bot) status() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	s := 0
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			var msg string
			switch s {
			case 0:
				count, err := b.d.Count(b.ctx, models.TableGuilds, nil)
				if err != nil {
					b.l.Error("error counting guilds", "error", err)
					continue
				}
				msg = fmt.Sprintf("Guarding %d servers", count)

			case 1:
				count, err := b.d.Count(b.ctx, models.TableWarnings, nil)
				if err != nil {
					b.l.Error("error counting warning ledgers", "error", err)
					continue
				}
				msg = fmt.Sprintf("Tracking %d warning ledgers", count)

			default:
				s = -1
			}

			if err := b.s.UpdateStatusComplex(dg.UpdateStatusData{
				Status: string(dg.StatusOnline),
				Activities: []*dg.Activity{
					{
						Name:  b.s.State.User.Username,
						Type:  dg.ActivityTypeCustom,
						State: msg,
					},
				},
			}); err != nil {
				b.l.Error("error setting bot status", "error", err)
			}

			s++
		}
	}
}

// announceExpiries watches for lockdowns that lapsed on their own timer and
// posts a log entry when one does, so moderators see the guild reopen without
// anyone running a command.
func (b *Bot) announceExpiries() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	locked := make(map[string]bool)

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.mu.RLock()
			guilds := make([]string, 0, len(b.contexts))
			for id := range b.contexts {
				guilds = append(guilds, id)
			}
			b.mu.RUnlock()

			for _, guildID := range guilds {
				now := b.antiraid.Status(guildID).LockedDown
				if locked[guildID] && !now {
					incident := &models.Incident{
						ID:      xid.New().String(),
						Kind:    models.IncidentLockdownExpired,
						GuildID: guildID,
						Reasons: []string{"lockdown duration elapsed"},
						At:      time.Now(),
					}
					res := b.port.SendLog(b.ctx, guildID, incident)
					incident.Record("send_log", res.OK, res.Reason, res.Detail)

					b.l.Info("lockdown expired", "guild", guildID)
				}
				locked[guildID] = now
			}
		}
	}
}

func (b *Bot) ensure(guildID string) *GuildContext {
	b.mu.RLock()
	if guildCtx, exists := b.contexts[guildID]; exists {
		b.mu.RUnlock()
		return guildCtx
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	if guildCtx, exists := b.contexts[guildID]; exists {
		return guildCtx
	}

	ctx, cancel := context.WithCancel(b.ctx)
	guildCtx := &GuildContext{
		Context: ctx,
		Cancel:  cancel,
		Events:  make(chan GuildEvent, 1000),
	}

	b.contexts[guildID] = guildCtx
	return guildCtx
}

func (b *Bot) dispatch(guildID string) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			stack = stack[:runtime.Stack(stack, false)]
			b.l.Error("panic recovered", "guild", guildID, "recovered", r, "stack", stack)
			go b.dispatch(guildID)
		}
	}()

	ctx := b.ensure(guildID)

	go b.monitor(guildID, ctx)

	for {
		select {
		case <-ctx.Context.Done():
			return
		case e := <-ctx.Events:
			switch e.Type {
			case EventTypeInteraction:
				b.handleInteraction(ctx, guildID, e.Interaction)
			case EventTypeMessage:
				b.handleMessage(ctx.Context, e.Message)
			case EventTypeMemberJoin:
				b.handleJoin(ctx.Context, e.MemberJoin)
			}
		}
	}
}

func (b *Bot) handleInteraction(gc *GuildContext, guildID string, i *dg.InteractionCreate) {
	if i == nil || i.Type != dg.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	opts := utils.MapOptions(i)

	h, ok := lookup[data.Name]
	if !ok {
		b.r.Fail(i, utils.Failure{
			Type:    utils.ErrNotFound,
			Message: "No registered command",
		})
		return
	}

	b.l.Info("command issued", "user", i.Member.User.Username, "command", data.Name, "guild", guildID)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := make([]byte, 4096)
				stack = stack[:runtime.Stack(stack, false)]
				b.l.Error("panic recovered", "command", h.Metadata().Name, "guild", guildID, "recovered", r, "stack", stack)
			}
		}()

		if err := h.Handle(gc.Context, handlers.Dependencies{
			Session:     b.s,
			Store:       b.store,
			Warnings:    b.warnings,
			AutoMod:     b.automod,
			AntiRaid:    b.antiraid,
			Port:        b.port,
			Responder:   b.r,
			Logger:      b.l,
			Conf:        b.conf,
			Interaction: i,
			Options:     opts,
		}); err != nil {
			b.l.Error("error handling command", "error", err, "command", data.Name, "guild", guildID)
			b.r.Fail(i, utils.Failure{
				Type:    utils.ErrInternal,
				Message: "Failed to handle command",
				Data:    map[string]any{"error": err},
			})
		}
	}()
}

func (b *Bot) handleMessage(ctx context.Context, m *dg.MessageCreate) {
	b.automod.HandleMessage(ctx, messageEvent(b.s, m))
}

// messageEvent maps a gateway message to the policy's event form. Webhook and
// uncached-author messages arrive with no member payload; the author's bot
// flag comes from the message itself so automated accounts stay exempt either
// way.
func messageEvent(s *dg.Session, m *dg.MessageCreate) models.MessageEvent {
	// The member payload on messages omits the user; patch it in so role
	// and owner resolution has an identity to work with.
	member := m.Member
	if member != nil && member.User == nil {
		patched := *member
		patched.User = m.Author
		member = &patched
	}

	caps := utils.MemberCapabilities(s, m.GuildID, member)
	if m.Author.Bot || m.WebhookID != "" {
		caps.IsBot = true
	}

	return models.MessageEvent{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		Content:   m.Content,
		Author:    caps,
	}
}

func (b *Bot) handleJoin(ctx context.Context, m *dg.GuildMemberAdd) {
	if m.User == nil {
		return
	}

	created, err := dg.SnowflakeTimestamp(m.User.ID)
	if err != nil {
		b.l.Warn("unparseable user snowflake", "user", m.User.ID, "error", err)
		created = time.Now()
	}

	ev := models.JoinEvent{
		GuildID:          m.GuildID,
		UserID:           m.User.ID,
		Username:         m.User.Username,
		AccountCreatedAt: created,
		HasAvatar:        m.User.Avatar != "",
		IsBot:            m.User.Bot,
	}

	if incident := b.antiraid.HandleJoin(ctx, ev); incident != nil &&
		incident.Kind == models.IncidentLockdownRejected {
		return
	}

	b.automod.HandleJoin(ctx, ev)
}

// load pushes the command set to a guild, skipping the API call when the
// hash stored in the guild's settings matches the current set.
func (b *Bot) load(guildID string) {
	b.ensure(guildID)

	start := time.Now()

	var cmds []*dg.ApplicationCommand
	for _, h := range lookup {
		cmd := h.Metadata()
		cmds = append(cmds, &cmd)
	}

	var newHash string
	bytes, err := json.Marshal(cmds)
	if err == nil {
		hash := sha256.Sum256(bytes)
		newHash = fmt.Sprintf("%x", hash)
	}

	oldHash, _ := b.store.Get(b.ctx, guildID, "command_set_hash", "").(string)
	if newHash == oldHash {
		b.l.Info("command set unchanged", "guild", guildID)
		return
	}

	if _, err := b.s.ApplicationCommandBulkOverwrite(b.s.State.User.ID, guildID, cmds); err != nil {
		b.l.Error("error loading guild commands", "error", err, "guild", guildID)
		return
	}

	b.store.Set(b.ctx, guildID, "command_set_hash", newHash)

	b.l.Info("command set loaded", "loaded", len(cmds), "duration", time.Since(start))
}

func (b *Bot) enqueue(guildID string, event GuildEvent) {
	b.mu.RLock()
	ctx, ok := b.contexts[guildID]
	b.mu.RUnlock()

	if !ok {
		b.l.Warn("attempted to enqueue event for unknown guild", "guild", guildID)
		return
	}

	select {
	case ctx.Events <- event:
	case <-ctx.Context.Done():
		b.l.Debug("dropped event for cancelled guild context", "guild", guildID)
	default:
		b.l.Warn("event channel full, dropping event", "guild", guildID)
	}
}

func (b *Bot) register(g *dg.Guild) {
	b.mu.Lock()
	if existing, ok := b.contexts[g.ID]; ok {
		existing.Cancel()
	}

	ctx, cancel := context.WithCancel(b.ctx)
	b.contexts[g.ID] = &GuildContext{
		Context: ctx,
		Cancel:  cancel,
		Events:  make(chan GuildEvent, 1000),
	}
	b.mu.Unlock()

	if err := b.d.PutGuild(b.ctx, models.Guild{ID: g.ID, Name: g.Name}); err != nil {
		b.l.Error("error storing guild", "error", err, "guild", g.ID)
	}

	b.l.Info("registered guild", "id", g.ID, "name", g.Name)

	go b.load(g.ID)
	go b.dispatch(g.ID)
}

func (b *Bot) remove(g *dg.Guild) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if guildCtx, ok := b.contexts[g.ID]; ok {
		guildCtx.Cancel()
		delete(b.contexts, g.ID)
	}

	b.l.Info("removed guild", "id", g.ID)
}

func (b *Bot) monitor(guildID string, ctx *GuildContext) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	var lastWarningTime time.Time
	var consecutiveWarnings int

	for {
		select {
		case <-ctx.Context.Done():
			return
		case <-ticker.C:
			currentLen := len(ctx.Events)
			capacity := cap(ctx.Events)
			fillPercentage := float64(currentLen) / float64(capacity) * 100

			if fillPercentage > 60 {
				now := time.Now()
				if now.Sub(lastWarningTime) > 5*time.Minute {
					consecutiveWarnings = 0
					lastWarningTime = now
				}

				consecutiveWarnings++

				b.l.Warn("event channel filling up",
					"guild", guildID,
					"size", currentLen,
					"capacity", capacity,
					"percentage", fmt.Sprintf("%.1f%%", fillPercentage),
					"consecutive_warnings", consecutiveWarnings)

				if consecutiveWarnings >= 3 {
					b.l.Error("potential stuck handler detected; event channel consistently full",
						"guild", guildID,
						"size", currentLen,
						"capacity", capacity,
						"warnings", consecutiveWarnings)
				}
			}
		}
	}
}
