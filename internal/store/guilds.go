package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/glotchimo/warden/internal/cache"
	"github.com/glotchimo/warden/internal/models"
)

// SettingsBackend is the durable side of the guild store. *database.Database
// satisfies it; tests substitute an in-memory fake.
type SettingsBackend interface {
	GetGuild(ctx context.Context, id string) (*models.Guild, error)
	PutGuild(ctx context.Context, guild models.Guild) error
	PutSettings(ctx context.Context, guildID string, settings models.Settings) error
}

// GuildStore is a read-through, write-through cache over per-guild settings
// documents. Every Set updates the cache first and then persists the full
// document; a persist failure returns false and leaves the session running on
// cache-only truth.
type GuildStore struct {
	mu    sync.Mutex
	l     *slog.Logger
	db    SettingsBackend
	snap  *cache.Snapshots
	cache map[string]models.Settings
}

// NewGuildStore builds a store. snap may be nil when no Redis mirror is
// configured.
func NewGuildStore(l *slog.Logger, db SettingsBackend, snap *cache.Snapshots) *GuildStore {
	return &GuildStore{
		l:     l,
		db:    db,
		snap:  snap,
		cache: make(map[string]models.Settings),
	}
}

// load returns the cached document for a guild, pulling from the snapshot
// mirror or the database on first touch. A guild never seen before starts
// with defaults and gets its row created lazily.
func (s *GuildStore) load(ctx context.Context, guildID string) models.Settings {
	if settings, ok := s.cache[guildID]; ok {
		return settings
	}

	if s.snap != nil {
		if settings, ok := s.snap.Get(ctx, guildID); ok {
			s.cache[guildID] = settings
			return settings
		}
	}

	guild, err := s.db.GetGuild(ctx, guildID)
	switch {
	case err == nil:
		settings := guild.Settings
		if settings == nil {
			settings = models.DefaultSettings()
		}
		s.cache[guildID] = settings
		return settings

	case errors.Is(err, sql.ErrNoRows):
		settings := models.DefaultSettings()
		s.cache[guildID] = settings
		if err := s.db.PutGuild(ctx, models.Guild{ID: guildID, Settings: settings}); err != nil {
			s.l.Warn("guild row creation failed, continuing cache-only", "guild", guildID, "error", err)
		}
		return settings

	default:
		s.l.Error("guild settings load failed, continuing cache-only", "guild", guildID, "error", err)
		settings := models.DefaultSettings()
		s.cache[guildID] = settings
		return settings
	}
}

// Get resolves a dot-path key ("roles.muted") against the guild's document,
// returning def when the key is missing or null.
func (s *GuildStore) Get(ctx context.Context, guildID, key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value any = map[string]any(s.load(ctx, guildID))
	for _, part := range strings.Split(key, ".") {
		m, ok := value.(map[string]any)
		if !ok {
			return def
		}
		value, ok = m[part]
		if !ok {
			return def
		}
	}

	if value == nil {
		return def
	}
	return value
}

// Set writes a dot-path key, creating intermediate maps as needed, and
// persists the full document. Returns false when the durable write failed;
// the in-memory value still took effect for this session.
func (s *GuildStore) Set(ctx context.Context, guildID, key string, value any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.load(ctx, guildID)

	target := map[string]any(settings)
	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := target[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			target[part] = next
		}
		target = next
	}
	target[parts[len(parts)-1]] = value

	if s.snap != nil {
		s.snap.Set(ctx, guildID, settings)
	}

	if err := s.db.PutSettings(ctx, guildID, settings); err != nil {
		s.l.Error("settings persist failed, cache-only until retry", "guild", guildID, "key", key, "error", err)
		return false
	}

	return true
}

// Full returns a shallow copy of the guild's document for display.
func (s *GuildStore) Full(ctx context.Context, guildID string) models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.load(ctx, guildID)
	out := make(models.Settings, len(settings))
	for k, v := range settings {
		out[k] = v
	}
	return out
}

// Reload drops the cached document so the next access rereads durable state.
func (s *GuildStore) Reload(ctx context.Context, guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cache, guildID)
	if s.snap != nil {
		s.snap.Delete(ctx, guildID)
	}
}

func (s *GuildStore) LogChannelID(ctx context.Context, guildID string) string {
	id, _ := s.Get(ctx, guildID, "log_channel_id", "").(string)
	return id
}

func (s *GuildStore) SetLogChannelID(ctx context.Context, guildID, channelID string) bool {
	return s.Set(ctx, guildID, "log_channel_id", channelID)
}

func (s *GuildStore) IsSetupComplete(ctx context.Context, guildID string) bool {
	done, _ := s.Get(ctx, guildID, "setup_complete", false).(bool)
	return done
}

func (s *GuildStore) MarkSetupComplete(ctx context.Context, guildID string) bool {
	return s.Set(ctx, guildID, "setup_complete", true)
}

func (s *GuildStore) RoleID(ctx context.Context, guildID, key string) string {
	id, _ := s.Get(ctx, guildID, "roles."+key, "").(string)
	return id
}

func (s *GuildStore) SetRoleID(ctx context.Context, guildID, key, roleID string) bool {
	return s.Set(ctx, guildID, "roles."+key, roleID)
}

func (s *GuildStore) ChannelID(ctx context.Context, guildID, key string) string {
	id, _ := s.Get(ctx, guildID, "channels."+key, "").(string)
	return id
}

func (s *GuildStore) SetChannelID(ctx context.Context, guildID, key, channelID string) bool {
	return s.Set(ctx, guildID, "channels."+key, channelID)
}
