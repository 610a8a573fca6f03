package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/glotchimo/warden/internal/models"
)

// WarningsBackend is the durable side of the warning ledger.
type WarningsBackend interface {
	GetWarnings(ctx context.Context, guildID string) (map[string][]time.Time, error)
	PutWarnings(ctx context.Context, w models.GuildWarnings) error
	DeleteWarnings(ctx context.Context, guildID string) error
}

// WarningLedger tracks per-guild, per-user warning timestamps. Guilds load
// lazily on first touch; every mutation persists the guild's full document
// immediately. Warning volume is low, so correctness wins over batching.
type WarningLedger struct {
	mu      sync.Mutex
	l       *slog.Logger
	db      WarningsBackend
	now     func() time.Time
	entries map[string]map[string][]time.Time
}

func NewWarningLedger(l *slog.Logger, db WarningsBackend, now func() time.Time) *WarningLedger {
	if now == nil {
		now = time.Now
	}
	return &WarningLedger{
		l:       l,
		db:      db,
		now:     now,
		entries: make(map[string]map[string][]time.Time),
	}
}

func (w *WarningLedger) ensure(ctx context.Context, guildID string) map[string][]time.Time {
	guild, ok := w.entries[guildID]
	if ok {
		return guild
	}

	loaded, err := w.db.GetWarnings(ctx, guildID)
	switch {
	case err == nil:
		guild = loaded
	case errors.Is(err, sql.ErrNoRows):
		guild = make(map[string][]time.Time)
	default:
		w.l.Error("warning load failed, continuing in-memory", "guild", guildID, "error", err)
		guild = make(map[string][]time.Time)
	}

	w.entries[guildID] = guild
	return guild
}

func (w *WarningLedger) persist(ctx context.Context, guildID string) {
	err := w.db.PutWarnings(ctx, models.GuildWarnings{
		GuildID: guildID,
		Entries: w.entries[guildID],
	})
	if err != nil {
		w.l.Error("warning persist failed, in-memory only", "guild", guildID, "error", err)
	}
}

// AddWarning appends a warning timestamp and returns the user's new total.
func (w *WarningLedger) AddWarning(ctx context.Context, guildID, userID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	guild := w.ensure(ctx, guildID)
	guild[userID] = append(guild[userID], w.now())
	w.persist(ctx, guildID)

	return len(guild[userID])
}

func (w *WarningLedger) Count(ctx context.Context, guildID, userID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.ensure(ctx, guildID)[userID])
}

// RecentCount returns warnings issued within the trailing window.
func (w *WarningLedger) RecentCount(ctx context.Context, guildID, userID string, window time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().Add(-window)
	count := 0
	for _, ts := range w.ensure(ctx, guildID)[userID] {
		if ts.After(cutoff) {
			count++
		}
	}
	return count
}

// Clear removes all warnings for a user. Returns false, without touching
// durable state, when there was nothing to clear.
func (w *WarningLedger) Clear(ctx context.Context, guildID, userID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	guild := w.ensure(ctx, guildID)
	if _, ok := guild[userID]; !ok {
		return false
	}

	delete(guild, userID)
	w.persist(ctx, guildID)
	return true
}

// ClearGuild drops the guild's entire ledger, removing the durable row rather
// than persisting an empty document. Returns false when no user had warnings.
func (w *WarningLedger) ClearGuild(ctx context.Context, guildID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	guild := w.ensure(ctx, guildID)
	if len(guild) == 0 {
		return false
	}

	w.entries[guildID] = make(map[string][]time.Time)
	if err := w.db.DeleteWarnings(ctx, guildID); err != nil {
		w.l.Error("warning purge failed, cleared in-memory only", "guild", guildID, "error", err)
	}
	return true
}
