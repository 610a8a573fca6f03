package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/glotchimo/warden/internal/models"
	"github.com/stretchr/testify/assert"
)

// memWarnings is an in-memory WarningsBackend that can be made to fail.
type memWarnings struct {
	docs    map[string]map[string][]time.Time
	err     error
	puts    int
	deletes int
}

func newMemWarnings() *memWarnings {
	return &memWarnings{docs: make(map[string]map[string][]time.Time)}
}

func (m *memWarnings) GetWarnings(ctx context.Context, guildID string) (map[string][]time.Time, error) {
	if m.err != nil {
		return nil, m.err
	}
	doc, ok := m.docs[guildID]
	if !ok {
		return nil, sql.ErrNoRows
	}

	out := make(map[string][]time.Time, len(doc))
	for user, ts := range doc {
		out[user] = append([]time.Time(nil), ts...)
	}
	return out, nil
}

func (m *memWarnings) PutWarnings(ctx context.Context, w models.GuildWarnings) error {
	if m.err != nil {
		return m.err
	}
	m.puts++

	doc := make(map[string][]time.Time, len(w.Entries))
	for user, ts := range w.Entries {
		doc[user] = append([]time.Time(nil), ts...)
	}
	m.docs[w.GuildID] = doc
	return nil
}

func (m *memWarnings) DeleteWarnings(ctx context.Context, guildID string) error {
	if m.err != nil {
		return m.err
	}
	m.deletes++
	delete(m.docs, guildID)
	return nil
}

func TestWarningLifecycle(t *testing.T) {
	backend := newMemWarnings()
	ledger := NewWarningLedger(slog.Default(), backend, nil)
	ctx := context.Background()

	assert.Equal(t, 0, ledger.Count(ctx, "g", "u"))
	assert.Equal(t, 1, ledger.AddWarning(ctx, "g", "u"))
	assert.Equal(t, 2, ledger.AddWarning(ctx, "g", "u"))
	assert.Equal(t, 2, ledger.Count(ctx, "g", "u"))
	assert.Equal(t, 0, ledger.Count(ctx, "g", "other"))

	assert.True(t, ledger.Clear(ctx, "g", "u"))
	assert.Equal(t, 0, ledger.Count(ctx, "g", "u"))
}

func TestClearNothingSkipsPersist(t *testing.T) {
	backend := newMemWarnings()
	ledger := NewWarningLedger(slog.Default(), backend, nil)
	ctx := context.Background()

	assert.False(t, ledger.Clear(ctx, "g", "u"))
	assert.Equal(t, 0, backend.puts)
}

func TestWarningsPersistAcrossRestart(t *testing.T) {
	backend := newMemWarnings()
	ctx := context.Background()

	first := NewWarningLedger(slog.Default(), backend, nil)
	first.AddWarning(ctx, "g", "u")
	first.AddWarning(ctx, "g", "u")

	// A fresh ledger over the same backend sees the persisted counts.
	second := NewWarningLedger(slog.Default(), backend, nil)
	assert.Equal(t, 2, second.Count(ctx, "g", "u"))
}

func TestClearGuild(t *testing.T) {
	backend := newMemWarnings()
	ledger := NewWarningLedger(slog.Default(), backend, nil)
	ctx := context.Background()

	assert.False(t, ledger.ClearGuild(ctx, "g"))
	assert.Equal(t, 0, backend.deletes)

	ledger.AddWarning(ctx, "g", "u1")
	ledger.AddWarning(ctx, "g", "u2")
	ledger.AddWarning(ctx, "other", "u1")

	assert.True(t, ledger.ClearGuild(ctx, "g"))
	assert.Equal(t, 1, backend.deletes)
	assert.Equal(t, 0, ledger.Count(ctx, "g", "u1"))
	assert.Equal(t, 0, ledger.Count(ctx, "g", "u2"))
	assert.Equal(t, 1, ledger.Count(ctx, "other", "u1"))

	// The durable row is gone, not replaced with an empty document.
	_, ok := backend.docs["g"]
	assert.False(t, ok)

	// A fresh ledger over the same backend starts clean for the guild.
	fresh := NewWarningLedger(slog.Default(), backend, nil)
	assert.Equal(t, 0, fresh.Count(ctx, "g", "u1"))
}

func TestRecentCount(t *testing.T) {
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewWarningLedger(slog.Default(), newMemWarnings(), func() time.Time { return clock })
	ctx := context.Background()

	ledger.AddWarning(ctx, "g", "u")
	clock = clock.Add(20 * time.Hour)
	ledger.AddWarning(ctx, "g", "u")
	clock = clock.Add(10 * time.Hour)

	assert.Equal(t, 2, ledger.Count(ctx, "g", "u"))
	assert.Equal(t, 1, ledger.RecentCount(ctx, "g", "u", 24*time.Hour))
	assert.Equal(t, 0, ledger.RecentCount(ctx, "g", "u", time.Hour))
}

func TestLedgerSurvivesBackendFailure(t *testing.T) {
	backend := newMemWarnings()
	backend.err = errors.New("connection refused")
	ledger := NewWarningLedger(slog.Default(), backend, nil)
	ctx := context.Background()

	// Loads and persists fail but the in-memory ledger keeps counting.
	assert.Equal(t, 1, ledger.AddWarning(ctx, "g", "u"))
	assert.Equal(t, 2, ledger.AddWarning(ctx, "g", "u"))
	assert.Equal(t, 2, ledger.Count(ctx, "g", "u"))
}
