package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/glotchimo/warden/internal/models"
	"github.com/graxinc/errutil"
	"github.com/redis/go-redis/v9"
)

const (
	snapshotTTL = 24 * time.Hour
	keyPrefix   = "warden:guild:"
)

// Snapshots mirrors guild settings documents into Redis so a restarted
// process can warm its cache without hitting Postgres, and so reads survive a
// database outage. Redis is strictly best-effort: a tripped breaker routes
// reads to a small in-memory fallback and writes are dropped silently.
type Snapshots struct {
	c  *redis.Client
	l  *slog.Logger
	cb *CircuitBreaker
	fb *FallbackCache
}

func NewSnapshots(url string, l *slog.Logger) (*Snapshots, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errutil.With(err)
	}

	return &Snapshots{
		c:  redis.NewClient(opt),
		l:  l,
		cb: NewCircuitBreaker(5, 30*time.Second),
		fb: NewFallbackCache(1024),
	}, nil
}

func (s *Snapshots) Close() error {
	return s.c.Close()
}

func (s *Snapshots) Get(ctx context.Context, guildID string) (models.Settings, bool) {
	if !s.cb.Allow() {
		return s.fallback(guildID)
	}

	raw, err := s.c.Get(ctx, keyPrefix+guildID).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.cb.RecordFailure()
			s.l.Warn("snapshot read failed", "guild", guildID, "error", err)
		}
		return s.fallback(guildID)
	}
	s.cb.RecordSuccess()

	var settings models.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		s.l.Warn("snapshot unmarshal failed", "guild", guildID, "error", err)
		return nil, false
	}

	return settings, true
}

func (s *Snapshots) Set(ctx context.Context, guildID string, settings models.Settings) {
	raw, err := json.Marshal(settings)
	if err != nil {
		s.l.Warn("snapshot marshal failed", "guild", guildID, "error", err)
		return
	}

	s.fb.Set(keyPrefix+guildID, raw, snapshotTTL)

	if !s.cb.Allow() {
		return
	}

	if err := s.c.Set(ctx, keyPrefix+guildID, raw, snapshotTTL).Err(); err != nil {
		s.cb.RecordFailure()
		s.l.Warn("snapshot write failed", "guild", guildID, "error", err)
		return
	}
	s.cb.RecordSuccess()
}

func (s *Snapshots) Delete(ctx context.Context, guildID string) {
	s.fb.Delete(keyPrefix + guildID)

	if !s.cb.Allow() {
		return
	}

	if err := s.c.Del(ctx, keyPrefix+guildID).Err(); err != nil {
		s.cb.RecordFailure()
		return
	}
	s.cb.RecordSuccess()
}

func (s *Snapshots) fallback(guildID string) (models.Settings, bool) {
	raw, ok := s.fb.Get(keyPrefix + guildID)
	if !ok {
		return nil, false
	}

	var settings models.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, false
	}

	return settings, true
}
