package models

import (
	"encoding/json"
	"time"
)

// Settings is the per-guild configuration document. It is stored as a single
// JSONB column and addressed with dot-paths (e.g. "roles.muted"), so the
// in-memory form stays a nested map rather than a fixed struct.
type Settings map[string]any

// DefaultSettings returns the document a guild starts with before any
// configuration has been written.
func DefaultSettings() Settings {
	return Settings{
		"log_channel_id": nil,
		"setup_complete": false,
		"roles": map[string]any{
			"muted":     nil,
			"moderator": nil,
		},
		"channels": map[string]any{
			"logs": nil,
		},
	}
}

type Guild struct {
	ID       string
	Name     string
	Settings Settings
	Created  time.Time
	Updated  time.Time
	Deleted  *time.Time
}

func (g Guild) Map() map[string]any {
	settings, _ := json.Marshal(g.Settings)

	return map[string]any{
		"id":       g.ID,
		"name":     g.Name,
		"settings": settings,
	}
}

// GuildWarnings is the durable form of a guild's warning ledger: one row per
// guild holding user ID -> ordered RFC3339 warning timestamps.
type GuildWarnings struct {
	GuildID string
	Entries map[string][]time.Time
}

func (w GuildWarnings) Map() map[string]any {
	entries, _ := json.Marshal(w.Entries)

	return map[string]any{
		"guild_id": w.GuildID,
		"entries":  entries,
	}
}
