package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/glotchimo/warden/internal/models"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/graxinc/errutil"
	_ "github.com/lib/pq"
)

type Database struct {
	l       *slog.Logger
	db      *sql.DB
	builder sq.StatementBuilderType
}

func NewDatabase(l *slog.Logger, databaseURL string) (*Database, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, errutil.With(err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	cache := sq.NewStmtCache(db)
	database := Database{l: l, db: db, builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(cache)}

	if err := database.Migrate(databaseURL); err != nil {
		return nil, errutil.With(err)
	}

	return &database, nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

func (db *Database) Migrate(databaseURL string) error {
	m, err := migrate.New("file://migrations", databaseURL)
	if err != nil {
		return errutil.With(err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errutil.With(err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return errutil.With(err)
	}

	db.l.Info("migrations applied", "version", version, "dirty", dirty)

	return nil
}

func (db *Database) Update(ctx context.Context, table models.Table, where sq.Eq, updates map[string]any) error {
	updates["updated"] = time.Now().UTC()
	q := db.builder.
		Update(string(table)).
		SetMap(updates).
		Where(where)
	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (db *Database) Delete(ctx context.Context, table models.Table, where sq.Eq) error {
	q := db.builder.
		Delete(string(table)).
		Where(where)

	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (db *Database) Count(ctx context.Context, table models.Table, where sq.Eq) (int, error) {
	var count int

	q := db.builder.
		Select("COUNT(*)").
		From(string(table)).
		Where(where)

	if err := q.QueryRowContext(ctx).Scan(&count); err != nil {
		return count, errutil.With(err)
	}

	return count, nil
}

func (db *Database) PutGuild(ctx context.Context, guild models.Guild) error {
	m := guild.Map()
	m["created"] = time.Now().UTC()
	q := db.builder.
		Insert(string(models.TableGuilds)).
		SetMap(m).
		Suffix(`ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`)
	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}

func (db *Database) GetGuild(ctx context.Context, id string) (*models.Guild, error) {
	var g models.Guild
	var settingsRaw []byte

	q := db.builder.
		Select(
			"id",
			"name",
			"settings",
			"created",
			"updated",
			"deleted").
		From(string(models.TableGuilds)).
		Where(sq.Eq{"id": id})

	if err := q.QueryRowContext(ctx).Scan(
		&g.ID,
		&g.Name,
		&settingsRaw,
		&g.Created,
		&g.Updated,
		&g.Deleted,
	); err != nil {
		return nil, errutil.Wrap(err)
	}

	if err := json.Unmarshal(settingsRaw, &g.Settings); err != nil {
		return nil, errutil.With(err)
	}

	return &g, nil
}

// PutSettings replaces a guild's full settings document.
func (db *Database) PutSettings(ctx context.Context, guildID string, settings models.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return errutil.With(err)
	}

	return db.Update(ctx, models.TableGuilds, sq.Eq{"id": guildID}, map[string]any{
		"settings": raw,
	})
}

// GetWarnings loads a guild's warning document. sql.ErrNoRows means the guild
// has never had a warning recorded.
func (db *Database) GetWarnings(ctx context.Context, guildID string) (map[string][]time.Time, error) {
	var raw []byte

	q := db.builder.
		Select("entries").
		From(string(models.TableWarnings)).
		Where(sq.Eq{"guild_id": guildID})

	if err := q.QueryRowContext(ctx).Scan(&raw); err != nil {
		return nil, errutil.Wrap(err)
	}

	entries := make(map[string][]time.Time)
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, errutil.With(err)
	}

	return entries, nil
}

// PutWarnings upserts a guild's full warning document.
func (db *Database) PutWarnings(ctx context.Context, w models.GuildWarnings) error {
	m := w.Map()
	m["created"] = time.Now().UTC()
	q := db.builder.
		Insert(string(models.TableWarnings)).
		SetMap(m).
		Suffix(`ON CONFLICT (guild_id) DO UPDATE SET entries = EXCLUDED.entries, updated = NOW()`)
	if _, err := q.ExecContext(ctx); err != nil {
		return errutil.With(err)
	}

	return nil
}

// DeleteWarnings removes a guild's warning document entirely.
func (db *Database) DeleteWarnings(ctx context.Context, guildID string) error {
	return db.Delete(ctx, models.TableWarnings, sq.Eq{"guild_id": guildID})
}
