// Package postgres stores participant history in PostgreSQL, one row per
// participant with the session logs kept as a jsonb array.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/zhouzirui/standup/backend/internal/model/participant"
)

//go:embed migrations/*.sql
var migrations embed.FS

const selectColumns = `SELECT name, project, role, last_session, logs FROM participants`

const upsertSQL = `
INSERT INTO participants (name, project, role, last_session, logs)
VALUES ($1, $2, $3, $4, jsonb_build_array($5::jsonb))
ON CONFLICT ((lower(name))) DO UPDATE SET
    name         = EXCLUDED.name,
    project      = EXCLUDED.project,
    role         = EXCLUDED.role,
    last_session = EXCLUDED.last_session,
    logs         = participants.logs || EXCLUDED.logs`

// Store implements participant.Store with a pgx pool.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	now     func() time.Time
}

// Open creates the pool, pings it and applies pending migrations.
func Open(ctx context.Context, uri string, timeout time.Duration) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(uri)
	if err != nil {
		return nil, fmt.Errorf("parse postgres uri: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool, timeout: timeout, now: time.Now}, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Pool exposes the underlying pool for the migrate command.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) Connected() bool { return s.pool != nil }

func (s *Store) Get(ctx context.Context, name string) (participant.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rec, err := s.queryOne(ctx, selectColumns+` WHERE name = $1 LIMIT 1`, name)
	if errors.Is(err, pgx.ErrNoRows) {
		rec, err = s.queryOne(ctx, selectColumns+` WHERE lower(name) = lower($1) ORDER BY id LIMIT 1`, name)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return participant.Record{}, participant.ErrNotFound
	}
	if err != nil {
		return participant.Record{}, fmt.Errorf("find participant %q: %w", name, err)
	}
	return rec, nil
}

func (s *Store) queryOne(ctx context.Context, query, name string) (participant.Record, error) {
	var (
		rec         participant.Record
		lastSession *time.Time
		logs        []byte
	)

	err := s.pool.QueryRow(ctx, query, name).Scan(&rec.Name, &rec.Project, &rec.Role, &lastSession, &logs)
	if err != nil {
		return participant.Record{}, err
	}

	if lastSession != nil {
		rec.LastSession = *lastSession
	}
	if err := json.Unmarshal(logs, &rec.Logs); err != nil {
		return participant.Record{}, fmt.Errorf("decode logs: %w", err)
	}
	return rec, nil
}

func (s *Store) Update(ctx context.Context, name string, draft participant.Draft) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now().UTC()
	entry, err := json.Marshal(draft.Log(now))
	if err != nil {
		return fmt.Errorf("encode session log: %w", err)
	}

	if _, err := s.pool.Exec(ctx, upsertSQL, name, draft.Project, draft.Role, now, string(entry)); err != nil {
		return fmt.Errorf("update participant %q: %w", name, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]participant.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT name, project FROM participants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (participant.Summary, error) {
		var item participant.Summary
		err := row.Scan(&item.Name, &item.Project)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan participants: %w", err)
	}
	return out, nil
}

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}
