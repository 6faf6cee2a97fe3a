package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/alarmwatch/internal/domain"
	"github.com/hamed0406/alarmwatch/internal/repo"
)

var _ repo.AlarmStore = (*Store)(nil)
var _ repo.GroupStore = (*Store)(nil)

// Schema is applied by Migrate; statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS groups (
  id   BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS alarms (
  id                    BIGSERIAL PRIMARY KEY,
  title                 TEXT NOT NULL,
  description           TEXT,
  alarm_time            TIMESTAMPTZ NOT NULL,
  group_id              BIGINT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
  is_done               BOOLEAN NOT NULL DEFAULT FALSE,
  notify_before_minutes INTEGER
);

CREATE INDEX IF NOT EXISTS idx_alarms_group_time ON alarms (group_id, alarm_time);
`

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	// Heroku-style URLs use the postgres:// scheme.
	if strings.HasPrefix(dsn, "postgres://") {
		dsn = "postgresql://" + strings.TrimPrefix(dsn, "postgres://")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ---- AlarmStore ----

const alarmColumns = `id, title, COALESCE(description, ''), alarm_time, COALESCE(notify_before_minutes, 0), is_done, group_id`

func scanAlarm(row pgx.Row) (domain.Alarm, error) {
	var (
		a  domain.Alarm
		at time.Time
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Description, &at, &a.NotifyBeforeMinutes, &a.IsDone, &a.GroupID); err != nil {
		return a, err
	}
	a.AlarmTime = domain.NewTimestamp(at)
	return a, nil
}

func (s *Store) AddAlarm(ctx context.Context, a *domain.Alarm) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO alarms (title, description, alarm_time, group_id, is_done, notify_before_minutes)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		a.Title, a.Description, a.AlarmTime.Time, int64(a.GroupID), a.IsDone, a.NotifyBeforeMinutes,
	).Scan(&a.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return repo.ErrNotFound
		}
		return fmt.Errorf("insert alarm: %w", err)
	}
	return nil
}

func (s *Store) queryAlarms(ctx context.Context, q string, args ...any) ([]domain.Alarm, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}
	defer rows.Close()

	var out []domain.Alarm
	for rows.Next() {
		a, err := scanAlarm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alarm: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListAlarms(ctx context.Context) ([]domain.Alarm, error) {
	return s.queryAlarms(ctx, `SELECT `+alarmColumns+` FROM alarms ORDER BY id`)
}

func (s *Store) AlarmsByGroup(ctx context.Context, id domain.GroupID) ([]domain.Alarm, error) {
	return s.queryAlarms(ctx,
		`SELECT `+alarmColumns+` FROM alarms WHERE group_id = $1 ORDER BY alarm_time, id`, int64(id))
}

func (s *Store) DeleteAlarm(ctx context.Context, id domain.AlarmID) (*domain.Alarm, error) {
	a, err := scanAlarm(s.pool.QueryRow(ctx,
		`DELETE FROM alarms WHERE id = $1 RETURNING `+alarmColumns, int64(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("delete alarm: %w", err)
	}
	return &a, nil
}

func (s *Store) ToggleDone(ctx context.Context, id domain.AlarmID) (*domain.Alarm, error) {
	a, err := scanAlarm(s.pool.QueryRow(ctx,
		`UPDATE alarms SET is_done = NOT is_done WHERE id = $1 RETURNING `+alarmColumns, int64(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("toggle alarm: %w", err)
	}
	return &a, nil
}

// ---- GroupStore ----

func (s *Store) AddGroup(ctx context.Context, g *domain.Group) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO groups (name) VALUES ($1) RETURNING id`, g.Name).Scan(&g.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repo.ErrConflict
		}
		return fmt.Errorf("insert group: %w", err)
	}
	return nil
}

func (s *Store) ListGroups(ctx context.Context) ([]domain.Group, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()
	var out []domain.Group
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) GetGroup(ctx context.Context, id domain.GroupID) (*domain.Group, error) {
	var g domain.Group
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM groups WHERE id = $1`, int64(id)).Scan(&g.ID, &g.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return &g, nil
}

func (s *Store) DeleteGroup(ctx context.Context, id domain.GroupID) (*domain.Group, error) {
	g, err := s.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(g.Name, domain.GeneralGroup) {
		return nil, repo.ErrProtected
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM alarms WHERE group_id = $1`, int64(id)); err != nil {
		return nil, fmt.Errorf("delete group alarms: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM groups WHERE id = $1`, int64(id)); err != nil {
		return nil, fmt.Errorf("delete group: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return g, nil
}

func (s *Store) EnsureGeneral(ctx context.Context) (*domain.Group, error) {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO groups (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, domain.GeneralGroup); err != nil {
		return nil, fmt.Errorf("seed general: %w", err)
	}
	var g domain.Group
	if err := s.pool.QueryRow(ctx,
		`SELECT id, name FROM groups WHERE name = $1`, domain.GeneralGroup).Scan(&g.ID, &g.Name); err != nil {
		return nil, fmt.Errorf("load general: %w", err)
	}
	s.log.Debug("general_group_ready", zap.Int64("group_id", int64(g.ID)))
	return &g, nil
}
