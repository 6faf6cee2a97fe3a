package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/hamed0406/alarmwatch/internal/domain"
	"github.com/hamed0406/alarmwatch/internal/repo"
)

var _ repo.AlarmStore = (*Store)(nil)
var _ repo.GroupStore = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS groups (
  id   INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS alarms (
  id                    INTEGER PRIMARY KEY AUTOINCREMENT,
  title                 TEXT NOT NULL,
  description           TEXT,
  alarm_time            TEXT NOT NULL,
  group_id              INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
  is_done               INTEGER NOT NULL DEFAULT 0,
  notify_before_minutes INTEGER
);

CREATE INDEX IF NOT EXISTS idx_alarms_group_time ON alarms (group_id, alarm_time);
`

// Times are stored as UTC RFC 3339 so lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; modernc serialises anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// ---- AlarmStore ----

const alarmColumns = `id, title, COALESCE(description, ''), alarm_time, COALESCE(notify_before_minutes, 0), is_done, group_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanAlarm(row scanner) (domain.Alarm, error) {
	var (
		a    domain.Alarm
		at   string
		done int
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Description, &at, &a.NotifyBeforeMinutes, &done, &a.GroupID); err != nil {
		return a, err
	}
	t, err := time.Parse(timeLayout, at)
	if err != nil {
		return a, fmt.Errorf("alarm %d time: %w", a.ID, err)
	}
	a.AlarmTime = domain.NewTimestamp(t)
	a.IsDone = done != 0
	return a, nil
}

func (s *Store) AddAlarm(ctx context.Context, a *domain.Alarm) error {
	if _, err := s.GetGroup(ctx, a.GroupID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO alarms (title, description, alarm_time, group_id, is_done, notify_before_minutes)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.Title, a.Description, a.AlarmTime.UTC().Format(timeLayout), int64(a.GroupID), boolInt(a.IsDone), a.NotifyBeforeMinutes)
	if err != nil {
		return fmt.Errorf("insert alarm: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert alarm id: %w", err)
	}
	a.ID = domain.AlarmID(id)
	return nil
}

func (s *Store) queryAlarms(ctx context.Context, q string, args ...any) ([]domain.Alarm, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
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
		`SELECT `+alarmColumns+` FROM alarms WHERE group_id = ? ORDER BY alarm_time, id`, int64(id))
}

func (s *Store) getAlarm(ctx context.Context, id domain.AlarmID) (*domain.Alarm, error) {
	a, err := scanAlarm(s.db.QueryRowContext(ctx,
		`SELECT `+alarmColumns+` FROM alarms WHERE id = ?`, int64(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get alarm: %w", err)
	}
	return &a, nil
}

func (s *Store) DeleteAlarm(ctx context.Context, id domain.AlarmID) (*domain.Alarm, error) {
	a, err := s.getAlarm(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM alarms WHERE id = ?`, int64(id)); err != nil {
		return nil, fmt.Errorf("delete alarm: %w", err)
	}
	return a, nil
}

func (s *Store) ToggleDone(ctx context.Context, id domain.AlarmID) (*domain.Alarm, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alarms SET is_done = CASE is_done WHEN 0 THEN 1 ELSE 0 END WHERE id = ?`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("toggle alarm: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, repo.ErrNotFound
	}
	return s.getAlarm(ctx, id)
}

// ---- GroupStore ----

func (s *Store) AddGroup(ctx context.Context, g *domain.Group) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO groups (name) VALUES (?)`, g.Name)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return repo.ErrConflict
		}
		return fmt.Errorf("insert group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert group id: %w", err)
	}
	g.ID = domain.GroupID(id)
	return nil
}

func (s *Store) ListGroups(ctx context.Context) ([]domain.Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM groups ORDER BY name`)
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
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM groups WHERE id = ?`, int64(id)).Scan(&g.ID, &g.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM alarms WHERE group_id = ?`, int64(id)); err != nil {
		return nil, fmt.Errorf("delete group alarms: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, int64(id)); err != nil {
		return nil, fmt.Errorf("delete group: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return g, nil
}

func (s *Store) EnsureGeneral(ctx context.Context) (*domain.Group, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO groups (name) VALUES (?)`, domain.GeneralGroup); err != nil {
		return nil, fmt.Errorf("seed general: %w", err)
	}
	var g domain.Group
	if err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM groups WHERE name = ?`, domain.GeneralGroup).Scan(&g.ID, &g.Name); err != nil {
		return nil, fmt.Errorf("load general: %w", err)
	}
	s.log.Debug("general_group_ready", zap.Int64("group_id", int64(g.ID)))
	return &g, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
