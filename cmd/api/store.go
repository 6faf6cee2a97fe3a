package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hamed0406/alarmwatch/internal/repo"
	"github.com/hamed0406/alarmwatch/internal/repo/memory"
	"github.com/hamed0406/alarmwatch/internal/repo/postgres"
	"github.com/hamed0406/alarmwatch/internal/repo/sqlite"
)

type store struct {
	kind   string
	alarms repo.AlarmStore
	groups repo.GroupStore
	close  func()
}

func (s store) Close() {
	if s.close != nil {
		s.close()
	}
}

// storeKind picks the backend for DATABASE_URL and returns the sqlite path
// when it applies.
func storeKind(dsn string) (kind, path string) {
	switch {
	case dsn == "":
		return "memory", ""
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", ""
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite://")
	case strings.HasPrefix(dsn, "sqlite:"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite:")
	case strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"):
		return "sqlite", dsn
	default:
		return "", ""
	}
}

func openStore(ctx context.Context, dsn string, log *zap.Logger) (store, error) {
	kind, path := storeKind(dsn)
	switch kind {
	case "memory":
		m := memory.New()
		return store{kind: kind, alarms: m, groups: m}, nil
	case "postgres":
		pg, err := postgres.New(ctx, dsn, log)
		if err != nil {
			return store{}, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return store{}, fmt.Errorf("migrate: %w", err)
		}
		return store{kind: kind, alarms: pg, groups: pg, close: pg.Close}, nil
	case "sqlite":
		lite, err := sqlite.Open(ctx, path, log)
		if err != nil {
			return store{}, err
		}
		return store{kind: kind, alarms: lite, groups: lite, close: func() { _ = lite.Close() }}, nil
	}
	return store{}, fmt.Errorf("unsupported DATABASE_URL %q", dsn)
}
