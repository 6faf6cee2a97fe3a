package repo

import (
	"context"
	"errors"

	"github.com/hamed0406/alarmwatch/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("already exists")
	ErrProtected = errors.New("protected")
)

// Ports (interfaces); memory, sqlite and postgres adapters implement both.
type AlarmStore interface {
	AddAlarm(ctx context.Context, a *domain.Alarm) error
	ListAlarms(ctx context.Context) ([]domain.Alarm, error)
	// AlarmsByGroup returns the group's alarms ordered by alarm_time.
	AlarmsByGroup(ctx context.Context, id domain.GroupID) ([]domain.Alarm, error)
	DeleteAlarm(ctx context.Context, id domain.AlarmID) (*domain.Alarm, error)
	// ToggleDone flips is_done and returns the updated alarm.
	ToggleDone(ctx context.Context, id domain.AlarmID) (*domain.Alarm, error)
}

type GroupStore interface {
	// AddGroup returns ErrConflict for a duplicate name.
	AddGroup(ctx context.Context, g *domain.Group) error
	ListGroups(ctx context.Context) ([]domain.Group, error)
	GetGroup(ctx context.Context, id domain.GroupID) (*domain.Group, error)
	// DeleteGroup removes the group and its alarms. The General group is
	// ErrProtected.
	DeleteGroup(ctx context.Context, id domain.GroupID) (*domain.Group, error)
	// EnsureGeneral creates the General group when it is missing.
	EnsureGeneral(ctx context.Context) (*domain.Group, error)
}
