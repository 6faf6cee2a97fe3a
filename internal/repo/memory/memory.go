package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hamed0406/alarmwatch/internal/domain"
	"github.com/hamed0406/alarmwatch/internal/repo"
)

type Store struct {
	mu        sync.RWMutex
	alarms    map[domain.AlarmID]*domain.Alarm
	groups    map[domain.GroupID]*domain.Group
	nextAlarm domain.AlarmID
	nextGroup domain.GroupID
}

func New() *Store {
	return &Store{
		alarms: make(map[domain.AlarmID]*domain.Alarm),
		groups: make(map[domain.GroupID]*domain.Group),
	}
}

// ---- AlarmStore ----

func (m *Store) AddAlarm(ctx context.Context, a *domain.Alarm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[a.GroupID]; !ok {
		return repo.ErrNotFound
	}
	m.nextAlarm++
	a.ID = m.nextAlarm
	cp := *a
	m.alarms[a.ID] = &cp
	return nil
}

func (m *Store) ListAlarms(ctx context.Context) ([]domain.Alarm, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Alarm, 0, len(m.alarms))
	for _, a := range m.alarms {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) AlarmsByGroup(ctx context.Context, id domain.GroupID) ([]domain.Alarm, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Alarm
	for _, a := range m.alarms {
		if a.GroupID == id {
			out = append(out, *a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].AlarmTime.Equal(out[j].AlarmTime.Time) {
			return out[i].ID < out[j].ID
		}
		return out[i].AlarmTime.Before(out[j].AlarmTime.Time)
	})
	return out, nil
}

func (m *Store) DeleteAlarm(ctx context.Context, id domain.AlarmID) (*domain.Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alarms[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	delete(m.alarms, id)
	cp := *a
	return &cp, nil
}

func (m *Store) ToggleDone(ctx context.Context, id domain.AlarmID) (*domain.Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alarms[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	a.IsDone = !a.IsDone
	cp := *a
	return &cp, nil
}

// ---- GroupStore ----

func (m *Store) AddGroup(ctx context.Context, g *domain.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.groups {
		if existing.Name == g.Name {
			return repo.ErrConflict
		}
	}
	m.nextGroup++
	g.ID = m.nextGroup
	cp := *g
	m.groups[g.ID] = &cp
	return nil
}

func (m *Store) ListGroups(ctx context.Context) ([]domain.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) GetGroup(ctx context.Context, id domain.GroupID) (*domain.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *Store) DeleteGroup(ctx context.Context, id domain.GroupID) (*domain.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	if strings.EqualFold(g.Name, domain.GeneralGroup) {
		return nil, repo.ErrProtected
	}
	for aid, a := range m.alarms {
		if a.GroupID == id {
			delete(m.alarms, aid)
		}
	}
	delete(m.groups, id)
	cp := *g
	return &cp, nil
}

func (m *Store) EnsureGeneral(ctx context.Context) (*domain.Group, error) {
	m.mu.Lock()
	for _, g := range m.groups {
		if g.Name == domain.GeneralGroup {
			cp := *g
			m.mu.Unlock()
			return &cp, nil
		}
	}
	m.mu.Unlock()
	g := &domain.Group{Name: domain.GeneralGroup}
	if err := m.AddGroup(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}
