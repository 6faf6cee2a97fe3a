package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/hamed0406/alarmwatch/internal/client"
	"github.com/hamed0406/alarmwatch/internal/domain"
	"github.com/hamed0406/alarmwatch/internal/metrics"
	"github.com/hamed0406/alarmwatch/internal/notify"
)

// ---- fakes ----

type fakeSource struct {
	mu     sync.Mutex
	alarms []domain.Alarm
	errs   []error // consumed one per call before alarms are served
	calls  int
}

func (f *fakeSource) Alarms(ctx context.Context) ([]domain.Alarm, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return f.alarms, nil
}

type memNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (m *memNotifier) Send(ctx context.Context, n notify.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

func (m *memNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeSounds struct {
	mu      sync.Mutex
	plays   []string
	stopped []string
}

func (f *fakeSounds) Play(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays = append(f.plays, key)
	return nil
}

func (f *fakeSounds) Stop(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, key)
	return true
}

type fakeWindow struct{ focused atomic.Int32 }

func (f *fakeWindow) Focus(ctx context.Context) error {
	f.focused.Add(1)
	return nil
}

type countingPermission struct {
	*notify.StaticPermission
	requests atomic.Int32
}

func (c *countingPermission) Request(ctx context.Context) (notify.PermissionState, error) {
	c.requests.Add(1)
	return c.StaticPermission.Request(ctx)
}

type harness struct {
	src    *fakeSource
	sent   *memNotifier
	center *notify.Center
	sounds *fakeSounds
	window *fakeWindow
	perm   *countingPermission
	poller *Poller
	now    time.Time
}

func newHarness(state, answer notify.PermissionState, cfg PollerConfig, alarms ...domain.Alarm) *harness {
	h := &harness{
		src:    &fakeSource{alarms: alarms},
		sent:   &memNotifier{},
		sounds: &fakeSounds{},
		window: &fakeWindow{},
		perm:   &countingPermission{StaticPermission: notify.NewStaticPermission(state, answer)},
		now:    time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC),
	}
	h.center = notify.NewCenter(zap.NewNop(), h.sent)
	h.poller = NewPoller(zap.NewNop(), h.src, h.center, h.sounds, h.perm, h.window, cfg)
	h.poller.now = func() time.Time { return h.now }
	return h
}

func at(now time.Time, d time.Duration) domain.Timestamp { return domain.NewTimestamp(now.Add(d)) }

var base = time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ---- tests ----

func TestRunOnce_DueAlarmNotifiesWithTagAndSound(t *testing.T) {
	h := newHarness(notify.Granted, "", PollerConfig{},
		domain.Alarm{ID: 1, Title: "Standup", AlarmTime: at(base, 5*time.Minute), NotifyBeforeMinutes: 10},
		domain.Alarm{ID: 2, Title: "Lunch", AlarmTime: at(base, 30*time.Minute), NotifyBeforeMinutes: 5},
	)

	due, err := h.poller.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if due != 1 || h.sent.count() != 1 {
		t.Fatalf("want exactly one notification, due=%d sent=%d", due, h.sent.count())
	}
	n := h.sent.sent[0]
	if n.Tag != "alarm-1" || n.Title != "Standup" || n.Body != "Time!" || !n.RequireInteraction {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if len(h.sounds.plays) != 1 || h.sounds.plays[0] != "1" {
		t.Fatalf("sound should loop under alarm id: %v", h.sounds.plays)
	}
}

func TestRunOnce_DoneAndFutureAlarmsNeverNotify(t *testing.T) {
	h := newHarness(notify.Granted, "", PollerConfig{},
		domain.Alarm{ID: 1, AlarmTime: at(base, -time.Hour), IsDone: true},
		domain.Alarm{ID: 2, AlarmTime: at(base, 2*time.Hour), NotifyBeforeMinutes: 60, IsDone: true},
		domain.Alarm{ID: 3, AlarmTime: at(base, time.Minute)},
	)
	due, err := h.poller.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if due != 0 || h.sent.count() != 0 || len(h.sounds.plays) != 0 {
		t.Fatalf("no alarm should fire: due=%d sent=%d", due, h.sent.count())
	}
}

func TestRunOnce_RepeatsEveryCycleWhileDue(t *testing.T) {
	h := newHarness(notify.Granted, "", PollerConfig{},
		domain.Alarm{ID: 4, Title: "Pills", Description: "blue one", AlarmTime: at(base, 0)},
	)
	for i := 0; i < 3; i++ {
		if _, err := h.poller.RunOnce(context.Background()); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
	}
	if h.sent.count() != 3 {
		t.Fatalf("want one notification per cycle, got %d", h.sent.count())
	}
	if h.sent.sent[0].Body != "blue one" {
		t.Fatalf("description should be the body: %q", h.sent.sent[0].Body)
	}
	if got := len(h.center.Active()); got != 1 {
		t.Fatalf("same tag replaces the previous notification, active=%d", got)
	}
}

func TestRunOnce_FetchFailureFiresNothing(t *testing.T) {
	h := newHarness(notify.Granted, "", PollerConfig{},
		domain.Alarm{ID: 1, AlarmTime: at(base, 0)},
	)
	h.src.errs = []error{
		&client.StatusError{Code: 503},
		errors.New("connection refused"),
	}

	for i := 0; i < 2; i++ {
		if _, err := h.poller.RunOnce(context.Background()); err == nil {
			t.Fatalf("cycle %d: want error", i)
		}
	}
	if h.sent.count() != 0 {
		t.Fatalf("failed fetch must not notify")
	}

	if _, err := h.poller.RunOnce(context.Background()); err != nil {
		t.Fatalf("recovered cycle: %v", err)
	}
	if h.sent.count() != 1 {
		t.Fatalf("next cycle should notify, got %d", h.sent.count())
	}
}

func TestRunOnce_DeniedDoesNothing(t *testing.T) {
	h := newHarness(notify.Denied, notify.Granted, PollerConfig{},
		domain.Alarm{ID: 1, AlarmTime: at(base, 0)},
	)
	if _, err := h.poller.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if h.sent.count() != 0 || len(h.sounds.plays) != 0 {
		t.Fatalf("denied permission must not notify")
	}
	if h.perm.requests.Load() != 0 {
		t.Fatalf("denied permission must not be re-requested")
	}
}

func TestClick_StopsSoundAndFocuses(t *testing.T) {
	h := newHarness(notify.Granted, "", PollerConfig{},
		domain.Alarm{ID: 9, Title: "Call", AlarmTime: at(base, 0)},
	)
	_, _ = h.poller.RunOnce(context.Background())

	if !h.center.Click(context.Background(), "alarm-9") {
		t.Fatalf("click handler should be registered")
	}
	if len(h.sounds.stopped) != 1 || h.sounds.stopped[0] != "9" {
		t.Fatalf("click should stop the alarm's sound: %v", h.sounds.stopped)
	}
	if h.window.focused.Load() != 1 {
		t.Fatalf("click should focus the app window")
	}
	if len(h.center.Active()) != 0 {
		t.Fatalf("click should close the notification")
	}
}

func TestRun_ContinuesAfterFailures(t *testing.T) {
	h := newHarness(notify.Granted, "", PollerConfig{Interval: 5 * time.Millisecond},
		domain.Alarm{ID: 1, AlarmTime: at(base, 0)},
	)
	h.src.errs = []error{errors.New("boom"), &client.StatusError{Code: 500}}

	h.poller.Start(context.Background())
	defer h.poller.Stop()

	waitFor(t, "notification after failed cycles", func() bool { return h.sent.count() > 0 })
	if !h.poller.Running() {
		t.Fatalf("poller should still be running")
	}
}

func TestStartStop(t *testing.T) {
	h := newHarness(notify.Granted, "", PollerConfig{Interval: time.Millisecond})
	h.poller.Start(context.Background())
	h.poller.Start(context.Background()) // no second loop
	waitFor(t, "a few cycles", func() bool {
		h.src.mu.Lock()
		defer h.src.mu.Unlock()
		return h.src.calls >= 3
	})
	h.poller.Stop()
	if h.poller.Running() {
		t.Fatalf("poller should be stopped")
	}

	h.src.mu.Lock()
	calls := h.src.calls
	h.src.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	h.src.mu.Lock()
	defer h.src.mu.Unlock()
	if h.src.calls != calls {
		t.Fatalf("no cycles after Stop: %d -> %d", calls, h.src.calls)
	}
}

func TestDefaultPermission_GrantRestartsPoller(t *testing.T) {
	h := newHarness(notify.Default, notify.Granted, PollerConfig{
		Interval:    time.Hour, // only the immediate passes run
		ReloadDelay: 5 * time.Millisecond,
	}, domain.Alarm{ID: 3, Title: "Bins", AlarmTime: at(base, 0)})

	h.poller.Start(context.Background())
	defer h.poller.Stop()

	waitFor(t, "notification after grant", func() bool { return h.sent.count() == 1 })
	if got := h.perm.requests.Load(); got != 1 {
		t.Fatalf("want one permission request, got %d", got)
	}
	h.src.mu.Lock()
	calls := h.src.calls
	h.src.mu.Unlock()
	if calls != 2 {
		t.Fatalf("want initial pass plus one restart pass, got %d fetches", calls)
	}
}

func TestDefaultPermission_DismissedDoesNotRestart(t *testing.T) {
	h := newHarness(notify.Default, "", PollerConfig{
		Interval:    time.Hour,
		ReloadDelay: time.Millisecond,
	}, domain.Alarm{ID: 3, AlarmTime: at(base, 0)})

	h.poller.Start(context.Background())
	defer h.poller.Stop()

	waitFor(t, "permission request", func() bool { return h.perm.requests.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	h.src.mu.Lock()
	defer h.src.mu.Unlock()
	if h.src.calls != 1 || h.sent.count() != 0 {
		t.Fatalf("no restart without a grant: calls=%d sent=%d", h.src.calls, h.sent.count())
	}
}

func TestStop_WaitsForLoopStartedByConcurrentRestart(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := newHarness(notify.Granted, "", PollerConfig{Interval: time.Millisecond})
		h.poller.Start(context.Background())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); h.poller.Restart() }()
		go func() { defer wg.Done(); h.poller.Stop() }()
		wg.Wait()

		if h.poller.Running() {
			t.Fatalf("iteration %d: poller still running after Stop", i)
		}
		h.src.mu.Lock()
		calls := h.src.calls
		h.src.mu.Unlock()
		time.Sleep(3 * time.Millisecond)
		h.src.mu.Lock()
		after := h.src.calls
		h.src.mu.Unlock()
		if after != calls {
			t.Fatalf("iteration %d: cycle ran after Stop (%d -> %d)", i, calls, after)
		}
	}
}

func TestStop_RestartAfterStopIsNoop(t *testing.T) {
	h := newHarness(notify.Granted, "", PollerConfig{Interval: time.Hour})
	h.poller.Start(context.Background())
	h.poller.Stop()
	h.poller.Restart()
	if h.poller.Running() {
		t.Fatalf("Restart after Stop must not start the loop")
	}
}

type failingNotifier struct{}

func (failingNotifier) Send(ctx context.Context, n notify.Notification) error {
	return errors.New("no notification daemon")
}

func TestRunOnce_FailedSendNotCountedAsShown(t *testing.T) {
	h := newHarness(notify.Granted, "", PollerConfig{},
		domain.Alarm{ID: 1, Title: "x", AlarmTime: at(base, 0)},
	)
	h.center = notify.NewCenter(zap.NewNop(), failingNotifier{})
	h.poller.center = h.center

	before := testutil.ToFloat64(metrics.NotificationsShown)
	if _, err := h.poller.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if got := testutil.ToFloat64(metrics.NotificationsShown); got != before {
		t.Fatalf("failed send counted as shown: %v -> %v", before, got)
	}
	if len(h.sounds.plays) != 1 {
		t.Fatalf("sound still plays when the notification fails: %v", h.sounds.plays)
	}

	h.center = notify.NewCenter(zap.NewNop(), h.sent)
	h.poller.center = h.center
	if _, err := h.poller.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if got := testutil.ToFloat64(metrics.NotificationsShown); got != before+1 {
		t.Fatalf("successful send should count once: %v -> %v", before, got)
	}
}
