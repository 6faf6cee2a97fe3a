package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/alarmwatch/internal/client"
	"github.com/hamed0406/alarmwatch/internal/domain"
	"github.com/hamed0406/alarmwatch/internal/metrics"
	"github.com/hamed0406/alarmwatch/internal/notify"
)

// fallbackBody is shown when an alarm has no description.
const fallbackBody = "Time!"

type AlarmSource interface {
	Alarms(ctx context.Context) ([]domain.Alarm, error)
}

// Sounds is the part of sound.Registry the poller drives.
type Sounds interface {
	Play(ctx context.Context, key string) error
	Stop(key string) bool
}

// Focuser brings the application window to the front.
type Focuser interface {
	Focus(ctx context.Context) error
}

type PollerConfig struct {
	Interval     time.Duration // gap between cycles
	FetchTimeout time.Duration // bound on one alarm fetch
	ReloadDelay  time.Duration // restart delay after permission is granted
}

// Poller fetches the alarm list on a fixed interval and alerts on due alarms.
// It is an owned handle: Start and Stop control the loop, RunOnce runs a
// single cycle.
type Poller struct {
	log     *zap.Logger
	source  AlarmSource
	center  *notify.Center
	sounds  Sounds
	perm    notify.Permission
	window  Focuser
	cfg     PollerConfig
	now     func() time.Time
	request atomic.Bool // a permission request is in flight

	life   sync.Mutex // serialises Start, Stop and Restart
	mu     sync.Mutex
	parent context.Context
	cancel context.CancelFunc
	done   chan struct{}
	reload *time.Timer
}

func NewPoller(
	log *zap.Logger,
	source AlarmSource,
	center *notify.Center,
	sounds Sounds,
	perm notify.Permission,
	window Focuser,
	cfg PollerConfig,
) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.ReloadDelay < 0 {
		cfg.ReloadDelay = 0
	}
	return &Poller{
		log:    log,
		source: source,
		center: center,
		sounds: sounds,
		perm:   perm,
		window: window,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Run does an immediate pass, then one cycle per tick until ctx is cancelled.
// Cycles never overlap; a slow cycle makes the ticker drop ticks.
func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()

	p.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("poller_stopped")
			return ctx.Err()
		case <-t.C:
			p.cycle(ctx)
		}
	}
}

// cycle runs RunOnce and swallows its error after logging it.
func (p *Poller) cycle(ctx context.Context) {
	_, err := p.RunOnce(ctx)
	switch {
	case err == nil:
		metrics.PollCycles.WithLabelValues("ok").Inc()
	case errors.Is(err, client.ErrStatus):
		metrics.PollCycles.WithLabelValues("bad_status").Inc()
		p.log.Debug("poll_bad_status", zap.Error(err))
	case ctx.Err() != nil:
		// shutting down
	default:
		metrics.PollCycles.WithLabelValues("error").Inc()
		p.log.Warn("poll_error", zap.Error(err))
	}
}

// RunOnce fetches the alarm list and handles every due alarm. It returns the
// number of due alarms.
func (p *Poller) RunOnce(ctx context.Context) (int, error) {
	fctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	alarms, err := p.source.Alarms(fctx)
	cancel()
	if err != nil {
		return 0, err
	}

	now := p.now()
	due := 0
	for _, a := range alarms {
		if !a.Due(now) {
			continue
		}
		due++
		p.fire(ctx, a)
	}
	metrics.AlarmsDue.Set(float64(due))
	return due, nil
}

func (p *Poller) fire(ctx context.Context, a domain.Alarm) {
	switch p.perm.State() {
	case notify.Granted:
		p.alert(ctx, a)
	case notify.Default:
		p.requestPermission()
	}
}

func (p *Poller) alert(ctx context.Context, a domain.Alarm) {
	body := a.Description
	if body == "" {
		body = fallbackBody
	}
	n := notify.Notification{
		Title:              a.Title,
		Body:               body,
		Tag:                a.Tag(),
		RequireInteraction: true,
	}
	key := a.Key()

	_, err := p.center.Show(ctx, n, func(cctx context.Context) {
		p.sounds.Stop(key)
		if p.window != nil {
			if err := p.window.Focus(cctx); err != nil {
				p.log.Debug("focus_error", zap.Error(err))
			}
		}
	})
	if err != nil {
		p.log.Warn("notify_error", zap.String("tag", n.Tag), zap.Error(err))
	} else {
		metrics.NotificationsShown.Inc()
		p.log.Info("alarm_notified",
			zap.Int64("alarm_id", int64(a.ID)),
			zap.String("title", a.Title),
			zap.Time("trigger_at", a.TriggerAt()),
		)
	}

	// playback failures are ignored
	if err := p.sounds.Play(ctx, key); err != nil {
		p.log.Debug("sound_error", zap.String("key", key), zap.Error(err))
	}
}

// requestPermission asks once at a time. A grant schedules a restart after
// ReloadDelay so the next pass runs with permission.
func (p *Poller) requestPermission() {
	if !p.request.CompareAndSwap(false, true) {
		return
	}
	ctx := p.runContext()
	go func() {
		defer p.request.Store(false)
		st, err := p.perm.Request(ctx)
		if err != nil {
			p.log.Debug("permission_request_error", zap.Error(err))
			return
		}
		metrics.PermissionRequests.WithLabelValues(string(st)).Inc()
		p.log.Info("permission_answer", zap.String("state", string(st)))
		if st == notify.Granted {
			p.scheduleRestart()
		}
	}()
}

func (p *Poller) scheduleRestart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reload != nil {
		p.reload.Stop()
	}
	p.reload = time.AfterFunc(p.cfg.ReloadDelay, func() {
		p.log.Info("poller_restart_after_grant")
		p.Restart()
	})
}

func (p *Poller) runContext() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.parent != nil {
		return p.parent
	}
	return context.Background()
}

// Start launches the loop in the background. It is a no-op when running.
func (p *Poller) Start(ctx context.Context) {
	p.life.Lock()
	defer p.life.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.parent = ctx
	p.startLocked()
}

func (p *Poller) startLocked() {
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(p.parent)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()
}

// Stop cancels the loop and any pending restart, and waits for the loop to
// exit, including a loop started by a concurrent Restart.
func (p *Poller) Stop() {
	p.life.Lock()
	defer p.life.Unlock()
	p.mu.Lock()
	if p.reload != nil {
		p.reload.Stop()
		p.reload = nil
	}
	p.parent = nil // a restart already in flight becomes a no-op
	p.mu.Unlock()
	p.stop()
}

func (p *Poller) stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Restart stops the loop and starts it again, which runs a pass immediately.
func (p *Poller) Restart() {
	p.life.Lock()
	defer p.life.Unlock()
	p.stop()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.parent == nil || p.parent.Err() != nil {
		return
	}
	p.startLocked()
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}
