// Package reactor is the daemon's background worker. It follows the service
// worker lifecycle (install, activate) and reacts to push messages and
// notification clicks independently of the poller.
package reactor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/alarmwatch/internal/metrics"
	"github.com/hamed0406/alarmwatch/internal/notify"
	"github.com/hamed0406/alarmwatch/internal/sound"
)

type State string

const (
	StateNew        State = "new"
	StateInstalled  State = "installed"
	StateActivating State = "activating"
	StateActive     State = "active"
)

var ErrNotInstalled = errors.New("reactor: not installed")

// Window opens or focuses the application.
type Window interface {
	Open(ctx context.Context, url string) error
}

// Client is an application window known to the reactor.
type Client struct {
	ID           uuid.UUID `json:"id"`
	URL          string    `json:"url"`
	Controller   string    `json:"controller,omitempty"` // version controlling the client
	RegisteredAt time.Time `json:"registered_at"`
}

type Reactor struct {
	log    *zap.Logger
	sounds *sound.Registry
	center *notify.Center
	window Window
	appURL string

	mu      sync.Mutex
	version string
	state   State
	clients map[uuid.UUID]*Client
}

func New(log *zap.Logger, sounds *sound.Registry, center *notify.Center, window Window, appURL string) *Reactor {
	return &Reactor{
		log:     log,
		sounds:  sounds,
		center:  center,
		window:  window,
		appURL:  appURL,
		state:   StateNew,
		clients: make(map[uuid.UUID]*Client),
	}
}

// Install records version and skips the waiting state, so activation does
// not wait for clients of the previous version to go away.
func (r *Reactor) Install(ctx context.Context, version string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.version = version
	r.state = StateActivating
	metrics.ReactorEvents.WithLabelValues("install").Inc()
	r.log.Info("reactor_installed", zap.String("version", version), zap.Bool("skip_waiting", true))
	return r.state
}

// Activate makes the installed version active and claims every open client
// immediately. It returns the number of clients claimed.
func (r *Reactor) Activate(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateNew {
		return 0, ErrNotInstalled
	}
	r.state = StateActive
	for _, c := range r.clients {
		c.Controller = r.version
	}
	metrics.ReactorEvents.WithLabelValues("activate").Inc()
	r.log.Info("reactor_activated", zap.String("version", r.version), zap.Int("clients_claimed", len(r.clients)))
	return len(r.clients), nil
}

// Push starts looped playback of the alarm sound. Nothing on this path stops
// it; the sound runs until stopped through the registry.
func (r *Reactor) Push(ctx context.Context, payload []byte) {
	metrics.ReactorEvents.WithLabelValues("push").Inc()
	r.log.Info("reactor_push", zap.Int("payload_bytes", len(payload)))
	if err := r.sounds.Play(ctx, sound.PushKey); err != nil {
		r.log.Debug("push_sound_error", zap.Error(err))
	}
}

// NotificationClick closes the notification with tag and brings up the
// application. A click handler registered by the poller runs instead of the
// default open-window behaviour.
func (r *Reactor) NotificationClick(ctx context.Context, tag string) error {
	metrics.ReactorEvents.WithLabelValues("notificationclick").Inc()
	if r.center.Click(ctx, tag) {
		r.log.Info("notification_clicked", zap.String("tag", tag), zap.Bool("handled", true))
		return nil
	}
	r.center.Close(tag)
	r.log.Info("notification_clicked", zap.String("tag", tag), zap.Bool("handled", false))
	if r.window == nil {
		return nil
	}
	return r.window.Open(ctx, r.appURL)
}

// RegisterClient records an application window. Windows opened while a
// version is active are controlled by it from the start.
func (r *Reactor) RegisterClient(url string) Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Client{ID: uuid.New(), URL: url, RegisteredAt: time.Now().UTC()}
	if r.state == StateActive {
		c.Controller = r.version
	}
	r.clients[c.ID] = c
	return *c
}

func (r *Reactor) RemoveClient(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[id]
	delete(r.clients, id)
	return ok
}

func (r *Reactor) Clients() []Client {
	r.mu.Lock()
	out := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, *c)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })
	return out
}

func (r *Reactor) State() (State, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.version
}
