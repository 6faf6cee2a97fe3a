package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/alarmwatch/internal/metrics"
	"github.com/hamed0406/alarmwatch/internal/notify"
	"github.com/hamed0406/alarmwatch/internal/reactor"
	"github.com/hamed0406/alarmwatch/internal/sound"
)

// PollerControl is the part of the poller exposed on the control listener.
type PollerControl interface {
	Running() bool
	Restart()
	RunOnce(ctx context.Context) (int, error)
}

// Control serves the daemon's local control listener: reactor events,
// notification clicks, sound and poller inspection.
type Control struct {
	Logger  *zap.Logger
	Reactor *reactor.Reactor
	Center  *notify.Center
	Sounds  *sound.Registry
	Poller  PollerControl
}

const maxPushPayload = 64 << 10

func (c *Control) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(countRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Get("/state", c.handleState)
	r.Post("/install", c.handleInstall)
	r.Post("/activate", c.handleActivate)
	r.Post("/push", c.handlePush)

	r.Get("/notifications", c.handleNotifications)
	r.Post("/notifications/{tag}/click", c.handleClick)

	r.Get("/clients", c.handleClients)
	r.Post("/clients", c.handleRegisterClient)
	r.Delete("/clients/{id}", c.handleRemoveClient)

	r.Get("/sounds", c.handleSounds)
	r.Post("/sounds/{key}/stop", c.handleStopSound)

	r.Post("/poll", c.handlePoll)
	r.Post("/poll/restart", c.handleRestart)

	return r
}

func (c *Control) handleState(w http.ResponseWriter, r *http.Request) {
	st, ver := c.Reactor.State()
	resp := map[string]any{
		"state":   st,
		"version": ver,
		"clients": len(c.Reactor.Clients()),
	}
	if c.Poller != nil {
		resp["polling"] = c.Poller.Running()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *Control) handleInstall(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	st := c.Reactor.Install(r.Context(), p.Version)
	writeJSON(w, http.StatusOK, map[string]any{"state": st, "version": p.Version})
}

func (c *Control) handleActivate(w http.ResponseWriter, r *http.Request) {
	n, err := c.Reactor.Activate(r.Context())
	if err != nil {
		if errors.Is(err, reactor.ErrNotInstalled) {
			writeError(w, http.StatusConflict, "not installed")
			return
		}
		c.Logger.Error("activate_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "activate failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"claimed": n})
}

func (c *Control) handlePush(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPushPayload))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	// playback outlives the request
	c.Reactor.Push(context.WithoutCancel(r.Context()), payload)
	w.WriteHeader(http.StatusAccepted)
}

func (c *Control) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.Center.Active())
}

func (c *Control) handleClick(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if err := c.Reactor.NotificationClick(context.WithoutCancel(r.Context()), tag); err != nil {
		c.Logger.Warn("open_window_error", zap.String("tag", tag), zap.Error(err))
		writeError(w, http.StatusBadGateway, "could not open window")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Control) handleClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.Reactor.Clients())
}

func (c *Control) handleRegisterClient(w http.ResponseWriter, r *http.Request) {
	var p struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	writeJSON(w, http.StatusCreated, c.Reactor.RegisterClient(p.URL))
}

func (c *Control) handleRemoveClient(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if !c.Reactor.RemoveClient(id) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Control) handleSounds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"playing": c.Sounds.Keys()})
}

func (c *Control) handleStopSound(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !c.Sounds.Stop(key) {
		writeError(w, http.StatusNotFound, "not playing")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Control) handlePoll(w http.ResponseWriter, r *http.Request) {
	if c.Poller == nil {
		writeError(w, http.StatusServiceUnavailable, "no poller")
		return
	}
	due, err := c.Poller.RunOnce(r.Context())
	if err != nil {
		c.Logger.Warn("manual_poll_error", zap.Error(err))
		writeError(w, http.StatusBadGateway, "poll failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"due": due})
}

func (c *Control) handleRestart(w http.ResponseWriter, r *http.Request) {
	if c.Poller == nil {
		writeError(w, http.StatusServiceUnavailable, "no poller")
		return
	}
	c.Poller.Restart()
	w.WriteHeader(http.StatusAccepted)
}
