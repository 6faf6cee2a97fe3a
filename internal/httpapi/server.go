package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/alarmwatch/internal/domain"
	apimw "github.com/hamed0406/alarmwatch/internal/httpapi/middleware"
	"github.com/hamed0406/alarmwatch/internal/metrics"
	"github.com/hamed0406/alarmwatch/internal/repo"
)

type Server struct {
	Logger   *zap.Logger
	Alarms   repo.AlarmStore
	Groups   repo.GroupStore
	Location *time.Location // zone for alarm times sent without an offset
}

func NewServer(l *zap.Logger, as repo.AlarmStore, gs repo.GroupStore, loc *time.Location) *Server {
	if loc == nil {
		loc = time.Local
	}
	return &Server{Logger: l, Alarms: as, Groups: gs, Location: loc}
}

// Router builds the API. Empty origins allow all; writeRPM <= 0 disables rate
// limiting of mutating routes.
func (s *Server) Router(origins []string, writeRPM, writeBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler(origins))
	r.Use(countRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/alarms", s.handleListAlarms)
		r.Get("/groups", s.handleListGroups)
		r.Get("/groups/{id}/alarms", s.handleGroupAlarms)

		r.Group(func(r chi.Router) {
			r.Use(apimw.RateLimit(writeRPM, writeBurst))
			r.Post("/alarms", s.handleAddAlarm)
			r.Delete("/alarms/{id}", s.handleDeleteAlarm)
			r.Post("/alarms/{id}/toggle_done", s.handleToggleDone)
			r.Post("/groups", s.handleAddGroup)
			r.Delete("/groups/{id}", s.handleDeleteGroup)
		})
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept"},
		MaxAge:         300,
	})
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = r.Method + " " + rc.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		metrics.APIRequests.WithLabelValues(route, strconv.Itoa(code/100)+"xx").Inc()
	})
}

// ---- alarms ----

type alarmsResponse struct {
	Alarms []domain.Alarm `json:"alarms"`
}

func (s *Server) handleListAlarms(w http.ResponseWriter, r *http.Request) {
	alarms, err := s.Alarms.ListAlarms(r.Context())
	if err != nil {
		s.Logger.Error("list_alarms_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if alarms == nil {
		alarms = []domain.Alarm{}
	}
	writeJSON(w, http.StatusOK, alarmsResponse{Alarms: alarms})
}

type addAlarmPayload struct {
	Title               string `json:"title"`
	Description         string `json:"description"`
	AlarmTime           string `json:"alarm_time"`
	NotifyBeforeMinutes *int   `json:"notify_before_minutes"`
	GroupID             int64  `json:"group_id"`
}

// readAddAlarm accepts JSON or an HTML form post.
func readAddAlarm(r *http.Request) (addAlarmPayload, error) {
	var p addAlarmPayload
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return p, err
		}
		p.Title = r.PostFormValue("title")
		p.Description = r.PostFormValue("description")
		p.AlarmTime = r.PostFormValue("alarm_time")
		if v := r.PostFormValue("notify_before_minutes"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return p, err
			}
			p.NotifyBeforeMinutes = &n
		}
		if v := r.PostFormValue("group_id"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return p, err
			}
			p.GroupID = id
		}
		return p, nil
	}
	err := json.NewDecoder(r.Body).Decode(&p)
	return p, err
}

func (s *Server) handleAddAlarm(w http.ResponseWriter, r *http.Request) {
	p, err := readAddAlarm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if p.GroupID == 0 {
		writeError(w, http.StatusBadRequest, "no group selected")
		return
	}
	at, err := domain.ParseTimestamp(strings.TrimSpace(p.AlarmTime), s.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alarm_time")
		return
	}
	notifyBefore := 0
	if p.NotifyBeforeMinutes != nil {
		notifyBefore = *p.NotifyBeforeMinutes
	}
	if notifyBefore < 0 || notifyBefore > domain.MaxNotifyBeforeMinutes {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("notify_before_minutes must be between 0 and %d", domain.MaxNotifyBeforeMinutes))
		return
	}

	a := &domain.Alarm{
		Title:               p.Title,
		Description:         p.Description,
		AlarmTime:           domain.NewTimestamp(at),
		NotifyBeforeMinutes: notifyBefore,
		GroupID:             domain.GroupID(p.GroupID),
	}
	if err := s.Alarms.AddAlarm(r.Context(), a); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "unknown group")
			return
		}
		s.Logger.Error("add_alarm_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not add")
		return
	}

	s.Logger.Info("added_alarm",
		zap.Int64("alarm_id", int64(a.ID)),
		zap.Int64("group_id", int64(a.GroupID)),
		zap.Time("alarm_time", a.AlarmTime.Time),
		zap.Int("notify_before_minutes", a.NotifyBeforeMinutes),
	)
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleDeleteAlarm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := s.Alarms.DeleteAlarm(r.Context(), domain.AlarmID(id))
	if err != nil {
		s.storeError(w, "delete_alarm_error", err)
		return
	}
	s.Logger.Info("deleted_alarm", zap.Int64("alarm_id", id))
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleToggleDone(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := s.Alarms.ToggleDone(r.Context(), domain.AlarmID(id))
	if err != nil {
		s.storeError(w, "toggle_done_error", err)
		return
	}
	s.Logger.Info("toggled_alarm", zap.Int64("alarm_id", id), zap.Bool("is_done", a.IsDone))
	writeJSON(w, http.StatusOK, a)
}

// ---- groups ----

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Groups.EnsureGeneral(r.Context()); err != nil {
		s.Logger.Error("ensure_general_error", zap.Error(err))
	}
	gs, err := s.Groups.ListGroups(r.Context())
	if err != nil {
		s.Logger.Error("list_groups_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if gs == nil {
		gs = []domain.Group{}
	}
	writeJSON(w, http.StatusOK, gs)
}

func (s *Server) handleGroupAlarms(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	g, err := s.Groups.GetGroup(r.Context(), domain.GroupID(id))
	if err != nil {
		s.storeError(w, "get_group_error", err)
		return
	}
	alarms, err := s.Alarms.AlarmsByGroup(r.Context(), g.ID)
	if err != nil {
		s.storeError(w, "group_alarms_error", err)
		return
	}
	if alarms == nil {
		alarms = []domain.Alarm{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"group": g, "alarms": alarms})
}

type addGroupPayload struct {
	Name string `json:"name"`
}

func (s *Server) handleAddGroup(w http.ResponseWriter, r *http.Request) {
	var p addGroupPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	name := strings.TrimSpace(p.Name)
	switch {
	case name == "":
		writeError(w, http.StatusBadRequest, "group name cannot be empty")
		return
	case strings.EqualFold(name, domain.GeneralGroup):
		writeError(w, http.StatusBadRequest, `cannot use "General" as group name`)
		return
	}

	g := &domain.Group{Name: name}
	if err := s.Groups.AddGroup(r.Context(), g); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			writeError(w, http.StatusConflict, "group already exists")
			return
		}
		s.Logger.Error("add_group_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not add")
		return
	}
	s.Logger.Info("added_group", zap.Int64("group_id", int64(g.ID)), zap.String("name", g.Name))
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	g, err := s.Groups.DeleteGroup(r.Context(), domain.GroupID(id))
	if err != nil {
		s.storeError(w, "delete_group_error", err)
		return
	}
	s.Logger.Info("deleted_group", zap.Int64("group_id", id), zap.String("name", g.Name))
	writeJSON(w, http.StatusOK, g)
}

// ---- helpers ----

func (s *Server) storeError(w http.ResponseWriter, event string, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrProtected):
		writeError(w, http.StatusForbidden, "cannot delete the General group")
	case errors.Is(err, repo.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	default:
		s.Logger.Error(event, zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
