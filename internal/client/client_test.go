package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_Alarms_OK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/alarms" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"alarms":[{"id":7,"title":"tea","description":"","alarm_time":"2025-08-18T12:00:00Z","notify_before_minutes":2,"is_done":false}]}`))
	}))
	defer s.Close()

	c := New(s.URL+"/", 2*time.Second)
	alarms, err := c.Alarms(context.Background())
	if err != nil {
		t.Fatalf("Alarms: %v", err)
	}
	if len(alarms) != 1 || alarms[0].ID != 7 || alarms[0].NotifyBeforeMinutes != 2 {
		t.Fatalf("unexpected alarms: %+v", alarms)
	}
}

func TestClient_Alarms_SkipsUndecodableEntries(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"alarms":[
			{"id":"abc","title":"opaque id","alarm_time":"2025-08-18T12:00:00Z"},
			{"id":"8","title":"string id","alarm_time":"2025-08-18T12:00:00Z"},
			{"id":9,"title":"bad time","alarm_time":"soon"},
			{"id":10,"title":"ok","alarm_time":"2025-08-18T12:00:00Z"}
		]}`))
	}))
	defer s.Close()

	alarms, err := New(s.URL, 2*time.Second).Alarms(context.Background())
	if err != nil {
		t.Fatalf("one bad entry must not fail the list: %v", err)
	}
	if len(alarms) != 2 || alarms[0].ID != 8 || alarms[1].ID != 10 {
		t.Fatalf("unexpected alarms: %+v", alarms)
	}
}

func TestClient_Alarms_Non2xx(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	_, err := New(s.URL, 2*time.Second).Alarms(context.Background())
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("want ErrStatus, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 500 || se.Body != "boom" {
		t.Fatalf("status error not populated: %+v", se)
	}
}

func TestClient_Alarms_MalformedBody(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"alarms":`))
	}))
	defer s.Close()

	_, err := New(s.URL, 2*time.Second).Alarms(context.Background())
	if err == nil || errors.Is(err, ErrStatus) {
		t.Fatalf("want decode error, got %v", err)
	}
}

func TestClient_TimeoutIsTransportError(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer s.Close()

	_, err := New(s.URL, 50*time.Millisecond).Alarms(context.Background())
	if err == nil {
		t.Fatalf("want timeout error")
	}
}

func TestClient_AddAlarm_PostsJSON(t *testing.T) {
	var got NewAlarm
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %q", r.Method, r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":3,"title":"x","alarm_time":"2025-08-18T12:00:00Z","group_id":1}`))
	}))
	defer s.Close()

	a, err := New(s.URL, time.Second).AddAlarm(context.Background(), NewAlarm{
		Title: "x", AlarmTime: "2025-08-18T12:00", GroupID: 1,
	})
	if err != nil {
		t.Fatalf("AddAlarm: %v", err)
	}
	if a.ID != 3 || got.Title != "x" || got.GroupID != 1 {
		t.Fatalf("round trip wrong: sent=%+v got=%+v", got, a)
	}
}
