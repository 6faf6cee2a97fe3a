package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSlack_OK(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		_ = json.NewDecoder(r.Body).Decode(&payload)
		got = payload["text"]
		w.WriteHeader(200)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	if s == nil {
		t.Fatal("expected slack client")
	}
	err := s.Send(context.Background(), Notification{Title: "Standup", Body: "Time!", Tag: "alarm-1"})
	if err != nil {
		t.Fatalf("send err: %v", err)
	}
	if got != ":alarm_clock: *Standup*\nTime!\n`alarm-1`" {
		t.Fatalf("payload not as expected: %q", got)
	}
}

func TestSlack_Non2xx(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer ts.Close()

	s := NewSlack(ts.URL)
	err := s.Send(context.Background(), Notification{Title: "X", Body: "Y", Tag: "alarm-2"})
	if err == nil || !strings.Contains(err.Error(), "alarm-2") || !strings.Contains(err.Error(), "invalid_token") {
		t.Fatalf("expected status error naming the tag and reason, got %v", err)
	}
}

func TestNewSlack_EmptyWebhookDisabled(t *testing.T) {
	s := NewSlack("")
	if s != nil {
		t.Fatalf("empty webhook should disable slack")
	}
	if err := s.Send(context.Background(), Notification{Title: "x"}); !errors.Is(err, ErrSlackDisabled) {
		t.Fatalf("want ErrSlackDisabled, got %v", err)
	}
}

func TestSlackText_OmitsEmptyParts(t *testing.T) {
	if got := slackText(Notification{Title: "Tea"}); got != ":alarm_clock: *Tea*" {
		t.Fatalf("text = %q", got)
	}
}
