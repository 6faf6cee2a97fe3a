package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/alarmwatch/internal/domain"
	"github.com/hamed0406/alarmwatch/internal/httpapi"
	"github.com/hamed0406/alarmwatch/internal/repo/memory"
)

func newAPI(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	if _, err := store.EnsureGeneral(context.Background()); err != nil {
		t.Fatal(err)
	}
	srv := httpapi.NewServer(zap.NewNop(), store, store, time.UTC)
	ts := httptest.NewServer(srv.Router(nil, 0, 0))
	t.Cleanup(ts.Close)
	return ts, store
}

func run(t *testing.T, api string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd(api, &out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAdd_DefaultsToGeneral(t *testing.T) {
	ts, store := newAPI(t)

	out, err := run(t, ts.URL, "add", "--title", "Standup", "--at", "2025-03-01T09:30", "--before", "10")
	if err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "added alarm 1 (Standup)") {
		t.Fatalf("output = %q", out)
	}
	alarms, _ := store.ListAlarms(context.Background())
	if len(alarms) != 1 || alarms[0].NotifyBeforeMinutes != 10 {
		t.Fatalf("alarms = %+v", alarms)
	}
}

func TestGroupsAndDone(t *testing.T) {
	ts, _ := newAPI(t)

	if out, err := run(t, ts.URL, "group-add", "Work"); err != nil || !strings.Contains(out, "(Work)") {
		t.Fatalf("group-add: %v %q", err, out)
	}
	out, err := run(t, ts.URL, "groups")
	if err != nil || !strings.Contains(out, "General") || !strings.Contains(out, "Work") {
		t.Fatalf("groups: %v %q", err, out)
	}
	if _, err := run(t, ts.URL, "group-add", "general"); err == nil {
		t.Fatalf("reserved name should fail")
	}

	if _, err := run(t, ts.URL, "add", "-t", "x", "--at", "2025-03-01T09:30"); err != nil {
		t.Fatal(err)
	}
	if out, err := run(t, ts.URL, "done", "1"); err != nil || !strings.Contains(out, "done=true") {
		t.Fatalf("done: %v %q", err, out)
	}
	if _, err := run(t, ts.URL, "done", "abc"); err == nil {
		t.Fatalf("bad id should fail")
	}
}

func TestPrintAlarms_States(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	alarms := []domain.Alarm{
		{ID: 1, Title: "soon", AlarmTime: domain.NewTimestamp(now.Add(5 * time.Minute)), NotifyBeforeMinutes: 10},
		{ID: 2, Title: "later", AlarmTime: domain.NewTimestamp(now.Add(30 * time.Minute)), NotifyBeforeMinutes: 5},
		{ID: 3, Title: "old", AlarmTime: domain.NewTimestamp(now.Add(-time.Hour)), IsDone: true},
	}
	var buf bytes.Buffer
	printAlarms(&buf, alarms, now)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("lines = %q", lines)
	}
	for i, want := range []string{"due", "pending", "done"} {
		if !strings.HasSuffix(strings.TrimSpace(lines[i+1]), want) {
			t.Errorf("line %d = %q, want state %s", i+1, lines[i+1], want)
		}
	}
}
