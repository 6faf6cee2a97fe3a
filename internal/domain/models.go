package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type AlarmID int64

// UnmarshalJSON accepts the id as a number or a numeric string.
func (id *AlarmID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if json.Unmarshal(b, &s) != nil {
			return fmt.Errorf("alarm id: %w", err)
		}
		n = json.Number(strings.TrimSpace(s))
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("alarm id %q: not an integer", n)
	}
	*id = AlarmID(v)
	return nil
}

type GroupID int64

// GeneralGroup is always present and cannot be removed or shadowed.
const GeneralGroup = "General"

// Alarm is the wire shape served by GET /api/alarms.
type Alarm struct {
	ID                  AlarmID   `json:"id"`
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	AlarmTime           Timestamp `json:"alarm_time"`
	NotifyBeforeMinutes int       `json:"notify_before_minutes"`
	IsDone              bool      `json:"is_done"`
	GroupID             GroupID   `json:"group_id,omitempty"`
}

type Group struct {
	ID   GroupID `json:"id"`
	Name string  `json:"name"`
}

// MaxNotifyBeforeMinutes is the largest lead time the API accepts (366 days).
const MaxNotifyBeforeMinutes = 366 * 24 * 60

// maxOffsetMinutes is the largest offset a time.Duration can hold.
const maxOffsetMinutes = int64(1<<63-1) / int64(time.Minute)

// TriggerAt is alarm_time minus the notify-before offset. Offsets beyond what
// a time.Duration holds are clamped, so a huge lead time is always due.
func (a Alarm) TriggerAt() time.Time {
	n := int64(a.NotifyBeforeMinutes)
	switch {
	case n > maxOffsetMinutes:
		n = maxOffsetMinutes
	case n < -maxOffsetMinutes:
		n = -maxOffsetMinutes
	}
	return a.AlarmTime.Time.Add(-time.Duration(n) * time.Minute)
}

// Due reports whether the alarm should fire at now. Done alarms never fire.
func (a Alarm) Due(now time.Time) bool {
	if a.IsDone {
		return false
	}
	return !a.TriggerAt().After(now)
}

// Tag is the notification de-duplication tag for the alarm.
func (a Alarm) Tag() string {
	return "alarm-" + strconv.FormatInt(int64(a.ID), 10)
}

// Key identifies the alarm in the sound registry.
func (a Alarm) Key() string {
	return strconv.FormatInt(int64(a.ID), 10)
}
