// Package client talks to the alarm API. The daemon polls it; the CLI uses
// the write routes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/alarmwatch/internal/domain"
)

// ErrStatus is returned for non-2xx responses.
var ErrStatus = errors.New("unexpected status")

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("alarm api: status %d", e.Code)
	}
	return fmt.Sprintf("alarm api: status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStatus }

type Client struct {
	Base   string
	Client *http.Client
	Logger *zap.Logger // optional
}

func New(base string, timeout time.Duration) *Client {
	return &Client{
		Base:   strings.TrimRight(base, "/"),
		Client: &http.Client{Timeout: timeout},
	}
}

type alarmsPayload struct {
	Alarms []domain.Alarm `json:"alarms"`
}

type rawAlarmsPayload struct {
	Alarms []json.RawMessage `json:"alarms"`
}

// Alarms fetches the full alarm list. Entries that do not decode are skipped
// and logged so the rest of the list still fires.
func (c *Client) Alarms(ctx context.Context) ([]domain.Alarm, error) {
	var p rawAlarmsPayload
	if err := c.do(ctx, http.MethodGet, "/api/alarms", nil, &p); err != nil {
		return nil, err
	}
	out := make([]domain.Alarm, 0, len(p.Alarms))
	for i, raw := range p.Alarms {
		var a domain.Alarm
		if err := json.Unmarshal(raw, &a); err != nil {
			c.logger().Warn("alarm_decode_skipped", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// NewAlarm is the body of POST /api/alarms.
type NewAlarm struct {
	Title               string         `json:"title"`
	Description         string         `json:"description"`
	AlarmTime           string         `json:"alarm_time"`
	NotifyBeforeMinutes int            `json:"notify_before_minutes"`
	GroupID             domain.GroupID `json:"group_id"`
}

func (c *Client) AddAlarm(ctx context.Context, a NewAlarm) (*domain.Alarm, error) {
	var out domain.Alarm
	if err := c.do(ctx, http.MethodPost, "/api/alarms", a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ToggleDone(ctx context.Context, id domain.AlarmID) (*domain.Alarm, error) {
	var out domain.Alarm
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/alarms/%d/toggle_done", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAlarm(ctx context.Context, id domain.AlarmID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/alarms/%d", id), nil, nil)
}

func (c *Client) Groups(ctx context.Context) ([]domain.Group, error) {
	var out []domain.Group
	if err := c.do(ctx, http.MethodGet, "/api/groups", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GroupAlarms(ctx context.Context, id domain.GroupID) ([]domain.Alarm, error) {
	var p alarmsPayload
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/groups/%d/alarms", id), nil, &p); err != nil {
		return nil, err
	}
	return p.Alarms, nil
}

func (c *Client) AddGroup(ctx context.Context, name string) (*domain.Group, error) {
	var out domain.Group
	if err := c.do(ctx, http.MethodPost, "/api/groups", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteGroup(ctx context.Context, id domain.GroupID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/groups/%d", id), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
