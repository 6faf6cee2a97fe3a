package notify

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
)

// ErrSlackDisabled is returned by a Slack notifier without a webhook.
var ErrSlackDisabled = errors.New("slack: no webhook configured")

// Slack mirrors alarm notifications into a channel through an incoming
// webhook. The tag is appended so a message can be matched to its alarm.
type Slack struct {
	Webhook string
	Client  *http.Client
}

// NewSlack returns nil for an empty webhook.
func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Text string `json:"text"`
}

func slackText(n Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":alarm_clock: *%s*", n.Title)
	if n.Body != "" {
		b.WriteString("\n" + n.Body)
	}
	if n.Tag != "" {
		fmt.Fprintf(&b, "\n`%s`", n.Tag)
	}
	return b.String()
}

func (s *Slack) Send(ctx context.Context, n Notification) error {
	if s == nil || s.Webhook == "" {
		return ErrSlackDisabled
	}
	body, err := json.Marshal(slackMessage{Text: slackText(n)})
	if err != nil {
		return fmt.Errorf("slack: encode %s: %w", n.Tag, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("slack: deliver %s: %w", n.Tag, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("slack: deliver %s: status %d: %s", n.Tag, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
